// Package domain contains assistant and channel-binding persistence models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Channel identifies an external messaging surface.
type Channel string

const (
	ChannelInstagram Channel = "instagram"
	ChannelTelegram  Channel = "telegram"
	ChannelWidget    Channel = "widget"
)

// Assistant is an LLM-backed persona owned by a company. is_active is gated
// by the subscription entitlement, not set freely.
type Assistant struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id,string"`
	CompanyID           snowflake.ID `gorm:"not null;index" json:"company_id,string"`
	Name                string       `gorm:"type:text;not null" json:"name"`
	IsActive            bool         `gorm:"not null;default:false" json:"is_active"`
	Instructions        string       `gorm:"type:text" json:"instructions"`
	Restrictions        string       `gorm:"type:text" json:"restrictions"`
	Tone                string       `gorm:"type:text" json:"tone"`
	OpenAIAssistantID   string       `gorm:"type:text" json:"openai_assistant_id"`
	OpenAIVectorStoreID string       `gorm:"type:text" json:"openai_vector_store_id"`
	VoiceReplyEnabled   bool         `gorm:"not null;default:false" json:"voice_reply_enabled"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null" json:"updated_at"`
}

func (Assistant) TableName() string { return "assistants" }

// AssistantChannel binds one assistant to one external channel. One binding
// per (assistant, channel).
type AssistantChannel struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	CompanyID         snowflake.ID      `gorm:"not null;index" json:"company_id,string"`
	AssistantID       snowflake.ID      `gorm:"not null;uniqueIndex:ux_assistant_channel,priority:1" json:"assistant_id,string"`
	Channel           Channel           `gorm:"type:text;not null;uniqueIndex:ux_assistant_channel,priority:2" json:"channel"`
	ExternalAccountID string            `gorm:"type:text;not null;index" json:"external_account_id"`
	AccessToken       string            `gorm:"type:text" json:"-"`
	AutoReplyEnabled  bool              `gorm:"not null;default:true" json:"auto_reply_enabled"`
	IsActive          bool              `gorm:"not null;default:true" json:"is_active"`
	Metadata          datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (AssistantChannel) TableName() string { return "assistant_channels" }
