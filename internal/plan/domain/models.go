// Package domain contains the subscription plan catalog model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Plan is a catalog entry. Plans are immutable from a subscription's point of
// view: resolved values are copied into invoices at issuance time.
type Plan struct {
	ID                          snowflake.ID `gorm:"primaryKey" json:"id,string"`
	Code                        string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name                        string       `gorm:"type:text;not null" json:"name"`
	Currency                    string       `gorm:"type:text;not null;default:'USD'" json:"currency"`
	PriceCents                  int64        `gorm:"not null" json:"price_cents"`
	IncludedChats               int64        `gorm:"not null" json:"included_chats"`
	OverageChatPriceCents       int64        `gorm:"not null" json:"overage_chat_price_cents"`
	AssistantLimit              int64        `gorm:"not null" json:"assistant_limit"`
	IntegrationsPerChannelLimit int64        `gorm:"not null" json:"integrations_per_channel_limit"`
	IsActive                    bool         `gorm:"not null;default:true" json:"is_active"`
	IsPublic                    bool         `gorm:"not null;default:true" json:"is_public"`
	IsEnterprise                bool         `gorm:"not null;default:false" json:"is_enterprise"`
	SortOrder                   int          `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt                   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt                   time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "subscription_plans" }
