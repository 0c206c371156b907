package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusOpen     Status = "open"
	StatusPending  Status = "pending"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type SenderType string

const (
	SenderCustomer  SenderType = "customer"
	SenderAssistant SenderType = "assistant"
	SenderAgent     SenderType = "agent"
	SenderSystem    SenderType = "system"
)

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeVideo MessageType = "video"
	TypeVoice MessageType = "voice"
	TypeAudio MessageType = "audio"
	TypeLink  MessageType = "link"
	TypeFile  MessageType = "file"
)

type PartKind string

const (
	KindContent PartKind = "content"
	KindEvent   PartKind = "event"
)

// Part is one canonical unit extracted from a raw channel event. The
// ChannelMessageID carries the channel-native id before any dedup suffixing.
type Part struct {
	ChannelMessageID string
	Kind             PartKind
	MessageType      MessageType
	Text             string
	MediaURL         string
	MediaMimeType    string
	LinkURL          string
	Payload          map[string]any
	SentAt           time.Time
}

// HasContent reports whether the part carries customer content, as opposed to
// a synthesized event summary.
func (p Part) HasContent() bool {
	return p.Kind != KindEvent
}

type Chat struct {
	ID        snowflake.ID            `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID            `gorm:"index;uniqueIndex:ux_chat_identity" json:"company_id"`
	Channel   assistantdomain.Channel `gorm:"size:32;uniqueIndex:ux_chat_identity" json:"channel"`

	// ChannelChatID is the channel-native conversation identifier: an
	// Instagram-scoped user id, a Telegram chat id, or a widget session id.
	ChannelChatID string `gorm:"size:191;uniqueIndex:ux_chat_identity" json:"channel_chat_id"`

	DisplayName string `gorm:"size:255" json:"display_name"`
	AvatarURL   string `gorm:"size:1024" json:"avatar_url,omitempty"`

	Status Status `gorm:"size:32;default:open" json:"status"`

	LastMessagePreview string     `gorm:"size:255" json:"last_message_preview"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	UnreadCount        int64      `gorm:"default:0" json:"unread_count"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Chat) TableName() string { return "chats" }

// Replyable reports whether automated replies may be produced for the chat.
func (c *Chat) Replyable() bool {
	return c.Status == StatusOpen || c.Status == StatusPending
}

type ChatMessage struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	ChatID snowflake.ID `gorm:"uniqueIndex:ux_chat_message" json:"chat_id"`

	// ChannelMessageID is unique per chat. Redelivered webhook payloads land
	// on this index and get a disambiguating suffix instead of a duplicate row.
	ChannelMessageID string `gorm:"size:191;uniqueIndex:ux_chat_message" json:"channel_message_id"`

	Direction  Direction   `gorm:"size:16" json:"direction"`
	SenderType SenderType  `gorm:"size:16" json:"sender_type"`
	Type       MessageType `gorm:"size:16" json:"type"`

	Text          string `gorm:"type:text" json:"text,omitempty"`
	MediaURL      string `gorm:"size:1024" json:"media_url,omitempty"`
	MediaMimeType string `gorm:"size:128" json:"media_mime_type,omitempty"`
	LinkURL       string `gorm:"size:1024" json:"link_url,omitempty"`

	Payload datatypes.JSON `json:"payload,omitempty"`

	SentAt    time.Time `json:"sent_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
