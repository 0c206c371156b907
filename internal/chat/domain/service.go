package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
)

// ChatAttrs carries best-effort display fields applied when a chat is first
// created. Empty fields never overwrite existing values.
type ChatAttrs struct {
	DisplayName string
	AvatarURL   string
	Metadata    map[string]any
}

// OutboundMessage describes one reply produced by the assistant or an agent.
// ChannelMessageID may be empty when the provider did not return one; the
// store synthesizes an id in that case.
type OutboundMessage struct {
	ChannelMessageID string
	SenderType       SenderType
	Type             MessageType
	Text             string
	MediaURL         string
	MediaMimeType    string
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (*Chat, error)

	// FirstOrCreate resolves the chat for (company, channel, channelChatID),
	// creating it when absent. Attrs patch missing display fields and merge
	// into metadata recursively.
	FirstOrCreate(ctx context.Context, companyID snowflake.ID, channel assistantdomain.Channel, channelChatID string, attrs ChatAttrs) (*Chat, error)

	// AppendInbound persists the parts as inbound messages and updates the
	// chat snapshot. Duplicate channel message ids get a disambiguating
	// suffix rather than dropping the part.
	AppendInbound(ctx context.Context, chat *Chat, parts []Part) ([]ChatMessage, error)

	// RecordOutbound persists one outbound message and refreshes the chat
	// snapshot without touching the unread counter.
	RecordOutbound(ctx context.Context, chat *Chat, msg OutboundMessage) (*ChatMessage, error)

	// PatchMetadata merges the patch into the chat metadata and persists it.
	PatchMetadata(ctx context.Context, chat *Chat, patch map[string]any) error

	ListMessages(ctx context.Context, chatID snowflake.ID, limit int) ([]ChatMessage, error)
}

var ErrChatNotFound = errors.New("chat_not_found")
