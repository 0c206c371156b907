package domain

import (
	"context"

	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
)

// Event is one normalized inbound unit: everything the pipeline needs to
// resolve identity and persist the parts. AccountID is the channel-native
// account the event was addressed to (page id, bot id, widget account id).
type Event struct {
	AccountID     string
	ChannelChatID string
	SenderID      string

	// SenderName is the display name carried in the payload itself, used as
	// a fallback when the remote profile fetch fails.
	SenderName string

	Parts []chatdomain.Part
}

// HasContent reports whether at least one part carries customer content.
func (e Event) HasContent() bool {
	for _, part := range e.Parts {
		if part.HasContent() {
			return true
		}
	}
	return false
}

// Normalizer converts a raw channel webhook payload into events. Echo events
// are dropped inside the adapter; payloads with nothing actionable normalize
// to an empty slice, never an error, so the webhook can always acknowledge.
type Normalizer interface {
	Channel() assistantdomain.Channel

	// Normalize parses body. accountHint carries an out-of-band account id
	// for channels whose payloads do not include one (telegram bots).
	Normalize(ctx context.Context, body []byte, accountHint string) ([]Event, error)
}
