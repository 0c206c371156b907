// Package instagram adapts Meta webhook payloads and the Graph send API.
package instagram

import (
	"context"
	"encoding/json"
	"time"

	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
	"go.uber.org/zap"
)

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string           `json:"id"`
		Messaging []messagingEvent `json:"messaging"`
	} `json:"entry"`
}

type messagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`

	Message *struct {
		MID         string `json:"mid"`
		Text        string `json:"text"`
		IsEcho      bool   `json:"is_echo"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`

	Reaction *struct {
		MID    string `json:"mid"`
		Action string `json:"action"`
		Emoji  string `json:"emoji"`
	} `json:"reaction"`

	Postback *struct {
		MID     string `json:"mid"`
		Title   string `json:"title"`
		Payload string `json:"payload"`
	} `json:"postback"`

	Read *struct {
		MID string `json:"mid"`
	} `json:"read"`
}

type Normalizer struct {
	log *zap.Logger
}

func NewNormalizer(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log.Named("channel.instagram")}
}

func (n *Normalizer) Channel() assistantdomain.Channel {
	return assistantdomain.ChannelInstagram
}

// Normalize implements domain.Normalizer. The recipient id identifies the
// business account, the sender id doubles as the conversation id.
func (n *Normalizer) Normalize(_ context.Context, body []byte, _ string) ([]channeldomain.Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		n.log.Debug("unparseable webhook payload", zap.Error(err))
		return nil, nil
	}

	var events []channeldomain.Event
	for _, entry := range payload.Entry {
		for _, msg := range entry.Messaging {
			event, ok := n.normalizeOne(entry.ID, msg)
			if !ok {
				continue
			}
			events = append(events, event)
		}
	}
	return events, nil
}

func (n *Normalizer) normalizeOne(entryID string, msg messagingEvent) (channeldomain.Event, bool) {
	if msg.Message != nil && msg.Message.IsEcho {
		return channeldomain.Event{}, false
	}
	if msg.Sender.ID == "" {
		return channeldomain.Event{}, false
	}

	accountID := msg.Recipient.ID
	if accountID == "" {
		accountID = entryID
	}
	if accountID == "" {
		return channeldomain.Event{}, false
	}

	sentAt := time.UnixMilli(msg.Timestamp).UTC()
	if msg.Timestamp == 0 {
		sentAt = time.Time{}
	}

	event := channeldomain.Event{
		AccountID:     accountID,
		ChannelChatID: msg.Sender.ID,
		SenderID:      msg.Sender.ID,
		Parts:         extractParts(msg, sentAt),
	}
	if len(event.Parts) == 0 {
		return channeldomain.Event{}, false
	}
	return event, true
}

func extractParts(msg messagingEvent, sentAt time.Time) []chatdomain.Part {
	var parts []chatdomain.Part

	if msg.Message != nil {
		if msg.Message.Text != "" {
			msgType, linkURL := channeldomain.ClassifyText(msg.Message.Text)
			parts = append(parts, chatdomain.Part{
				ChannelMessageID: msg.Message.MID,
				Kind:             chatdomain.KindContent,
				MessageType:      msgType,
				Text:             msg.Message.Text,
				LinkURL:          linkURL,
				SentAt:           sentAt,
			})
		}
		for _, att := range msg.Message.Attachments {
			msgType := channeldomain.AttachmentType(att.Type)
			part := chatdomain.Part{
				ChannelMessageID: msg.Message.MID,
				Kind:             chatdomain.KindContent,
				MessageType:      msgType,
				SentAt:           sentAt,
			}
			if msgType == chatdomain.TypeLink {
				part.LinkURL = att.Payload.URL
			} else {
				part.MediaURL = att.Payload.URL
			}
			parts = append(parts, part)
		}
	}

	// Reactions and postbacks carry no content. Synthesize an event part when
	// a human-readable summary can be derived; read receipts never qualify.
	if len(parts) == 0 {
		if msg.Reaction != nil && msg.Reaction.Action != "unreact" && msg.Reaction.Emoji != "" {
			parts = append(parts, chatdomain.Part{
				ChannelMessageID: msg.Reaction.MID,
				Kind:             chatdomain.KindEvent,
				MessageType:      chatdomain.TypeText,
				Text:             "Reacted with " + msg.Reaction.Emoji,
				SentAt:           sentAt,
			})
		} else if msg.Postback != nil && msg.Postback.Title != "" {
			parts = append(parts, chatdomain.Part{
				ChannelMessageID: msg.Postback.MID,
				Kind:             chatdomain.KindEvent,
				MessageType:      chatdomain.TypeText,
				Text:             "Tapped: " + msg.Postback.Title,
				Payload:          map[string]any{"postback": msg.Postback.Payload},
				SentAt:           sentAt,
			})
		}
	}
	return parts
}
