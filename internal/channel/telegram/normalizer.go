// Package telegram adapts Bot API updates and the bot send methods.
package telegram

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
	"go.uber.org/zap"
)

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
	Edited   *message `json:"edited_message"`
}

type message struct {
	MessageID int64 `json:"message_id"`
	From      *struct {
		ID        int64  `json:"id"`
		IsBot     bool   `json:"is_bot"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Username  string `json:"username"`
	} `json:"from"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Date    int64  `json:"date"`
	Text    string `json:"text"`
	Caption string `json:"caption"`

	Photo []struct {
		FileID string `json:"file_id"`
		Width  int    `json:"width"`
	} `json:"photo"`
	Voice *struct {
		FileID   string `json:"file_id"`
		MimeType string `json:"mime_type"`
	} `json:"voice"`
	Audio *struct {
		FileID   string `json:"file_id"`
		MimeType string `json:"mime_type"`
	} `json:"audio"`
	Video *struct {
		FileID   string `json:"file_id"`
		MimeType string `json:"mime_type"`
	} `json:"video"`
	Document *struct {
		FileID   string `json:"file_id"`
		MimeType string `json:"mime_type"`
		FileName string `json:"file_name"`
	} `json:"document"`

	PinnedMessage  *message `json:"pinned_message"`
	NewChatMembers []struct {
		FirstName string `json:"first_name"`
	} `json:"new_chat_members"`
}

type Normalizer struct {
	log *zap.Logger
}

func NewNormalizer(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log.Named("channel.telegram")}
}

func (n *Normalizer) Channel() assistantdomain.Channel {
	return assistantdomain.ChannelTelegram
}

// Normalize implements domain.Normalizer. Bot API payloads do not name the
// receiving bot, so the account id arrives via the webhook route hint.
func (n *Normalizer) Normalize(_ context.Context, body []byte, accountHint string) ([]channeldomain.Event, error) {
	if accountHint == "" {
		return nil, nil
	}

	var upd update
	if err := json.Unmarshal(body, &upd); err != nil {
		n.log.Debug("unparseable update", zap.Error(err))
		return nil, nil
	}

	msg := upd.Message
	if msg == nil {
		msg = upd.Edited
	}
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return nil, nil
	}

	sentAt := time.Unix(msg.Date, 0).UTC()
	if msg.Date == 0 {
		sentAt = time.Time{}
	}

	event := channeldomain.Event{
		AccountID:     accountHint,
		ChannelChatID: strconv.FormatInt(msg.Chat.ID, 10),
		SenderID:      strconv.FormatInt(msg.From.ID, 10),
		SenderName:    displayName(msg),
		Parts:         extractParts(msg, sentAt),
	}
	if len(event.Parts) == 0 {
		return nil, nil
	}
	return []channeldomain.Event{event}, nil
}

func displayName(msg *message) string {
	name := msg.From.FirstName
	if msg.From.LastName != "" {
		name += " " + msg.From.LastName
	}
	if name == "" {
		name = msg.From.Username
	}
	return name
}

func extractParts(msg *message, sentAt time.Time) []chatdomain.Part {
	baseID := strconv.FormatInt(msg.MessageID, 10)
	var parts []chatdomain.Part

	if msg.Text != "" {
		msgType, linkURL := channeldomain.ClassifyText(msg.Text)
		parts = append(parts, chatdomain.Part{
			ChannelMessageID: baseID,
			Kind:             chatdomain.KindContent,
			MessageType:      msgType,
			Text:             msg.Text,
			LinkURL:          linkURL,
			SentAt:           sentAt,
		})
	}

	// Media file ids are resolved into URLs lazily by the client; the part
	// stores the raw file id.
	switch {
	case len(msg.Photo) > 0:
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width > best.Width {
				best = p
			}
		}
		parts = append(parts, mediaPart(baseID, chatdomain.TypeImage, best.FileID, "", msg.Caption, sentAt))
	case msg.Voice != nil:
		parts = append(parts, mediaPart(baseID, chatdomain.TypeVoice, msg.Voice.FileID, msg.Voice.MimeType, msg.Caption, sentAt))
	case msg.Audio != nil:
		parts = append(parts, mediaPart(baseID, chatdomain.TypeAudio, msg.Audio.FileID, msg.Audio.MimeType, msg.Caption, sentAt))
	case msg.Video != nil:
		parts = append(parts, mediaPart(baseID, chatdomain.TypeVideo, msg.Video.FileID, msg.Video.MimeType, msg.Caption, sentAt))
	case msg.Document != nil:
		parts = append(parts, mediaPart(baseID, chatdomain.TypeFile, msg.Document.FileID, msg.Document.MimeType, msg.Caption, sentAt))
	}

	// Service messages with a derivable summary become event parts.
	if len(parts) == 0 && len(msg.NewChatMembers) > 0 {
		parts = append(parts, chatdomain.Part{
			ChannelMessageID: baseID,
			Kind:             chatdomain.KindEvent,
			MessageType:      chatdomain.TypeText,
			Text:             msg.NewChatMembers[0].FirstName + " joined the chat",
			SentAt:           sentAt,
		})
	}
	return parts
}

func mediaPart(id string, msgType chatdomain.MessageType, fileID, mimeType, caption string, sentAt time.Time) chatdomain.Part {
	return chatdomain.Part{
		ChannelMessageID: id,
		Kind:             chatdomain.KindContent,
		MessageType:      msgType,
		Text:             caption,
		MediaURL:         fileID,
		MediaMimeType:    mimeType,
		SentAt:           sentAt,
	}
}
