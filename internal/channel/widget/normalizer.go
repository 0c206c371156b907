// Package widget adapts the first-party web chat widget. The widget posts our
// own JSON shape and reads replies back over the chat API, so the outbound
// client is persistence-only.
package widget

import (
	"context"
	"encoding/json"
	"time"

	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
	"go.uber.org/zap"
)

type inboundPayload struct {
	AccountID  string `json:"account_id"`
	SessionID  string `json:"session_id"`
	MessageID  string `json:"message_id"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
	SentAt     int64  `json:"sent_at"`

	Attachments []struct {
		Type     string `json:"type"`
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	} `json:"attachments"`
}

type Normalizer struct {
	log *zap.Logger
}

func NewNormalizer(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log.Named("channel.widget")}
}

func (n *Normalizer) Channel() assistantdomain.Channel {
	return assistantdomain.ChannelWidget
}

func (n *Normalizer) Normalize(_ context.Context, body []byte, _ string) ([]channeldomain.Event, error) {
	var payload inboundPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		n.log.Debug("unparseable widget payload", zap.Error(err))
		return nil, nil
	}
	if payload.AccountID == "" || payload.SessionID == "" {
		return nil, nil
	}

	sentAt := time.Time{}
	if payload.SentAt > 0 {
		sentAt = time.UnixMilli(payload.SentAt).UTC()
	}

	var parts []chatdomain.Part
	if payload.Text != "" {
		msgType, linkURL := channeldomain.ClassifyText(payload.Text)
		parts = append(parts, chatdomain.Part{
			ChannelMessageID: payload.MessageID,
			Kind:             chatdomain.KindContent,
			MessageType:      msgType,
			Text:             payload.Text,
			LinkURL:          linkURL,
			SentAt:           sentAt,
		})
	}
	for _, att := range payload.Attachments {
		msgType := channeldomain.AttachmentType(att.Type)
		part := chatdomain.Part{
			ChannelMessageID: payload.MessageID,
			Kind:             chatdomain.KindContent,
			MessageType:      msgType,
			MediaMimeType:    att.MimeType,
			SentAt:           sentAt,
		}
		if msgType == chatdomain.TypeLink {
			part.LinkURL = att.URL
		} else {
			part.MediaURL = att.URL
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return nil, nil
	}

	return []channeldomain.Event{{
		AccountID:     payload.AccountID,
		ChannelChatID: payload.SessionID,
		SenderID:      payload.SessionID,
		SenderName:    payload.SenderName,
		Parts:         parts,
	}}, nil
}

// Client is the widget-side outbound adapter. Replies are persisted and read
// back by the widget over the chat API, so sends succeed locally with no
// provider message id.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) SendText(context.Context, string, string) (string, error) {
	return "", nil
}

func (c *Client) SendMedia(context.Context, string, string, chatdomain.MessageType, string) (string, error) {
	return "", nil
}

func (c *Client) FetchProfile(context.Context, string) (*channeldomain.Profile, error) {
	return nil, nil
}

func (c *Client) FileURL(_ context.Context, fileID string) (string, error) {
	return fileID, nil
}
