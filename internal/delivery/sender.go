// Package delivery sends assistant replies back through the origin channel
// and records them.
package delivery

import (
	"context"

	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
	"github.com/chatlyhq/chatly/internal/config"
	conversationdomain "github.com/chatlyhq/chatly/internal/conversation/domain"
	"github.com/chatlyhq/chatly/internal/llm"
	"github.com/chatlyhq/chatly/internal/observability/metrics"
	"github.com/chatlyhq/chatly/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Sender struct {
	log     *zap.Logger
	metrics *metrics.Metrics

	factory channeldomain.ClientFactory
	chatSvc chatdomain.Service
	llm     llm.Client
	store   storage.Store

	publicBaseURL string
}

type SenderParam struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics

	Factory channeldomain.ClientFactory
	ChatSvc chatdomain.Service
	LLM     llm.Client
	Store   storage.Store
}

func NewSender(p SenderParam) *Sender {
	return &Sender{
		log:     p.Log.Named("delivery.sender"),
		metrics: p.Metrics,

		factory: p.Factory,
		chatSvc: p.ChatSvc,
		llm:     p.LLM,
		store:   p.Store,

		publicBaseURL: p.Config.PublicBaseURL,
	}
}

// Send delivers the reply, as voice when the inbound turn contained
// voice/audio and the assistant allows it, otherwise as text, then records
// the outbound message. Voice failures degrade to a text send.
func (s *Sender) Send(ctx context.Context, in conversationdomain.Inbound, text string) (*chatdomain.ChatMessage, error) {
	client, err := s.factory.For(in.Binding)
	if err != nil {
		return nil, err
	}

	recipientID := in.Chat.ChannelChatID

	if in.HadVoice() && in.Assistant.VoiceReplyEnabled {
		if msg, err := s.sendVoice(ctx, client, in, recipientID, text); err == nil {
			return msg, nil
		} else {
			s.log.Warn("voice reply failed, falling back to text",
				zap.String("chat_id", in.Chat.ID.String()),
				zap.Error(err),
			)
		}
	}

	messageID, err := client.SendText(ctx, recipientID, text)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, in, chatdomain.OutboundMessage{
		ChannelMessageID: messageID,
		Type:             chatdomain.TypeText,
		Text:             text,
	})
}

func (s *Sender) sendVoice(ctx context.Context, client channeldomain.Client, in conversationdomain.Inbound, recipientID, text string) (*chatdomain.ChatMessage, error) {
	audioPath, err := s.llm.CreateSpeech(ctx, text)
	if err != nil {
		return nil, err
	}
	if s.publicBaseURL == "" {
		return nil, llm.ErrNotConfigured
	}
	audioURL := s.publicBaseURL + s.store.URL(audioPath)

	messageID, err := client.SendMedia(ctx, recipientID, audioURL, chatdomain.TypeVoice, "")
	if err != nil {
		return nil, err
	}
	return s.record(ctx, in, chatdomain.OutboundMessage{
		ChannelMessageID: messageID,
		Type:             chatdomain.TypeVoice,
		Text:             text,
		MediaURL:         audioURL,
		MediaMimeType:    "audio/mpeg",
	})
}

func (s *Sender) record(ctx context.Context, in conversationdomain.Inbound, out chatdomain.OutboundMessage) (*chatdomain.ChatMessage, error) {
	msg, err := s.chatSvc.RecordOutbound(ctx, in.Chat, out)
	if err != nil {
		return nil, err
	}
	s.metrics.MessagesStored.WithLabelValues(string(chatdomain.DirectionOutbound)).Inc()
	return msg, nil
}

var Module = fx.Module("delivery",
	fx.Provide(NewSender),
)
