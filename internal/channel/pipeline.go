package channel

import (
	"context"
	"errors"

	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	conversationdomain "github.com/chatlyhq/chatly/internal/conversation/domain"
	"github.com/chatlyhq/chatly/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Pipeline runs the same inbound processing for every channel: normalize,
// resolve identity, persist, then hand the turn to the conversation driver.
// Identity misses are silent; the webhook acknowledges regardless.
type Pipeline struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics

	normalizers map[assistantdomain.Channel]channeldomain.Normalizer
	factory     channeldomain.ClientFactory

	assistantRepo assistantdomain.Repository
	companySvc    companydomain.Service
	chatSvc       chatdomain.Service
	driver        conversationdomain.Driver
}

type PipelineParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Metrics *metrics.Metrics

	Normalizers []channeldomain.Normalizer `group:"channel.normalizers"`
	Factory     channeldomain.ClientFactory

	AssistantRepo assistantdomain.Repository
	CompanySvc    companydomain.Service
	ChatSvc       chatdomain.Service
	Driver        conversationdomain.Driver
}

func NewPipeline(p PipelineParam) *Pipeline {
	normalizers := make(map[assistantdomain.Channel]channeldomain.Normalizer, len(p.Normalizers))
	for _, n := range p.Normalizers {
		normalizers[n.Channel()] = n
	}
	return &Pipeline{
		db:      p.DB,
		log:     p.Log.Named("channel.pipeline"),
		metrics: p.Metrics,

		normalizers: normalizers,
		factory:     p.Factory,

		assistantRepo: p.AssistantRepo,
		companySvc:    p.CompanySvc,
		chatSvc:       p.ChatSvc,
		driver:        p.Driver,
	}
}

// Handle processes one raw webhook delivery. The error return covers
// infrastructure failures only; unparseable or unroutable payloads no-op.
func (p *Pipeline) Handle(ctx context.Context, channel assistantdomain.Channel, body []byte, accountHint string) error {
	normalizer, ok := p.normalizers[channel]
	if !ok {
		p.metrics.WebhookEvents.WithLabelValues(string(channel), "unsupported").Inc()
		return nil
	}

	events, err := normalizer.Normalize(ctx, body, accountHint)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		p.metrics.WebhookEvents.WithLabelValues(string(channel), "empty").Inc()
		return nil
	}

	for _, event := range events {
		if err := p.handleEvent(ctx, channel, event); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) handleEvent(ctx context.Context, channel assistantdomain.Channel, event channeldomain.Event) error {
	log := p.log.With(
		zap.String("channel", string(channel)),
		zap.String("account_id", event.AccountID),
		zap.String("channel_chat_id", event.ChannelChatID),
	)

	binding, err := p.assistantRepo.FindBindingByAccount(ctx, p.db, channel, event.AccountID)
	if err != nil {
		return err
	}
	if binding == nil {
		p.metrics.WebhookEvents.WithLabelValues(string(channel), "no_binding").Inc()
		log.Debug("no channel binding for account")
		return nil
	}

	assistant, err := p.assistantRepo.FindByID(ctx, p.db, binding.AssistantID)
	if err != nil {
		return err
	}
	if assistant == nil {
		p.metrics.WebhookEvents.WithLabelValues(string(channel), "no_assistant").Inc()
		return nil
	}

	company, err := p.companySvc.GetByID(ctx, assistant.CompanyID)
	if err != nil {
		if errors.Is(err, companydomain.ErrCompanyNotFound) {
			p.metrics.WebhookEvents.WithLabelValues(string(channel), "no_company").Inc()
			return nil
		}
		return err
	}
	if company.Status == companydomain.CompanyStatusArchived {
		p.metrics.WebhookEvents.WithLabelValues(string(channel), "no_company").Inc()
		return nil
	}

	owner, err := p.companySvc.GetOwner(ctx, company)
	if err != nil {
		if errors.Is(err, companydomain.ErrUserNotFound) {
			p.metrics.WebhookEvents.WithLabelValues(string(channel), "no_owner").Inc()
			return nil
		}
		return err
	}

	attrs := chatdomain.ChatAttrs{DisplayName: event.SenderName}
	p.enrichProfile(ctx, binding, event.SenderID, &attrs)

	chat, err := p.chatSvc.FirstOrCreate(ctx, company.ID, channel, event.ChannelChatID, attrs)
	if err != nil {
		return err
	}

	messages, err := p.chatSvc.AppendInbound(ctx, chat, event.Parts)
	if err != nil {
		return err
	}
	p.metrics.WebhookEvents.WithLabelValues(string(channel), "stored").Inc()
	p.metrics.MessagesStored.WithLabelValues(string(chatdomain.DirectionInbound)).Add(float64(len(messages)))

	return p.driver.HandleInbound(ctx, conversationdomain.Inbound{
		Company:   company,
		Owner:     owner,
		Assistant: assistant,
		Binding:   binding,
		Chat:      chat,
		Parts:     event.Parts,
		Messages:  messages,
	})
}

// enrichProfile fetches the remote profile best-effort. Failures fall back to
// the payload-supplied name and never abort persistence.
func (p *Pipeline) enrichProfile(ctx context.Context, binding *assistantdomain.AssistantChannel, senderID string, attrs *chatdomain.ChatAttrs) {
	client, err := p.factory.For(binding)
	if err != nil {
		return
	}
	profile, err := client.FetchProfile(ctx, senderID)
	if err != nil || profile == nil {
		return
	}
	if profile.DisplayName != "" {
		attrs.DisplayName = profile.DisplayName
	}
	attrs.AvatarURL = profile.AvatarURL
}
