package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
	"github.com/chatlyhq/chatly/internal/clock"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	conversationdomain "github.com/chatlyhq/chatly/internal/conversation/domain"
	crmdomain "github.com/chatlyhq/chatly/internal/crm/domain"
	"github.com/chatlyhq/chatly/internal/delivery"
	"github.com/chatlyhq/chatly/internal/llm"
	"github.com/chatlyhq/chatly/internal/observability/metrics"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// placeholderReply goes out when the model cannot be reached, so the customer
// is never left without any response on an eligible turn.
const placeholderReply = "Thanks for reaching out! We have received your message and will get back to you as soon as possible."

type Driver struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
	http    *http.Client

	companySvc companydomain.Service
	subSvc     subscriptiondomain.Service
	chatSvc    chatdomain.Service
	crmSvc     crmdomain.Service
	factory    channeldomain.ClientFactory
	llm        llm.Client
	sender     *delivery.Sender
}

type DriverParam struct {
	fx.In

	Log     *zap.Logger
	Metrics *metrics.Metrics
	Clock   clock.Clock

	CompanySvc companydomain.Service
	SubSvc     subscriptiondomain.Service
	ChatSvc    chatdomain.Service
	CRMSvc     crmdomain.Service
	Factory    channeldomain.ClientFactory
	LLM        llm.Client
	Sender     *delivery.Sender
}

func NewDriver(p DriverParam) conversationdomain.Driver {
	return &Driver{
		log:     p.Log.Named("conversation.driver"),
		metrics: p.Metrics,
		clock:   p.Clock,
		http:    &http.Client{Timeout: 15 * time.Second},

		companySvc: p.CompanySvc,
		subSvc:     p.SubSvc,
		chatSvc:    p.ChatSvc,
		crmSvc:     p.CRMSvc,
		factory:    p.Factory,
		llm:        p.LLM,
		sender:     p.Sender,
	}
}

// HandleInbound implements domain.Driver.
func (d *Driver) HandleInbound(ctx context.Context, in conversationdomain.Inbound) error {
	gate, err := d.evaluateGate(ctx, in)
	if err != nil {
		return err
	}
	if !gate.allowed() {
		d.metrics.RepliesGated.WithLabelValues(gate.reason).Inc()
		d.log.Debug("reply gated",
			zap.String("chat_id", in.Chat.ID.String()),
			zap.String("reason", gate.reason),
		)
		return nil
	}

	started := d.clock.Now()
	text := d.generateReply(ctx, in)

	if _, err := d.sender.Send(ctx, in, text); err != nil {
		d.log.Error("reply delivery failed",
			zap.String("chat_id", in.Chat.ID.String()),
			zap.Error(err),
		)
		return nil
	}

	channel := string(in.Chat.Channel)
	d.metrics.RepliesGenerated.WithLabelValues(channel).Inc()
	d.metrics.ReplyLatency.WithLabelValues(channel).Observe(d.clock.Now().Sub(started).Seconds())
	return nil
}

// generateReply runs the model turn. Every failure degrades to the
// placeholder so an eligible customer always hears back.
func (d *Driver) generateReply(ctx context.Context, in conversationdomain.Inbound) string {
	log := d.log.With(zap.String("chat_id", in.Chat.ID.String()))

	threadID, err := d.ensureThread(ctx, in)
	if err != nil {
		log.Warn("thread unavailable", zap.Error(err))
		return placeholderReply
	}

	settings := d.companySvc.SettingsFor(in.Company)
	content := llm.MessageContent{Text: d.buildPrompt(ctx, in, settings)}
	d.attachImages(ctx, in, &content)

	if _, err := d.llm.SendMessage(ctx, threadID, content); err != nil {
		log.Warn("model message rejected", zap.Error(err))
		return placeholderReply
	}

	response, err := d.llm.RunAndGetResponse(ctx, threadID, in.Assistant.OpenAIAssistantID)
	if err != nil {
		log.Warn("model run failed", zap.Error(err))
		return placeholderReply
	}

	text := d.executeActions(ctx, in, settings, response)
	if text == "" {
		return placeholderReply
	}
	return text
}

// ensureThread returns the remote thread for (chat, assistant), creating and
// recording it on first use.
func (d *Driver) ensureThread(ctx context.Context, in conversationdomain.Inbound) (string, error) {
	if threadID := in.Chat.ThreadID(in.Assistant.ID); threadID != "" {
		return threadID, nil
	}
	threadID, err := d.llm.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	if err := d.chatSvc.PatchMetadata(ctx, in.Chat, chatdomain.ThreadPatch(in.Assistant.ID, threadID)); err != nil {
		return "", err
	}
	return threadID, nil
}

// attachImages uploads inbound images as provider files, falling back to
// URL-typed content when the download or upload fails.
func (d *Driver) attachImages(ctx context.Context, in conversationdomain.Inbound, content *llm.MessageContent) {
	client, err := d.factory.For(in.Binding)
	if err != nil {
		return
	}

	for i, part := range in.Parts {
		if part.MessageType != chatdomain.TypeImage || part.MediaURL == "" {
			continue
		}

		imageURL, err := client.FileURL(ctx, part.MediaURL)
		if err != nil {
			d.log.Debug("image url unresolvable", zap.Error(err))
			continue
		}

		fileID, err := d.uploadImage(ctx, imageURL, fmt.Sprintf("inbound_%d.jpg", i))
		if err != nil {
			d.log.Debug("image upload failed, passing url", zap.Error(err))
			content.ImageURLs = append(content.ImageURLs, imageURL)
			continue
		}
		content.ImageFileIDs = append(content.ImageFileIDs, fileID)
	}
}

func (d *Driver) uploadImage(ctx context.Context, imageURL, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch: status %d", resp.StatusCode)
	}
	return d.llm.UploadFile(ctx, name, resp.Body, "vision")
}
