package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bwmarrin/snowflake"
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	"github.com/chatlyhq/chatly/internal/clock"
	"github.com/chatlyhq/chatly/pkg/db"
	"github.com/chatlyhq/chatly/pkg/db/option"
	"github.com/chatlyhq/chatly/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxSuffixAttempts bounds the deterministic dedup-suffix retry loop before
// falling back to a random suffix.
const maxSuffixAttempts = 50

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock

	chatRepo    repository.Repository[chatdomain.Chat]
	messageRepo repository.Repository[chatdomain.ChatMessage]
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p ServiceParam) chatdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("chat.service"),

		genID: p.GenID,
		clock: p.Clock,

		chatRepo:    repository.ProvideStore[chatdomain.Chat](p.DB),
		messageRepo: repository.ProvideStore[chatdomain.ChatMessage](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*chatdomain.Chat, error) {
	chat, err := s.chatRepo.FindOne(ctx, &chatdomain.Chat{ID: id})
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, chatdomain.ErrChatNotFound
	}
	return chat, nil
}

// FirstOrCreate implements domain.Service. The unique index on
// (company_id, channel, channel_chat_id) decides races between concurrent
// webhook deliveries for a brand-new conversation.
func (s *Service) FirstOrCreate(
	ctx context.Context,
	companyID snowflake.ID,
	channel assistantdomain.Channel,
	channelChatID string,
	attrs chatdomain.ChatAttrs,
) (*chatdomain.Chat, error) {
	query := &chatdomain.Chat{
		CompanyID:     companyID,
		Channel:       channel,
		ChannelChatID: channelChatID,
	}

	existing, err := s.chatRepo.FindOne(ctx, query)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.applyAttrs(ctx, existing, attrs)
	}

	now := s.clock.Now()
	meta, err := chatdomain.EncodeMetadata(chatdomain.MergeMetadata(map[string]any{}, attrs.Metadata))
	if err != nil {
		return nil, err
	}
	chat := &chatdomain.Chat{
		ID:            s.genID.Generate(),
		CompanyID:     companyID,
		Channel:       channel,
		ChannelChatID: channelChatID,
		DisplayName:   attrs.DisplayName,
		AvatarURL:     attrs.AvatarURL,
		Status:        chatdomain.StatusOpen,
		Metadata:      meta,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		if db.IsDuplicateKeyErr(err) {
			winner, ferr := s.chatRepo.FindOne(ctx, query)
			if ferr != nil {
				return nil, ferr
			}
			if winner != nil {
				return s.applyAttrs(ctx, winner, attrs)
			}
		}
		return nil, err
	}
	return chat, nil
}

// applyAttrs backfills display fields that are still empty and merges the
// metadata patch. Existing values are never overwritten by profile refetches.
func (s *Service) applyAttrs(ctx context.Context, chat *chatdomain.Chat, attrs chatdomain.ChatAttrs) (*chatdomain.Chat, error) {
	updates := map[string]any{}
	if chat.DisplayName == "" && attrs.DisplayName != "" {
		updates["display_name"] = attrs.DisplayName
		chat.DisplayName = attrs.DisplayName
	}
	if chat.AvatarURL == "" && attrs.AvatarURL != "" {
		updates["avatar_url"] = attrs.AvatarURL
		chat.AvatarURL = attrs.AvatarURL
	}
	if len(attrs.Metadata) > 0 {
		merged := chatdomain.MergeMetadata(chatdomain.DecodeMetadata(chat.Metadata), attrs.Metadata)
		raw, err := chatdomain.EncodeMetadata(merged)
		if err != nil {
			return nil, err
		}
		updates["metadata"] = raw
		chat.Metadata = raw
	}
	if len(updates) == 0 {
		return chat, nil
	}
	updates["updated_at"] = s.clock.Now()
	if err := s.chatRepo.Update(ctx, chat.ID.String(), updates); err != nil {
		return nil, err
	}
	return chat, nil
}

// AppendInbound implements domain.Service. Each part is inserted under the
// (chat_id, channel_message_id) unique index; collisions walk the suffix
// ladder instead of dropping the part.
func (s *Service) AppendInbound(ctx context.Context, chat *chatdomain.Chat, parts []chatdomain.Part) ([]chatdomain.ChatMessage, error) {
	if len(parts) == 0 {
		return nil, nil
	}

	stored := make([]chatdomain.ChatMessage, 0, len(parts))
	for _, part := range parts {
		msg, err := s.insertInbound(ctx, chat, part)
		if err != nil {
			return stored, err
		}
		stored = append(stored, *msg)
	}

	last := stored[len(stored)-1]
	if err := s.refreshSnapshot(ctx, chat, &last, int64(len(stored))); err != nil {
		return stored, err
	}
	return stored, nil
}

func (s *Service) insertInbound(ctx context.Context, chat *chatdomain.Chat, part chatdomain.Part) (*chatdomain.ChatMessage, error) {
	now := s.clock.Now()
	sentAt := part.SentAt
	if sentAt.IsZero() {
		sentAt = now
	}

	baseID := part.ChannelMessageID
	if baseID == "" {
		baseID = synthesizeMessageID(s.genID.Generate())
	}

	payload, err := chatdomain.EncodeMetadata(part.Payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= maxSuffixAttempts; attempt++ {
		msg := &chatdomain.ChatMessage{
			ID:               s.genID.Generate(),
			ChatID:           chat.ID,
			ChannelMessageID: suffixedID(baseID, sentAt.UnixMilli(), attempt),
			Direction:        chatdomain.DirectionInbound,
			SenderType:       chatdomain.SenderCustomer,
			Type:             part.MessageType,
			Text:             part.Text,
			MediaURL:         part.MediaURL,
			MediaMimeType:    part.MediaMimeType,
			LinkURL:          part.LinkURL,
			Payload:          payload,
			SentAt:           sentAt,
			CreatedAt:        now,
		}
		lastErr = s.messageRepo.Create(ctx, msg)
		if lastErr == nil {
			return msg, nil
		}
		if !db.IsDuplicateKeyErr(lastErr) {
			return nil, lastErr
		}
	}

	// The deterministic ladder is exhausted; a random suffix still records
	// the part rather than losing it.
	msg := &chatdomain.ChatMessage{
		ID:               s.genID.Generate(),
		ChatID:           chat.ID,
		ChannelMessageID: fmt.Sprintf("%s_%s", baseID, randomSuffix()),
		Direction:        chatdomain.DirectionInbound,
		SenderType:       chatdomain.SenderCustomer,
		Type:             part.MessageType,
		Text:             part.Text,
		MediaURL:         part.MediaURL,
		MediaMimeType:    part.MediaMimeType,
		LinkURL:          part.LinkURL,
		Payload:          payload,
		SentAt:           sentAt,
		CreatedAt:        now,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		s.log.Error("inbound message dropped after suffix exhaustion",
			zap.String("chat_id", chat.ID.String()),
			zap.String("channel_message_id", baseID),
			zap.Error(err),
		)
		return nil, err
	}
	return msg, nil
}

// suffixedID builds the dedup candidate for the given attempt: the raw id
// first, then the millisecond timestamp, then timestamp plus counter.
func suffixedID(baseID string, sentAtMillis int64, attempt int) string {
	switch attempt {
	case 0:
		return baseID
	case 1:
		return fmt.Sprintf("%s_%d", baseID, sentAtMillis)
	default:
		return fmt.Sprintf("%s_%d_%d", baseID, sentAtMillis, attempt-1)
	}
}

func randomSuffix() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "r"
	}
	return hex.EncodeToString(buf)
}

func synthesizeMessageID(id snowflake.ID) string {
	return "gen_" + id.String()
}

func (s *Service) RecordOutbound(ctx context.Context, chat *chatdomain.Chat, out chatdomain.OutboundMessage) (*chatdomain.ChatMessage, error) {
	now := s.clock.Now()

	channelMessageID := out.ChannelMessageID
	if channelMessageID == "" {
		channelMessageID = synthesizeMessageID(s.genID.Generate())
	}
	sender := out.SenderType
	if sender == "" {
		sender = chatdomain.SenderAssistant
	}
	msgType := out.Type
	if msgType == "" {
		msgType = chatdomain.TypeText
	}

	msg := &chatdomain.ChatMessage{
		ID:               s.genID.Generate(),
		ChatID:           chat.ID,
		ChannelMessageID: channelMessageID,
		Direction:        chatdomain.DirectionOutbound,
		SenderType:       sender,
		Type:             msgType,
		Text:             out.Text,
		MediaURL:         out.MediaURL,
		MediaMimeType:    out.MediaMimeType,
		SentAt:           now,
		CreatedAt:        now,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		if db.IsDuplicateKeyErr(err) {
			msg.ChannelMessageID = fmt.Sprintf("%s_%s", channelMessageID, randomSuffix())
			if err := s.messageRepo.Create(ctx, msg); err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	if err := s.refreshSnapshot(ctx, chat, msg, 0); err != nil {
		return msg, err
	}
	return msg, nil
}

// refreshSnapshot updates the chat's denormalized last-message fields. The
// unread counter moves storage-side so parallel deliveries never lose counts.
func (s *Service) refreshSnapshot(ctx context.Context, chat *chatdomain.Chat, last *chatdomain.ChatMessage, unreadDelta int64) error {
	updates := map[string]any{
		"last_message_preview": previewFor(last),
		"last_message_at":      last.SentAt,
		"updated_at":           s.clock.Now(),
	}
	if unreadDelta > 0 {
		updates["unread_count"] = gorm.Expr("unread_count + ?", unreadDelta)
	}
	err := s.db.WithContext(ctx).
		Model(&chatdomain.Chat{}).
		Where("id = ?", chat.ID).
		Updates(updates).Error
	if err != nil {
		return err
	}
	chat.LastMessagePreview = previewFor(last)
	sentAt := last.SentAt
	chat.LastMessageAt = &sentAt
	chat.UnreadCount += unreadDelta
	return nil
}

func previewFor(msg *chatdomain.ChatMessage) string {
	text := msg.Text
	if text == "" {
		switch msg.Type {
		case chatdomain.TypeLink:
			text = msg.LinkURL
		default:
			text = "[" + string(msg.Type) + "]"
		}
	}
	const maxPreview = 160
	runes := []rune(text)
	if len(runes) > maxPreview {
		return string(runes[:maxPreview])
	}
	return text
}

func (s *Service) PatchMetadata(ctx context.Context, chat *chatdomain.Chat, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	merged := chatdomain.MergeMetadata(chatdomain.DecodeMetadata(chat.Metadata), patch)
	raw, err := chatdomain.EncodeMetadata(merged)
	if err != nil {
		return err
	}
	if err := s.chatRepo.Update(ctx, chat.ID.String(), map[string]any{
		"metadata":   raw,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return err
	}
	chat.Metadata = raw
	return nil
}

func (s *Service) ListMessages(ctx context.Context, chatID snowflake.ID, limit int) ([]chatdomain.ChatMessage, error) {
	opts := []option.QueryOption{option.WithOrder("sent_at DESC, id DESC")}
	if limit > 0 {
		opts = append(opts, option.WithLimit(limit))
	}
	rows, err := s.messageRepo.Find(ctx, &chatdomain.ChatMessage{ChatID: chatID}, opts...)
	if err != nil {
		return nil, err
	}
	messages := make([]chatdomain.ChatMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, *row)
	}
	return messages, nil
}
