package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	"github.com/chatlyhq/chatly/internal/clock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&chatdomain.Chat{}, &chatdomain.ChatMessage{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
	}).(*Service)
	return svc, fake, db
}

func TestFirstOrCreateIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	companyID := snowflake.ID(100)

	first, err := svc.FirstOrCreate(ctx, companyID, assistantdomain.ChannelTelegram, "tg-555", chatdomain.ChatAttrs{
		DisplayName: "Maria",
	})
	require.NoError(t, err)

	second, err := svc.FirstOrCreate(ctx, companyID, assistantdomain.ChannelTelegram, "tg-555", chatdomain.ChatAttrs{
		DisplayName: "Maria G.",
		AvatarURL:   "https://cdn.example/avatar.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// An existing display name is never overwritten, empty fields backfill.
	assert.Equal(t, "Maria", second.DisplayName)
	assert.Equal(t, "https://cdn.example/avatar.jpg", second.AvatarURL)
}

func TestFirstOrCreateMergesMetadataRecursively(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	companyID := snowflake.ID(100)

	chat, err := svc.FirstOrCreate(ctx, companyID, assistantdomain.ChannelWidget, "sess-1", chatdomain.ChatAttrs{
		Metadata: map[string]any{
			"assistant_threads": map[string]any{"10": "thread_a"},
			"source":            "landing",
		},
	})
	require.NoError(t, err)

	chat, err = svc.FirstOrCreate(ctx, companyID, assistantdomain.ChannelWidget, "sess-1", chatdomain.ChatAttrs{
		Metadata: map[string]any{
			"assistant_threads": map[string]any{"20": "thread_b"},
		},
	})
	require.NoError(t, err)

	meta := chatdomain.DecodeMetadata(chat.Metadata)
	threads := meta["assistant_threads"].(map[string]any)
	assert.Equal(t, "thread_a", threads["10"])
	assert.Equal(t, "thread_b", threads["20"])
	assert.Equal(t, "landing", meta["source"])
}

func TestAppendInboundDeduplicatesByChannelMessageID(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()

	chat, err := svc.FirstOrCreate(ctx, 100, assistantdomain.ChannelInstagram, "ig-1", chatdomain.ChatAttrs{})
	require.NoError(t, err)

	sentAt := time.Date(2025, 6, 1, 10, 0, 0, 123e6, time.UTC)
	part := chatdomain.Part{
		ChannelMessageID: "mid.abc",
		Kind:             chatdomain.KindContent,
		MessageType:      chatdomain.TypeText,
		Text:             "hola",
		SentAt:           sentAt,
	}

	first, err := svc.AppendInbound(ctx, chat, []chatdomain.Part{part})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "mid.abc", first[0].ChannelMessageID)

	// Redelivery of the same webhook payload gets a suffixed id, never a
	// duplicate row under the original id and never a silent drop.
	second, err := svc.AppendInbound(ctx, chat, []chatdomain.Part{part})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "mid.abc_1748772000123", second[0].ChannelMessageID)

	third, err := svc.AppendInbound(ctx, chat, []chatdomain.Part{part})
	require.NoError(t, err)
	assert.Equal(t, "mid.abc_1748772000123_1", third[0].ChannelMessageID)

	var count int64
	require.NoError(t, db.Model(&chatdomain.ChatMessage{}).
		Where("chat_id = ?", chat.ID).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestAppendInboundUpdatesSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	chat, err := svc.FirstOrCreate(ctx, 100, assistantdomain.ChannelTelegram, "tg-9", chatdomain.ChatAttrs{})
	require.NoError(t, err)

	sentAt := time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC)
	parts := []chatdomain.Part{
		{ChannelMessageID: "m1", Kind: chatdomain.KindContent, MessageType: chatdomain.TypeImage, MediaURL: "https://x/1.jpg", SentAt: sentAt},
		{ChannelMessageID: "m2", Kind: chatdomain.KindContent, MessageType: chatdomain.TypeText, Text: "see the photo", SentAt: sentAt.Add(time.Second)},
	}
	_, err = svc.AppendInbound(ctx, chat, parts)
	require.NoError(t, err)

	reloaded, err := svc.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, reloaded.UnreadCount)
	assert.Equal(t, "see the photo", reloaded.LastMessagePreview)
	require.NotNil(t, reloaded.LastMessageAt)
	assert.True(t, reloaded.LastMessageAt.Equal(sentAt.Add(time.Second)))
}

func TestRecordOutboundSynthesizesIDAndSkipsUnread(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	chat, err := svc.FirstOrCreate(ctx, 100, assistantdomain.ChannelWidget, "sess-2", chatdomain.ChatAttrs{})
	require.NoError(t, err)

	msg, err := svc.RecordOutbound(ctx, chat, chatdomain.OutboundMessage{Text: "we open at 9"})
	require.NoError(t, err)
	assert.Equal(t, chatdomain.DirectionOutbound, msg.Direction)
	assert.Equal(t, chatdomain.SenderAssistant, msg.SenderType)
	assert.NotEmpty(t, msg.ChannelMessageID)

	reloaded, err := svc.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, reloaded.UnreadCount)
	assert.Equal(t, "we open at 9", reloaded.LastMessagePreview)
}

func TestThreadPatchRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	chat, err := svc.FirstOrCreate(ctx, 100, assistantdomain.ChannelWidget, "sess-3", chatdomain.ChatAttrs{})
	require.NoError(t, err)

	assistantID := snowflake.ID(42)
	assert.Empty(t, chat.ThreadID(assistantID))

	require.NoError(t, svc.PatchMetadata(ctx, chat, chatdomain.ThreadPatch(assistantID, "thread_xyz")))
	assert.Equal(t, "thread_xyz", chat.ThreadID(assistantID))

	reloaded, err := svc.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "thread_xyz", reloaded.ThreadID(assistantID))
}
