package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	"github.com/chatlyhq/chatly/internal/clock"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	conversationdomain "github.com/chatlyhq/chatly/internal/conversation/domain"
	"github.com/chatlyhq/chatly/internal/llm"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// -- Mocks --

type subscriptionMock struct {
	mock.Mock
}

func (m *subscriptionMock) EnsureCurrent(ctx context.Context, companyID snowflake.ID) (*subscriptiondomain.CompanySubscription, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).(*subscriptiondomain.CompanySubscription), args.Error(1)
}

func (m *subscriptionMock) SynchronizeBillingPeriods(ctx context.Context, sub *subscriptiondomain.CompanySubscription) (*subscriptiondomain.CompanySubscription, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(*subscriptiondomain.CompanySubscription), args.Error(1)
}

func (m *subscriptionMock) IncrementChatUsage(ctx context.Context, companyID snowflake.ID, n int64) error {
	args := m.Called(ctx, companyID, n)
	return args.Error(0)
}

func (m *subscriptionMock) IncludedChats(ctx context.Context, sub *subscriptiondomain.CompanySubscription) (int64, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(int64), args.Error(1)
}

func (m *subscriptionMock) GetByCompany(context.Context, snowflake.ID) (*subscriptiondomain.CompanySubscription, error) {
	return nil, nil
}
func (m *subscriptionMock) AssistantLimit(context.Context, *subscriptiondomain.CompanySubscription) (int64, error) {
	return 0, nil
}
func (m *subscriptionMock) IntegrationsLimit(context.Context, *subscriptiondomain.CompanySubscription) (int64, error) {
	return 0, nil
}
func (m *subscriptionMock) SyncAssistantAccess(context.Context, snowflake.ID) error { return nil }
func (m *subscriptionMock) Checkout(context.Context, subscriptiondomain.CheckoutRequest) (*subscriptiondomain.CheckoutResult, error) {
	return nil, nil
}
func (m *subscriptionMock) Deactivate(context.Context, snowflake.ID) error { return nil }
func (m *subscriptionMock) Update(context.Context, snowflake.ID, subscriptiondomain.UpdateRequest) (*subscriptiondomain.CompanySubscription, error) {
	return nil, nil
}

type llmMock struct {
	configured bool
}

func (m *llmMock) Configured() bool                              { return m.configured }
func (m *llmMock) CreateThread(context.Context) (string, error)  { return "", llm.ErrNotConfigured }
func (m *llmMock) SendMessage(context.Context, string, llm.MessageContent) (string, error) {
	return "", llm.ErrNotConfigured
}
func (m *llmMock) RunAndGetResponse(context.Context, string, string) (string, error) {
	return "", llm.ErrNotConfigured
}
func (m *llmMock) UploadFile(context.Context, string, io.Reader, string) (string, error) {
	return "", llm.ErrNotConfigured
}
func (m *llmMock) CreateSpeech(context.Context, string) (string, error) {
	return "", llm.ErrNotConfigured
}

// -- Fixtures --

func activeSubscription(used int64) *subscriptiondomain.CompanySubscription {
	starts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	expires := starts.AddDate(0, 1, 0)
	return &subscriptiondomain.CompanySubscription{
		ID:                     snowflake.ID(1),
		CompanyID:              snowflake.ID(100),
		Status:                 subscriptiondomain.StatusActive,
		Quantity:               1,
		ChatCountCurrentPeriod: used,
		StartsAt:               &starts,
		ExpiresAt:              &expires,
	}
}

func inboundTurn() conversationdomain.Inbound {
	return conversationdomain.Inbound{
		Company:   &companydomain.Company{ID: 100, Status: companydomain.CompanyStatusActive},
		Owner:     &companydomain.User{ID: 1, IsActive: true},
		Assistant: &assistantdomain.Assistant{ID: 10, CompanyID: 100, IsActive: true},
		Binding: &assistantdomain.AssistantChannel{
			AssistantID:      10,
			Channel:          assistantdomain.ChannelTelegram,
			AutoReplyEnabled: true,
			IsActive:         true,
		},
		Chat: &chatdomain.Chat{ID: 5, CompanyID: 100, Status: chatdomain.StatusOpen},
		Parts: []chatdomain.Part{{
			ChannelMessageID: "m1",
			Kind:             chatdomain.KindContent,
			MessageType:      chatdomain.TypeText,
			Text:             "hola",
		}},
	}
}

func newGateDriver(sub *subscriptionMock, llmConfigured bool) *Driver {
	return &Driver{
		log:    zap.NewNop(),
		clock:  clock.NewFakeClock(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)),
		subSvc: sub,
		llm:    &llmMock{configured: llmConfigured},
	}
}

// -- Tests --

func TestGateAllowsUnderQuota(t *testing.T) {
	sub := activeSubscription(499)
	subMock := &subscriptionMock{}
	subMock.On("EnsureCurrent", mock.Anything, snowflake.ID(100)).Return(sub, nil)
	subMock.On("SynchronizeBillingPeriods", mock.Anything, sub).Return(sub, nil)
	subMock.On("IncrementChatUsage", mock.Anything, snowflake.ID(100), int64(1)).Return(nil)
	subMock.On("IncludedChats", mock.Anything, sub).Return(int64(500), nil)

	d := newGateDriver(subMock, true)
	gate, err := d.evaluateGate(context.Background(), inboundTurn())
	require.NoError(t, err)
	assert.True(t, gate.allowed())
	subMock.AssertExpectations(t)
}

func TestGateBlocksAtQuota(t *testing.T) {
	sub := activeSubscription(500)
	subMock := &subscriptionMock{}
	subMock.On("EnsureCurrent", mock.Anything, snowflake.ID(100)).Return(sub, nil)
	subMock.On("SynchronizeBillingPeriods", mock.Anything, sub).Return(sub, nil)
	subMock.On("IncrementChatUsage", mock.Anything, snowflake.ID(100), int64(1)).Return(nil)
	subMock.On("IncludedChats", mock.Anything, sub).Return(int64(500), nil)

	d := newGateDriver(subMock, true)
	gate, err := d.evaluateGate(context.Background(), inboundTurn())
	require.NoError(t, err)
	assert.Equal(t, "quota_exhausted", gate.reason)

	// The over-quota turn is still metered.
	subMock.AssertCalled(t, "IncrementChatUsage", mock.Anything, snowflake.ID(100), int64(1))
}

func TestGateBlocksInactiveSubscription(t *testing.T) {
	sub := activeSubscription(0)
	sub.Status = subscriptiondomain.StatusCanceled
	subMock := &subscriptionMock{}
	subMock.On("EnsureCurrent", mock.Anything, snowflake.ID(100)).Return(sub, nil)
	subMock.On("SynchronizeBillingPeriods", mock.Anything, sub).Return(sub, nil)
	subMock.On("IncrementChatUsage", mock.Anything, snowflake.ID(100), int64(1)).Return(nil)

	d := newGateDriver(subMock, true)
	gate, err := d.evaluateGate(context.Background(), inboundTurn())
	require.NoError(t, err)
	assert.Equal(t, "subscription_inactive", gate.reason)
}

func TestGateCheapChecksShortCircuit(t *testing.T) {
	// No subscription expectations: the gate must not reach the billing layer.
	subMock := &subscriptionMock{}
	d := newGateDriver(subMock, true)

	turn := inboundTurn()
	turn.Binding.AutoReplyEnabled = false
	gate, err := d.evaluateGate(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, "auto_reply_disabled", gate.reason)

	turn = inboundTurn()
	turn.Parts[0].Kind = chatdomain.KindEvent
	gate, err = d.evaluateGate(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, "no_content", gate.reason)

	turn = inboundTurn()
	turn.Owner.IsActive = false
	gate, err = d.evaluateGate(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, "owner_inactive", gate.reason)

	turn = inboundTurn()
	turn.Assistant.IsActive = false
	gate, err = d.evaluateGate(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, "assistant_inactive", gate.reason)

	turn = inboundTurn()
	turn.Chat.Status = chatdomain.StatusClosed
	gate, err = d.evaluateGate(context.Background(), turn)
	require.NoError(t, err)
	assert.Equal(t, "chat_not_replyable", gate.reason)
}

func TestGateBlocksWithoutLLMKey(t *testing.T) {
	sub := activeSubscription(0)
	subMock := &subscriptionMock{}
	subMock.On("EnsureCurrent", mock.Anything, snowflake.ID(100)).Return(sub, nil)
	subMock.On("SynchronizeBillingPeriods", mock.Anything, sub).Return(sub, nil)
	subMock.On("IncrementChatUsage", mock.Anything, snowflake.ID(100), int64(1)).Return(nil)
	subMock.On("IncludedChats", mock.Anything, sub).Return(int64(500), nil)

	d := newGateDriver(subMock, false)
	gate, err := d.evaluateGate(context.Background(), inboundTurn())
	require.NoError(t, err)
	assert.Equal(t, "llm_unconfigured", gate.reason)
}
