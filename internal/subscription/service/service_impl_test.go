package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	assistantrepo "github.com/chatlyhq/chatly/internal/assistant/repository"
	"github.com/chatlyhq/chatly/internal/clock"
	"github.com/chatlyhq/chatly/internal/config"
	invoicedomain "github.com/chatlyhq/chatly/internal/invoice/domain"
	plandomain "github.com/chatlyhq/chatly/internal/plan/domain"
	planservice "github.com/chatlyhq/chatly/internal/plan/service"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock, *plandomain.Plan) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&plandomain.Plan{},
		&subscriptiondomain.CompanySubscription{},
		&invoicedomain.Invoice{},
		&assistantdomain.Assistant{},
		&assistantdomain.AssistantChannel{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC))

	plan := &plandomain.Plan{
		ID:                          node.Generate(),
		Code:                        "starter",
		Name:                        "Starter",
		Currency:                    "USD",
		PriceCents:                  2900,
		IncludedChats:               500,
		OverageChatPriceCents:       10,
		AssistantLimit:              1,
		IntegrationsPerChannelLimit: 1,
		IsActive:                    true,
		IsPublic:                    true,
	}
	require.NoError(t, db.Create(plan).Error)

	planSvc := planservice.NewService(planservice.ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		Config: config.Config{},
	})

	svc := NewService(ServiceParam{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         fc,
		PlanSvc:       planSvc,
		AssistantRepo: assistantrepo.Provide(),
	}).(*Service)

	return svc, db, fc, plan
}

func activeSub(t *testing.T, svc *Service, db *gorm.DB, plan *plandomain.Plan, companyID snowflake.ID, quantity int64) *subscriptiondomain.CompanySubscription {
	t.Helper()

	sub, err := svc.EnsureCurrent(context.Background(), companyID)
	require.NoError(t, err)

	starts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	expires := starts.AddDate(0, 1, 0)
	require.NoError(t, db.Model(&subscriptiondomain.CompanySubscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"status":     subscriptiondomain.StatusActive,
			"quantity":   quantity,
			"plan_id":    plan.ID,
			"starts_at":  starts,
			"expires_at": expires,
		}).Error)

	sub, err = svc.GetByCompany(context.Background(), companyID)
	require.NoError(t, err)
	return sub
}

func TestEnsureCurrentIsIdempotent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	companyID := snowflake.ID(100)

	first, err := svc.EnsureCurrent(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusInactive, first.Status)
	assert.EqualValues(t, 0, first.Quantity)

	second, err := svc.EnsureCurrent(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSyncAssistantAccessEntitlementMonotonic(t *testing.T) {
	svc, db, fc, plan := newTestService(t)
	companyID := snowflake.ID(100)
	activeSub(t, svc, db, plan, companyID, 1)

	now := fc.Now()
	for _, id := range []snowflake.ID{10, 20} {
		require.NoError(t, db.Create(&assistantdomain.Assistant{
			ID:        id,
			CompanyID: companyID,
			Name:      "a",
			IsActive:  false,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error)
	}

	require.NoError(t, svc.SyncAssistantAccess(context.Background(), companyID))

	// Limit 1: the lowest id wins, deterministically.
	assertActive(t, db, 10, true)
	assertActive(t, db, 20, false)

	// Raising the entitlement activates the rest.
	require.NoError(t, db.Model(&subscriptiondomain.CompanySubscription{}).
		Where("company_id = ?", companyID).
		Update("quantity", 2).Error)
	require.NoError(t, svc.SyncAssistantAccess(context.Background(), companyID))
	assertActive(t, db, 10, true)
	assertActive(t, db, 20, true)

	// Lowering it deactivates from the top id down, never assistant 10.
	require.NoError(t, db.Model(&subscriptiondomain.CompanySubscription{}).
		Where("company_id = ?", companyID).
		Update("quantity", 1).Error)
	require.NoError(t, svc.SyncAssistantAccess(context.Background(), companyID))
	assertActive(t, db, 10, true)
	assertActive(t, db, 20, false)
}

func TestSyncAssistantAccessExpiresStaleSubscription(t *testing.T) {
	svc, db, fc, plan := newTestService(t)
	companyID := snowflake.ID(100)
	activeSub(t, svc, db, plan, companyID, 1)

	now := fc.Now()
	require.NoError(t, db.Create(&assistantdomain.Assistant{
		ID:        10,
		CompanyID: companyID,
		Name:      "a",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)

	fc.Set(time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, svc.SyncAssistantAccess(context.Background(), companyID))

	sub, err := svc.GetByCompany(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusExpired, sub.Status)
	assertActive(t, db, 10, false)
}

func TestIncrementChatUsageIsAdditive(t *testing.T) {
	svc, db, _, plan := newTestService(t)
	companyID := snowflake.ID(100)
	activeSub(t, svc, db, plan, companyID, 1)

	require.NoError(t, svc.IncrementChatUsage(context.Background(), companyID, 1))
	require.NoError(t, svc.IncrementChatUsage(context.Background(), companyID, 2))
	require.NoError(t, svc.IncrementChatUsage(context.Background(), companyID, 0))

	sub, err := svc.GetByCompany(context.Background(), companyID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sub.ChatCountCurrentPeriod)
}

func TestSynchronizeBillingPeriodsInitializesAndRolls(t *testing.T) {
	svc, db, fc, plan := newTestService(t)
	companyID := snowflake.ID(100)
	sub := activeSub(t, svc, db, plan, companyID, 1)

	// First sync stamps the period from now.
	synced, err := svc.SynchronizeBillingPeriods(context.Background(), sub)
	require.NoError(t, err)
	require.NotNil(t, synced.ChatPeriodStartedAt)
	require.NotNil(t, synced.ChatPeriodEndsAt)
	assert.WithinDuration(t, fc.Now(), *synced.ChatPeriodStartedAt, time.Second)
	assert.WithinDuration(t, fc.Now().AddDate(0, 0, 30), *synced.ChatPeriodEndsAt, time.Second)

	// Within the period the sync is a no-op and keeps the counter.
	require.NoError(t, svc.IncrementChatUsage(context.Background(), companyID, 42))
	synced, err = svc.SynchronizeBillingPeriods(context.Background(), synced)
	require.NoError(t, err)
	assert.EqualValues(t, 42, synced.ChatCountCurrentPeriod)

	// Two cycles later the period lands on the correct boundary and the
	// counter resets, idempotently.
	fc.Set(fc.Now().AddDate(0, 0, 65))
	synced, err = svc.SynchronizeBillingPeriods(context.Background(), synced)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Date(2025, 8, 9, 12, 0, 0, 0, time.UTC), *synced.ChatPeriodStartedAt, time.Second)
	assert.WithinDuration(t, time.Date(2025, 9, 8, 12, 0, 0, 0, time.UTC), *synced.ChatPeriodEndsAt, time.Second)
	assert.EqualValues(t, 0, synced.ChatCountCurrentPeriod)

	again, err := svc.SynchronizeBillingPeriods(context.Background(), synced)
	require.NoError(t, err)
	assert.WithinDuration(t, *synced.ChatPeriodStartedAt, *again.ChatPeriodStartedAt, time.Second)
	assert.WithinDuration(t, *synced.ChatPeriodEndsAt, *again.ChatPeriodEndsAt, time.Second)
}

func TestCheckoutProratesUnusedAllowance(t *testing.T) {
	svc, db, _, plan := newTestService(t)
	companyID := snowflake.ID(100)
	sub := activeSub(t, svc, db, plan, companyID, 1)

	// 30 USD plan, 100 of 500 chats used, moving to a 50 USD plan: credit is
	// 30.00 * 400/500 = 24.00, total 26.00.
	require.NoError(t, db.Model(&plandomain.Plan{}).
		Where("id = ?", plan.ID).
		Update("price_cents", 3000).Error)
	require.NoError(t, db.Model(&subscriptiondomain.CompanySubscription{}).
		Where("id = ?", sub.ID).
		Update("chat_count_current_period", 100).Error)
	require.NoError(t, db.Create(&plandomain.Plan{
		ID:                    snowflake.ID(77),
		Code:                  "growth",
		Name:                  "Growth",
		Currency:              "USD",
		PriceCents:            5000,
		IncludedChats:         1000,
		OverageChatPriceCents: 8,
		AssistantLimit:        3,
		IsActive:              true,
		IsPublic:              true,
	}).Error)

	result, err := svc.Checkout(context.Background(), subscriptiondomain.CheckoutRequest{
		CompanyID: companyID,
		PlanCode:  "growth",
		Quantity:  1,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 5000, result.SubtotalCents)
	assert.EqualValues(t, 2400, result.CreditCents)
	assert.EqualValues(t, 2600, result.TotalCents)
	assert.Equal(t, subscriptiondomain.StatusActive, result.Subscription.Status)
	assert.Equal(t, snowflake.ID(77), result.Subscription.PlanID)
	assert.NotEmpty(t, result.InvoiceNumber)
}

func assertActive(t *testing.T, db *gorm.DB, id snowflake.ID, want bool) {
	t.Helper()
	var assistant assistantdomain.Assistant
	require.NoError(t, db.First(&assistant, "id = ?", id).Error)
	assert.Equal(t, want, assistant.IsActive, "assistant %d", id)
}
