package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatlyhq/chatly/internal/clock"
	"github.com/chatlyhq/chatly/internal/config"
	invoicedomain "github.com/chatlyhq/chatly/internal/invoice/domain"
	invoiceservice "github.com/chatlyhq/chatly/internal/invoice/service"
	"github.com/chatlyhq/chatly/internal/observability/metrics"
	plandomain "github.com/chatlyhq/chatly/internal/plan/domain"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Stubs --

type planStub struct {
	plan *plandomain.Plan
}

func (s *planStub) ListPublic(context.Context) ([]plandomain.Plan, error) { return nil, nil }
func (s *planStub) GetByID(context.Context, snowflake.ID) (*plandomain.Plan, error) {
	return s.plan, nil
}
func (s *planStub) GetByCode(context.Context, string) (*plandomain.Plan, error) {
	return s.plan, nil
}
func (s *planStub) DefaultPlan(context.Context) (*plandomain.Plan, error) { return s.plan, nil }

type subSvcStub struct {
	synced int
}

func (s *subSvcStub) SynchronizeBillingPeriods(_ context.Context, sub *subscriptiondomain.CompanySubscription) (*subscriptiondomain.CompanySubscription, error) {
	s.synced++
	return sub, nil
}

func (s *subSvcStub) EnsureCurrent(context.Context, snowflake.ID) (*subscriptiondomain.CompanySubscription, error) {
	return nil, nil
}
func (s *subSvcStub) GetByCompany(context.Context, snowflake.ID) (*subscriptiondomain.CompanySubscription, error) {
	return nil, nil
}
func (s *subSvcStub) AssistantLimit(context.Context, *subscriptiondomain.CompanySubscription) (int64, error) {
	return 0, nil
}
func (s *subSvcStub) IntegrationsLimit(context.Context, *subscriptiondomain.CompanySubscription) (int64, error) {
	return 0, nil
}
func (s *subSvcStub) IncludedChats(context.Context, *subscriptiondomain.CompanySubscription) (int64, error) {
	return 0, nil
}
func (s *subSvcStub) SyncAssistantAccess(context.Context, snowflake.ID) error { return nil }
func (s *subSvcStub) IncrementChatUsage(context.Context, snowflake.ID, int64) error {
	return nil
}
func (s *subSvcStub) Checkout(context.Context, subscriptiondomain.CheckoutRequest) (*subscriptiondomain.CheckoutResult, error) {
	return nil, nil
}
func (s *subSvcStub) Deactivate(context.Context, snowflake.ID) error { return nil }
func (s *subSvcStub) Update(context.Context, snowflake.ID, subscriptiondomain.UpdateRequest) (*subscriptiondomain.CompanySubscription, error) {
	return nil, nil
}

// -- Fixtures --

func newTestScheduler(t *testing.T, subSvc *subSvcStub) (*Scheduler, *gorm.DB, *plandomain.Plan) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriptiondomain.CompanySubscription{},
		&invoicedomain.Invoice{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2025, 6, 29, 3, 0, 0, 0, time.UTC))

	plan := &plandomain.Plan{
		ID:                    node.Generate(),
		Code:                  "growth",
		Name:                  "Growth",
		Currency:              "USD",
		PriceCents:            2900,
		IncludedChats:         500,
		OverageChatPriceCents: 10,
	}

	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fc,
	})

	sched := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		Metrics: metrics.New(prometheus.NewRegistry()),
		Clock:   fc,
		Config: config.Config{
			RenewalInterval:      "1h",
			RenewalLookaheadDays: 3,
		},
		PlanSvc:    &planStub{plan: plan},
		SubSvc:     subSvc,
		InvoiceSvc: invoiceSvc,
	})
	return sched, db, plan
}

func seedSubscription(t *testing.T, db *gorm.DB, plan *plandomain.Plan, periodEnd time.Time, used int64) *subscriptiondomain.CompanySubscription {
	t.Helper()

	start := periodEnd.AddDate(0, 0, -30)
	expires := periodEnd
	sub := &subscriptiondomain.CompanySubscription{
		ID:                     snowflake.ID(1001),
		CompanyID:              snowflake.ID(100),
		PlanID:                 plan.ID,
		Status:                 subscriptiondomain.StatusActive,
		Quantity:               1,
		BillingCycleDays:       30,
		ChatCountCurrentPeriod: used,
		ChatPeriodStartedAt:    &start,
		ChatPeriodEndsAt:       &periodEnd,
		StartsAt:               &start,
		ExpiresAt:              &expires,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func listInvoices(t *testing.T, db *gorm.DB) []invoicedomain.Invoice {
	t.Helper()
	var invoices []invoicedomain.Invoice
	require.NoError(t, db.Order("id ASC").Find(&invoices).Error)
	return invoices
}

// -- Tests --

func TestGenerateRenewalInvoicesRerunIsIdempotent(t *testing.T) {
	subSvc := &subSvcStub{}
	sched, db, plan := newTestScheduler(t, subSvc)
	seedSubscription(t, db, plan, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 520)

	processed, err := sched.GenerateRenewalInvoices(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	invoices := listInvoices(t, db)
	require.Len(t, invoices, 1)
	first := invoices[0]
	assert.Equal(t, invoicedomain.KindRenewal, first.Kind)
	assert.Equal(t, invoicedomain.StatusIssued, first.Status)
	assert.EqualValues(t, 2900, first.SubtotalCents)
	assert.EqualValues(t, 200, first.OverageCents)
	assert.EqualValues(t, 3100, first.TotalCents)
	assert.EqualValues(t, 500, first.ChatIncluded)
	assert.EqualValues(t, 520, first.ChatUsed)
	assert.Equal(t, 1, subSvc.synced)

	// Usage moved since the last pass; the same invoice is refreshed in
	// place rather than duplicated.
	require.NoError(t, db.Model(&subscriptiondomain.CompanySubscription{}).
		Where("id = ?", snowflake.ID(1001)).
		Update("chat_count_current_period", 530).Error)

	processed, err = sched.GenerateRenewalInvoices(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	invoices = listInvoices(t, db)
	require.Len(t, invoices, 1)
	assert.Equal(t, first.ID, invoices[0].ID)
	assert.Equal(t, first.Number, invoices[0].Number)
	assert.EqualValues(t, 300, invoices[0].OverageCents)
	assert.EqualValues(t, 3200, invoices[0].TotalCents)
}

func TestGenerateRenewalInvoicesLeavesPaidInvoiceAlone(t *testing.T) {
	sched, db, plan := newTestScheduler(t, &subSvcStub{})
	seedSubscription(t, db, plan, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 520)

	_, err := sched.GenerateRenewalInvoices(context.Background(), 3)
	require.NoError(t, err)

	invoices := listInvoices(t, db)
	require.Len(t, invoices, 1)
	require.NoError(t, db.Model(&invoicedomain.Invoice{}).
		Where("id = ?", invoices[0].ID).
		Update("status", invoicedomain.StatusPaid).Error)

	require.NoError(t, db.Model(&subscriptiondomain.CompanySubscription{}).
		Where("id = ?", snowflake.ID(1001)).
		Update("chat_count_current_period", 600).Error)

	_, err = sched.GenerateRenewalInvoices(context.Background(), 3)
	require.NoError(t, err)

	invoices = listInvoices(t, db)
	require.Len(t, invoices, 1)
	assert.EqualValues(t, 3100, invoices[0].TotalCents)
	assert.EqualValues(t, 520, invoices[0].ChatUsed)
}

func TestGenerateRenewalInvoicesSkipsOutsideLookahead(t *testing.T) {
	sched, db, plan := newTestScheduler(t, &subSvcStub{})
	seedSubscription(t, db, plan, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 100)

	processed, err := sched.GenerateRenewalInvoices(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Empty(t, listInvoices(t, db))
}

func TestRunOnceWithoutRedisRunsUnguarded(t *testing.T) {
	sched, db, plan := newTestScheduler(t, &subSvcStub{})
	seedSubscription(t, db, plan, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 480)

	require.NoError(t, sched.RunOnce(context.Background()))

	invoices := listInvoices(t, db)
	require.Len(t, invoices, 1)
	assert.EqualValues(t, 2900, invoices[0].TotalCents)
	assert.EqualValues(t, 0, invoices[0].OverageCents)
}
