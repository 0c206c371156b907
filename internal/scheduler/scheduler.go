// Package scheduler drives the periodic billing work: issuing renewal
// invoices ahead of each subscription's usage period end.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/chatlyhq/chatly/internal/billing/ledger"
	"github.com/chatlyhq/chatly/internal/clock"
	"github.com/chatlyhq/chatly/internal/config"
	invoicedomain "github.com/chatlyhq/chatly/internal/invoice/domain"
	"github.com/chatlyhq/chatly/internal/observability/metrics"
	plandomain "github.com/chatlyhq/chatly/internal/plan/domain"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"github.com/chatlyhq/chatly/pkg/db/option"
	"github.com/chatlyhq/chatly/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	renewalJob     = "renewal_invoices"
	renewalLockKey = "chatly:jobs:renewal_invoices"
	renewalLockTTL = 10 * time.Minute

	defaultInterval = time.Hour
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Config  config.Config

	PlanSvc    plandomain.Service
	SubSvc     subscriptiondomain.Service
	InvoiceSvc invoicedomain.Service
	Locker     *Locker
}

type Scheduler struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	clock   clock.Clock

	interval  time.Duration
	lookahead int

	subRepo    repository.Repository[subscriptiondomain.CompanySubscription]
	planSvc    plandomain.Service
	subSvc     subscriptiondomain.Service
	invoiceSvc invoicedomain.Service
	locker     *Locker
}

func New(p Params) *Scheduler {
	interval, err := time.ParseDuration(p.Config.RenewalInterval)
	if err != nil || interval <= 0 {
		interval = defaultInterval
	}
	lookahead := p.Config.RenewalLookaheadDays
	if lookahead < 0 {
		lookahead = 0
	}

	return &Scheduler{
		log:     p.Log.Named("scheduler"),
		metrics: p.Metrics,
		clock:   p.Clock,

		interval:  interval,
		lookahead: lookahead,

		subRepo:    repository.ProvideStore[subscriptiondomain.CompanySubscription](p.DB),
		planSvc:    p.PlanSvc,
		subSvc:     p.SubSvc,
		invoiceSvc: p.InvoiceSvc,
		locker:     p.Locker,
	}
}

// GenerateRenewalInvoices issues or refreshes the renewal invoice for every
// active subscription whose usage period ends within daysAhead days, then
// rolls elapsed periods forward. Re-running is safe: the invoice layer
// updates non-final invoices for the same period in place.
func (s *Scheduler) GenerateRenewalInvoices(ctx context.Context, daysAhead int) (int, error) {
	now := s.clock.Now()
	horizon := now.AddDate(0, 0, daysAhead)

	subs, err := s.subRepo.Find(ctx,
		&subscriptiondomain.CompanySubscription{Status: subscriptiondomain.StatusActive},
		option.WithWhere("chat_period_ends_at IS NOT NULL AND chat_period_ends_at <= ?", horizon),
		option.WithOrder("id ASC"),
	)
	if err != nil {
		s.metrics.JobErrors.WithLabelValues(renewalJob).Inc()
		return 0, err
	}

	processed := 0
	var jobErr error
	for _, sub := range subs {
		if ctx.Err() != nil {
			return processed, errors.Join(jobErr, ctx.Err())
		}
		if err := s.invoiceSubscription(ctx, sub, now); err != nil {
			jobErr = errors.Join(jobErr, err)
			s.metrics.JobErrors.WithLabelValues(renewalJob).Inc()
			s.log.Warn("renewal invoicing failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err),
			)
			continue
		}
		processed++
	}
	return processed, jobErr
}

func (s *Scheduler) invoiceSubscription(ctx context.Context, sub *subscriptiondomain.CompanySubscription, now time.Time) error {
	if sub.ChatPeriodStartedAt == nil || sub.ChatPeriodEndsAt == nil {
		return nil
	}

	plan, err := s.planSvc.GetByID(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	view := ledger.SubscriptionView{
		Active:   sub.IsActiveAt(now),
		Quantity: sub.Quantity,
		Plan: ledger.PlanView{
			Currency:              plan.Currency,
			PriceCents:            plan.PriceCents,
			IncludedChats:         plan.IncludedChats,
			OverageChatPriceCents: plan.OverageChatPriceCents,
		},
		IncludedChatsResolved: sub.ResolvedIncludedChats(plan),
		ChatsUsed:             sub.ChatCountCurrentPeriod,
		OverageCentsResolved:  sub.ResolvedOverageChatPriceCents(plan),
	}
	totals := ledger.RenewalForPeriod(view)

	invoice, err := s.invoiceSvc.UpsertRenewal(ctx, sub, *sub.ChatPeriodStartedAt, *sub.ChatPeriodEndsAt, totals, plan.Currency)
	if err != nil {
		return err
	}

	s.log.Info("renewal invoice upserted",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("invoice_number", invoice.Number),
		zap.Int64("total_cents", invoice.TotalCents),
	)

	// Roll the usage period forward only after its snapshot is invoiced, so
	// the counter reset never races the pricing above.
	_, err = s.subSvc.SynchronizeBillingPeriods(ctx, sub)
	return err
}

// RunOnce executes a single renewal pass, guarded by the distributed lock
// when redis is configured. Without redis the pass runs unguarded, which is
// fine for a single replica.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, renewalLockKey, renewalLockTTL)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug("renewal lock held by another replica")
			return nil
		}
		defer func() {
			if err := s.locker.Release(ctx, renewalLockKey, token); err != nil {
				s.log.Warn("renewal lock release failed", zap.Error(err))
			}
		}()
	}

	s.metrics.JobRuns.WithLabelValues(renewalJob).Inc()
	processed, err := s.GenerateRenewalInvoices(ctx, s.lookahead)
	if processed > 0 {
		s.log.Info("renewal pass finished", zap.Int("processed", processed))
	}
	return err
}

// RunForever runs a pass immediately and then on every interval tick until
// the context is canceled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
