package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatlyhq/chatly/internal/billing/ledger"
	invoicedomain "github.com/chatlyhq/chatly/internal/invoice/domain"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"github.com/chatlyhq/chatly/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Checkout implements domain.Service: moves the company onto the requested
// plan, prorating against the unused allowance of the current subscription,
// issues the invoice and activates the new period.
func (s *Service) Checkout(ctx context.Context, req subscriptiondomain.CheckoutRequest) (*subscriptiondomain.CheckoutResult, error) {
	if req.Quantity < 1 {
		return nil, subscriptiondomain.ErrInvalidQuantity
	}

	target, err := s.plansvc.GetByCode(ctx, strings.TrimSpace(req.PlanCode))
	if err != nil {
		return nil, subscriptiondomain.ErrInvalidPlan
	}
	if !target.IsActive {
		return nil, subscriptiondomain.ErrInvalidPlan
	}

	sub, err := s.EnsureCurrent(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	var currentView *ledger.SubscriptionView
	if sub.IsActiveAt(now) {
		currentPlan, err := s.loadPlan(ctx, sub)
		if err != nil {
			return nil, err
		}
		currentView = &ledger.SubscriptionView{
			Active:   true,
			Quantity: sub.Quantity,
			Plan: ledger.PlanView{
				Currency:   currentPlan.Currency,
				PriceCents: currentPlan.PriceCents,
			},
			IncludedChatsResolved: sub.ResolvedIncludedChats(currentPlan),
			ChatsUsed:             sub.ChatCountCurrentPeriod,
		}
	}

	totals := ledger.PlanChangeTotals(currentView, ledger.PlanView{
		Currency:   target.Currency,
		PriceCents: target.PriceCents,
	}, req.Quantity)

	cycle := sub.BillingCycleDays
	if cycle <= 0 {
		cycle = 30
	}
	periodStart := now
	periodEnd := now.AddDate(0, 0, cycle)

	invoice := &invoicedomain.Invoice{
		CompanyID:      sub.CompanyID,
		SubscriptionID: sub.ID,
		PlanID:         target.ID,
		Kind:           invoicedomain.KindPlanChange,
		Status:         invoicedomain.StatusIssued,
		Currency:       target.Currency,
		SubtotalCents:  totals.SubtotalCents,
		CreditCents:    totals.CreditCents,
		TotalCents:     totals.TotalCents,
		PeriodStart:    &periodStart,
		PeriodEnd:      &periodEnd,
		IssuedAt:       &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&subscriptiondomain.CompanySubscription{}).
			Where("id = ?", sub.ID).
			Updates(map[string]any{
				"plan_id":                   target.ID,
				"status":                    subscriptiondomain.StatusActive,
				"quantity":                  req.Quantity,
				"starts_at":                 periodStart,
				"expires_at":                periodEnd,
				"renewal_due_at":            periodEnd,
				"chat_period_started_at":    periodStart,
				"chat_period_ends_at":       periodEnd,
				"chat_count_current_period": 0,
				"updated_at":                now,
			}).Error; err != nil {
			return err
		}

		return s.insertInvoiceWithUniqueNumber(ctx, tx, invoice, now)
	})
	if err != nil {
		return nil, err
	}

	if err := s.SyncAssistantAccess(ctx, req.CompanyID); err != nil {
		s.log.Warn("assistant access sync after checkout failed",
			zap.String("company_id", req.CompanyID.String()), zap.Error(err))
	}

	fresh, err := s.subRepo.FindOne(ctx, &subscriptiondomain.CompanySubscription{ID: sub.ID})
	if err != nil {
		return nil, err
	}

	return &subscriptiondomain.CheckoutResult{
		Subscription:  fresh,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		SubtotalCents: totals.SubtotalCents,
		CreditCents:   totals.CreditCents,
		TotalCents:    totals.TotalCents,
	}, nil
}

// insertInvoiceWithUniqueNumber assigns a fresh id/number and retries on the
// unlikely number collision.
func (s *Service) insertInvoiceWithUniqueNumber(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, at time.Time) error {
	const maxAttempts = 5
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		invoice.ID = s.genID.Generate()
		invoice.Number = ledger.InvoiceNumber(at)
		lastErr = tx.WithContext(ctx).Create(invoice).Error
		if lastErr == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// Deactivate implements domain.Service.
func (s *Service) Deactivate(ctx context.Context, companyID snowflake.ID) error {
	sub, err := s.GetByCompany(ctx, companyID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if err := s.subRepo.Update(ctx, sub.ID.String(), map[string]any{
		"status":     subscriptiondomain.StatusCanceled,
		"updated_at": now,
	}); err != nil {
		return err
	}
	return s.SyncAssistantAccess(ctx, companyID)
}

// Update implements domain.Service: the manual admin edit with validation.
func (s *Service) Update(ctx context.Context, companyID snowflake.ID, req subscriptiondomain.UpdateRequest) (*subscriptiondomain.CompanySubscription, error) {
	sub, err := s.GetByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": s.clock.Now()}

	if req.Status != nil {
		if !validStatus(*req.Status) {
			return nil, subscriptiondomain.ErrInvalidStatus
		}
		updates["status"] = *req.Status
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return nil, subscriptiondomain.ErrInvalidQuantity
		}
		updates["quantity"] = *req.Quantity
	}
	if req.PlanCode != nil {
		plan, err := s.plansvc.GetByCode(ctx, strings.TrimSpace(*req.PlanCode))
		if err != nil {
			return nil, subscriptiondomain.ErrInvalidPlan
		}
		updates["plan_id"] = plan.ID
	}

	if err := s.subRepo.Update(ctx, sub.ID.String(), updates); err != nil {
		return nil, err
	}
	if err := s.SyncAssistantAccess(ctx, companyID); err != nil {
		return nil, err
	}
	return s.subRepo.FindOne(ctx, &subscriptiondomain.CompanySubscription{ID: sub.ID})
}

func validStatus(status subscriptiondomain.Status) bool {
	for _, s := range subscriptiondomain.ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}
