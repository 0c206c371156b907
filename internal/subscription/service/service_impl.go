package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	"github.com/chatlyhq/chatly/internal/clock"
	invoicedomain "github.com/chatlyhq/chatly/internal/invoice/domain"
	plandomain "github.com/chatlyhq/chatly/internal/plan/domain"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"github.com/chatlyhq/chatly/pkg/db"
	"github.com/chatlyhq/chatly/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock

	subRepo     repository.Repository[subscriptiondomain.CompanySubscription]
	invoiceRepo repository.Repository[invoicedomain.Invoice]

	plansvc       plandomain.Service
	assistantRepo assistantdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	PlanSvc       plandomain.Service
	AssistantRepo assistantdomain.Repository
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID: p.GenID,
		clock: p.Clock,

		subRepo:     repository.ProvideStore[subscriptiondomain.CompanySubscription](p.DB),
		invoiceRepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),

		plansvc:       p.PlanSvc,
		assistantRepo: p.AssistantRepo,
	}
}

// EnsureCurrent implements domain.Service.
func (s *Service) EnsureCurrent(ctx context.Context, companyID snowflake.ID) (*subscriptiondomain.CompanySubscription, error) {
	existing, err := s.subRepo.FindOne(ctx, &subscriptiondomain.CompanySubscription{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	plan, err := s.plansvc.DefaultPlan(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sub := &subscriptiondomain.CompanySubscription{
		ID:               s.genID.Generate(),
		CompanyID:        companyID,
		PlanID:           plan.ID,
		Status:           subscriptiondomain.StatusInactive,
		Quantity:         0,
		BillingCycleDays: 30,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		// A concurrent request may have created it first; the unique index
		// on company_id decides the winner.
		if db.IsDuplicateKeyErr(err) {
			return s.subRepo.FindOne(ctx, &subscriptiondomain.CompanySubscription{CompanyID: companyID})
		}
		return nil, err
	}
	return sub, nil
}

func (s *Service) GetByCompany(ctx context.Context, companyID snowflake.ID) (*subscriptiondomain.CompanySubscription, error) {
	sub, err := s.subRepo.FindOne(ctx, &subscriptiondomain.CompanySubscription{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) loadPlan(ctx context.Context, sub *subscriptiondomain.CompanySubscription) (*plandomain.Plan, error) {
	return s.plansvc.GetByID(ctx, sub.PlanID)
}

func (s *Service) AssistantLimit(ctx context.Context, sub *subscriptiondomain.CompanySubscription) (int64, error) {
	plan, err := s.loadPlan(ctx, sub)
	if err != nil {
		return 0, err
	}
	return sub.ResolvedAssistantLimit(plan), nil
}

func (s *Service) IntegrationsLimit(ctx context.Context, sub *subscriptiondomain.CompanySubscription) (int64, error) {
	plan, err := s.loadPlan(ctx, sub)
	if err != nil {
		return 0, err
	}
	return sub.ResolvedIntegrationsLimit(plan), nil
}

func (s *Service) IncludedChats(ctx context.Context, sub *subscriptiondomain.CompanySubscription) (int64, error) {
	plan, err := s.loadPlan(ctx, sub)
	if err != nil {
		return 0, err
	}
	return sub.ResolvedIncludedChats(plan), nil
}

// SyncAssistantAccess implements domain.Service. The entitled set is the
// first `limit` assistants ordered by id ascending; activation happens via
// set-based bulk updates.
func (s *Service) SyncAssistantAccess(ctx context.Context, companyID snowflake.ID) error {
	sub, err := s.subRepo.FindOne(ctx, &subscriptiondomain.CompanySubscription{CompanyID: companyID})
	if err != nil {
		return err
	}
	if sub == nil {
		return s.assistantRepo.DeactivateAll(ctx, s.db, companyID)
	}

	now := s.clock.Now()
	if sub.Status == subscriptiondomain.StatusActive && sub.ExpiresAt != nil && !now.Before(*sub.ExpiresAt) {
		sub.Status = subscriptiondomain.StatusExpired
		if err := s.subRepo.Update(ctx, sub.ID.String(), map[string]any{
			"status":     subscriptiondomain.StatusExpired,
			"updated_at": now,
		}); err != nil {
			return err
		}
	}

	if !sub.IsActiveAt(now) {
		return s.assistantRepo.DeactivateAll(ctx, s.db, companyID)
	}

	limit, err := s.AssistantLimit(ctx, sub)
	if err != nil {
		return err
	}
	if limit <= 0 {
		return s.assistantRepo.DeactivateAll(ctx, s.db, companyID)
	}

	assistants, err := s.assistantRepo.ListByCompany(ctx, s.db, companyID)
	if err != nil {
		return err
	}

	allowed := make([]snowflake.ID, 0, limit)
	for _, a := range assistants {
		if int64(len(allowed)) >= limit {
			break
		}
		allowed = append(allowed, a.ID)
	}
	return s.assistantRepo.SetActiveByIDs(ctx, s.db, companyID, allowed)
}

// IncrementChatUsage implements domain.Service with a storage-side atomic
// increment so parallel webhook deliveries never lose counts.
func (s *Service) IncrementChatUsage(ctx context.Context, companyID snowflake.ID, n int64) error {
	if n <= 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&subscriptiondomain.CompanySubscription{}).
		Where("company_id = ?", companyID).
		Updates(map[string]any{
			"chat_count_current_period": gorm.Expr("chat_count_current_period + ?", n),
			"updated_at":                s.clock.Now(),
		}).Error
}

// SynchronizeBillingPeriods implements domain.Service. The roll-forward is
// guarded by the stored period end, so concurrent calls within the same
// period leave the counter untouched.
func (s *Service) SynchronizeBillingPeriods(ctx context.Context, sub *subscriptiondomain.CompanySubscription) (*subscriptiondomain.CompanySubscription, error) {
	now := s.clock.Now()

	if sub.Status != subscriptiondomain.StatusActive {
		return sub, nil
	}

	cycle := sub.BillingCycleDays
	if cycle <= 0 {
		cycle = 30
	}

	if sub.ChatPeriodStartedAt == nil || sub.ChatPeriodEndsAt == nil {
		start := now
		end := start.AddDate(0, 0, cycle)
		err := s.db.WithContext(ctx).
			Model(&subscriptiondomain.CompanySubscription{}).
			Where("id = ? AND chat_period_ends_at IS NULL", sub.ID).
			Updates(map[string]any{
				"chat_period_started_at":    start,
				"chat_period_ends_at":       end,
				"chat_count_current_period": 0,
				"updated_at":                now,
			}).Error
		if err != nil {
			return nil, err
		}
		return s.subRepo.FindOne(ctx, &subscriptiondomain.CompanySubscription{ID: sub.ID})
	}

	if now.Before(*sub.ChatPeriodEndsAt) {
		return sub, nil
	}

	// Advance in whole cycles so a long idle gap lands on the correct period
	// boundary rather than "now".
	start := *sub.ChatPeriodEndsAt
	end := start.AddDate(0, 0, cycle)
	for !now.Before(end) {
		start = end
		end = start.AddDate(0, 0, cycle)
	}

	err := s.db.WithContext(ctx).
		Model(&subscriptiondomain.CompanySubscription{}).
		Where("id = ? AND chat_period_ends_at = ?", sub.ID, *sub.ChatPeriodEndsAt).
		Updates(map[string]any{
			"chat_period_started_at":    start,
			"chat_period_ends_at":       end,
			"chat_count_current_period": 0,
			"updated_at":                now,
		}).Error
	if err != nil {
		return nil, err
	}
	return s.subRepo.FindOne(ctx, &subscriptiondomain.CompanySubscription{ID: sub.ID})
}
