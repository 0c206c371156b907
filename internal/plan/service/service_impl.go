package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/chatlyhq/chatly/internal/config"
	plandomain "github.com/chatlyhq/chatly/internal/plan/domain"
	"github.com/chatlyhq/chatly/pkg/db/option"
	"github.com/chatlyhq/chatly/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	defaultCode string
	planRepo    repository.Repository[plandomain.Plan]
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("plan.service"),

		defaultCode: p.Config.DefaultPlanCode,
		planRepo:    repository.ProvideStore[plandomain.Plan](p.DB),
	}
}

func (s *Service) ListPublic(ctx context.Context) ([]plandomain.Plan, error) {
	rows, err := s.planRepo.Find(ctx,
		&plandomain.Plan{IsActive: true, IsPublic: true},
		option.WithOrder("sort_order ASC, id ASC"),
	)
	if err != nil {
		return nil, err
	}
	plans := make([]plandomain.Plan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, *row)
	}
	return plans, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	plan, err := s.planRepo.FindOne(ctx, &plandomain.Plan{ID: id})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*plandomain.Plan, error) {
	plan, err := s.planRepo.FindOne(ctx, &plandomain.Plan{Code: code})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) DefaultPlan(ctx context.Context) (*plandomain.Plan, error) {
	if s.defaultCode != "" {
		plan, err := s.planRepo.FindOne(ctx, &plandomain.Plan{Code: s.defaultCode, IsActive: true})
		if err != nil {
			return nil, err
		}
		if plan != nil {
			return plan, nil
		}
		s.log.Warn("configured default plan not found, falling back", zap.String("code", s.defaultCode))
	}

	plan, err := s.planRepo.FindOne(ctx,
		&plandomain.Plan{IsActive: true},
		option.WithWhere("is_enterprise = ?", false),
		option.WithOrder("sort_order ASC, id ASC"),
	)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrNoDefaultPlan
	}
	return plan, nil
}
