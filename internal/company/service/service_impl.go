package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	"github.com/chatlyhq/chatly/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	companyRepo repository.Repository[companydomain.Company]
	userRepo    repository.Repository[companydomain.User]
}

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

func NewService(p ServiceParam) companydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("company.service"),

		companyRepo: repository.ProvideStore[companydomain.Company](p.DB),
		userRepo:    repository.ProvideStore[companydomain.User](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*companydomain.Company, error) {
	company, err := s.companyRepo.FindOne(ctx, &companydomain.Company{ID: id})
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, companydomain.ErrCompanyNotFound
	}
	return company, nil
}

func (s *Service) GetOwner(ctx context.Context, company *companydomain.Company) (*companydomain.User, error) {
	user, err := s.userRepo.FindOne(ctx, &companydomain.User{ID: company.OwnerUserID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, companydomain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) SettingsFor(company *companydomain.Company) companydomain.Settings {
	settings := companydomain.ParseSettings(company.Settings)
	if settings.Timezone == "UTC" && company.Timezone != "" {
		settings.Timezone = company.Timezone
	}
	return settings
}

func (s *Service) UpdateSettings(ctx context.Context, companyID snowflake.ID, settings companydomain.Settings) error {
	encoded, err := companydomain.EncodeSettings(settings)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&companydomain.Company{}).
		Where("id = ?", companyID).
		Updates(map[string]any{
			"settings":   encoded,
			"timezone":   settings.Timezone,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (s *Service) Archive(ctx context.Context, companyID snowflake.ID) error {
	return s.db.WithContext(ctx).
		Model(&companydomain.Company{}).
		Where("id = ?", companyID).
		Updates(map[string]any{
			"status":     companydomain.CompanyStatusArchived,
			"updated_at": time.Now().UTC(),
		}).Error
}
