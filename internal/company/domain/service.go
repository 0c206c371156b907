package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (*Company, error)
	GetOwner(ctx context.Context, company *Company) (*User, error)
	// SettingsFor returns the tenant's typed settings with defaults applied.
	SettingsFor(company *Company) Settings
	// UpdateSettings validates and persists settings, storing the normalized
	// form so readers never see a partial blob.
	UpdateSettings(ctx context.Context, companyID snowflake.ID, settings Settings) error
	Archive(ctx context.Context, companyID snowflake.ID) error
}

var (
	ErrCompanyNotFound = errors.New("company_not_found")
	ErrUserNotFound    = errors.New("user_not_found")
)
