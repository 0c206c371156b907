package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Assistant, error)
	// ListByCompany returns all of a company's assistants ordered by id
	// ascending. The deterministic order is what makes entitlement selection
	// stable.
	ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]Assistant, error)
	// SetActiveByIDs flips is_active in bulk: one UPDATE for the allowed set,
	// one for everything else, so concurrent subscription changes never
	// observe a partial per-row state.
	SetActiveByIDs(ctx context.Context, db *gorm.DB, companyID snowflake.ID, activeIDs []snowflake.ID) error
	DeactivateAll(ctx context.Context, db *gorm.DB, companyID snowflake.ID) error

	FindBindingByAccount(ctx context.Context, db *gorm.DB, channel Channel, externalAccountID string) (*AssistantChannel, error)
	CountBindings(ctx context.Context, db *gorm.DB, companyID snowflake.ID, channel Channel) (int64, error)
}
