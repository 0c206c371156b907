package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() assistantdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*assistantdomain.Assistant, error) {
	var assistant assistantdomain.Assistant
	err := db.WithContext(ctx).Where("id = ?", id).First(&assistant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assistant, nil
}

func (r *repo) ListByCompany(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]assistantdomain.Assistant, error) {
	var assistants []assistantdomain.Assistant
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id ASC").
		Find(&assistants).Error
	return assistants, err
}

func (r *repo) SetActiveByIDs(ctx context.Context, db *gorm.DB, companyID snowflake.ID, activeIDs []snowflake.ID) error {
	now := time.Now().UTC()
	if len(activeIDs) == 0 {
		return r.DeactivateAll(ctx, db, companyID)
	}

	if err := db.WithContext(ctx).
		Model(&assistantdomain.Assistant{}).
		Where("company_id = ? AND id IN ? AND is_active = ?", companyID, activeIDs, false).
		Updates(map[string]any{"is_active": true, "updated_at": now}).Error; err != nil {
		return err
	}

	return db.WithContext(ctx).
		Model(&assistantdomain.Assistant{}).
		Where("company_id = ? AND id NOT IN ? AND is_active = ?", companyID, activeIDs, true).
		Updates(map[string]any{"is_active": false, "updated_at": now}).Error
}

func (r *repo) DeactivateAll(ctx context.Context, db *gorm.DB, companyID snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&assistantdomain.Assistant{}).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()}).Error
}

func (r *repo) FindBindingByAccount(ctx context.Context, db *gorm.DB, channel assistantdomain.Channel, externalAccountID string) (*assistantdomain.AssistantChannel, error) {
	var binding assistantdomain.AssistantChannel
	err := db.WithContext(ctx).
		Where("channel = ? AND external_account_id = ?", channel, externalAccountID).
		First(&binding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &binding, nil
}

func (r *repo) CountBindings(ctx context.Context, db *gorm.DB, companyID snowflake.ID, channel assistantdomain.Channel) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&assistantdomain.AssistantChannel{}).
		Where("company_id = ? AND channel = ? AND is_active = ?", companyID, channel, true).
		Count(&count).Error
	return count, err
}
