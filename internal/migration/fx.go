package migration

import (
	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	chatdomain "github.com/chatlyhq/chatly/internal/chat/domain"
	companydomain "github.com/chatlyhq/chatly/internal/company/domain"
	"github.com/chatlyhq/chatly/internal/config"
	crmdomain "github.com/chatlyhq/chatly/internal/crm/domain"
	invoicedomain "github.com/chatlyhq/chatly/internal/invoice/domain"
	plandomain "github.com/chatlyhq/chatly/internal/plan/domain"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned SQL schema is postgres-flavored; the mysql and sqlite
		// dialects (dev and test setups) take the gorm-derived schema instead.
		if cfg.DBType != "postgres" {
			return autoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)

func autoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&companydomain.User{},
		&companydomain.Company{},
		&plandomain.Plan{},
		&subscriptiondomain.CompanySubscription{},
		&invoicedomain.Invoice{},
		&assistantdomain.Assistant{},
		&assistantdomain.AssistantChannel{},
		&chatdomain.Chat{},
		&chatdomain.ChatMessage{},
		&crmdomain.Client{},
		&crmdomain.Order{},
		&crmdomain.CalendarEvent{},
		&crmdomain.Task{},
		&crmdomain.Question{},
	)
}
