package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/chatlyhq/chatly/internal/assistant"
	"github.com/chatlyhq/chatly/internal/channel"
	"github.com/chatlyhq/chatly/internal/chat"
	"github.com/chatlyhq/chatly/internal/clock"
	"github.com/chatlyhq/chatly/internal/company"
	"github.com/chatlyhq/chatly/internal/config"
	"github.com/chatlyhq/chatly/internal/conversation"
	"github.com/chatlyhq/chatly/internal/crm"
	"github.com/chatlyhq/chatly/internal/delivery"
	"github.com/chatlyhq/chatly/internal/invoice"
	"github.com/chatlyhq/chatly/internal/llm"
	"github.com/chatlyhq/chatly/internal/logger"
	"github.com/chatlyhq/chatly/internal/migration"
	"github.com/chatlyhq/chatly/internal/observability"
	"github.com/chatlyhq/chatly/internal/plan"
	"github.com/chatlyhq/chatly/internal/scheduler"
	"github.com/chatlyhq/chatly/internal/server"
	"github.com/chatlyhq/chatly/internal/storage"
	"github.com/chatlyhq/chatly/internal/subscription"
	"github.com/chatlyhq/chatly/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		storage.Module,

		// Domains
		plan.Module,
		company.Module,
		assistant.Module,
		subscription.Module,
		invoice.Module,
		chat.Module,
		crm.Module,
		llm.Module,
		delivery.Module,
		conversation.Module,
		channel.Module,

		// Edges
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
