package crm

import (
	"github.com/chatlyhq/chatly/internal/crm/service"
	"go.uber.org/fx"
)

var Module = fx.Module("crm.service",
	fx.Provide(
		service.NewCalendarTaskSync,
		service.NewService,
	),
)
