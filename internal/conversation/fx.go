package conversation

import (
	"github.com/chatlyhq/chatly/internal/conversation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversation.driver",
	fx.Provide(service.NewDriver),
)
