package assistant

import (
	"github.com/chatlyhq/chatly/internal/assistant/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("assistant",
	fx.Provide(repository.Provide),
)
