package channel

import (
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
	"github.com/chatlyhq/chatly/internal/channel/instagram"
	"github.com/chatlyhq/chatly/internal/channel/telegram"
	"github.com/chatlyhq/chatly/internal/channel/widget"
	"go.uber.org/fx"
)

func asNormalizer(f any) any {
	return fx.Annotate(f,
		fx.As(new(channeldomain.Normalizer)),
		fx.ResultTags(`group:"channel.normalizers"`),
	)
}

var Module = fx.Module("channel",
	fx.Provide(
		NewFactory,
		NewPipeline,
		asNormalizer(instagram.NewNormalizer),
		asNormalizer(telegram.NewNormalizer),
		asNormalizer(widget.NewNormalizer),
	),
)
