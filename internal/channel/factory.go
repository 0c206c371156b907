// Package channel wires the per-channel adapters behind shared contracts.
package channel

import (
	"net/http"
	"time"

	assistantdomain "github.com/chatlyhq/chatly/internal/assistant/domain"
	channeldomain "github.com/chatlyhq/chatly/internal/channel/domain"
	"github.com/chatlyhq/chatly/internal/channel/instagram"
	"github.com/chatlyhq/chatly/internal/channel/telegram"
	"github.com/chatlyhq/chatly/internal/channel/widget"
	"github.com/chatlyhq/chatly/internal/config"
)

// Factory builds channel clients from binding credentials. One http.Client is
// shared; the per-call timeout keeps slow providers from hanging handlers.
type Factory struct {
	http *http.Client

	graphBaseURL    string
	telegramBaseURL string
}

func NewFactory(cfg config.Config) channeldomain.ClientFactory {
	return &Factory{
		http:            &http.Client{Timeout: 10 * time.Second},
		graphBaseURL:    cfg.GraphBaseURL,
		telegramBaseURL: cfg.TelegramBaseURL,
	}
}

func (f *Factory) For(binding *assistantdomain.AssistantChannel) (channeldomain.Client, error) {
	switch binding.Channel {
	case assistantdomain.ChannelInstagram:
		return instagram.NewClient(f.http, f.graphBaseURL, binding.AccessToken), nil
	case assistantdomain.ChannelTelegram:
		return telegram.NewClient(f.http, f.telegramBaseURL, binding.AccessToken), nil
	case assistantdomain.ChannelWidget:
		return widget.NewClient(), nil
	default:
		return nil, channeldomain.ErrUnsupportedChannel
	}
}
