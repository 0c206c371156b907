// Package observability wires metrics instruments into the fx graph.
package observability

import (
	"github.com/chatlyhq/chatly/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	return reg
}

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer { return reg }

// Module provides the prometheus registry and application metrics.
var Module = fx.Module("observability",
	fx.Provide(
		provideRegistry,
		provideRegisterer,
		metrics.New,
	),
)
