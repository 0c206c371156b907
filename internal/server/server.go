// Package server exposes the HTTP surface: webhook ingress, the billing API,
// metrics and health endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/chatlyhq/chatly/internal/channel"
	"github.com/chatlyhq/chatly/internal/config"
	invoicedomain "github.com/chatlyhq/chatly/internal/invoice/domain"
	obslogger "github.com/chatlyhq/chatly/internal/observability/logger"
	"github.com/chatlyhq/chatly/internal/observability/metrics"
	plandomain "github.com/chatlyhq/chatly/internal/plan/domain"
	"github.com/chatlyhq/chatly/internal/storage"
	subscriptiondomain "github.com/chatlyhq/chatly/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger, m *metrics.Metrics, reg *prometheus.Registry) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log.Named("http"), m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.Static("/files", storage.Dir(cfg))

	return r
}

type Server struct {
	engine *gin.Engine
	log    *zap.Logger

	pipeline   *channel.Pipeline
	planSvc    plandomain.Service
	subSvc     subscriptiondomain.Service
	invoiceSvc invoicedomain.Service
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Log *zap.Logger

	Pipeline   *channel.Pipeline
	PlanSvc    plandomain.Service
	SubSvc     subscriptiondomain.Service
	InvoiceSvc invoicedomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine: p.Gin,
		log:    p.Log.Named("server"),

		pipeline:   p.Pipeline,
		planSvc:    p.PlanSvc,
		subSvc:     p.SubSvc,
		invoiceSvc: p.InvoiceSvc,
	}

	s.registerWebhookRoutes()
	s.registerBillingRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:channel", s.HandleWebhook)
}

func (s *Server) registerBillingRoutes() {
	api := s.engine.Group("/api/v1")

	api.GET("/plans", s.ListPlans)
	api.GET("/companies/:id/subscription", s.GetSubscription)
	api.POST("/companies/:id/subscription/checkout", s.Checkout)
	api.GET("/companies/:id/invoices", s.ListInvoices)
	api.POST("/invoices/:id/pay", s.PayInvoice)
	api.GET("/invoices/:id/pdf", s.InvoicePDF)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
