package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dashboarddomain "github.com/smallbiznis/clientdesk/internal/billingdashboard/domain"
	clientdomain "github.com/smallbiznis/clientdesk/internal/client/domain"
	"github.com/smallbiznis/clientdesk/internal/config"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	obligationdomain "github.com/smallbiznis/clientdesk/internal/obligation/domain"
	"github.com/smallbiznis/clientdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/clientdesk/internal/observability/logger"
	obstracing "github.com/smallbiznis/clientdesk/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg)
}

// RunHTTP serves the engine on the configured address for the lifetime of
// the app.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	clientSvc    clientdomain.Service
	ledgerSvc    ledgerdomain.Service
	generator    obligationdomain.Service
	dashboardSvc dashboarddomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	ClientSvc    clientdomain.Service
	LedgerSvc    ledgerdomain.Service
	Generator    obligationdomain.Service
	DashboardSvc dashboarddomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		clientSvc:    p.ClientSvc,
		ledgerSvc:    p.LedgerSvc,
		generator:    p.Generator,
		dashboardSvc: p.DashboardSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Clients --------
	api.GET("/clients", s.ListClients)
	api.POST("/clients", s.CreateClient)
	api.GET("/clients/:id", s.GetClientByID)
	api.PATCH("/clients/:id", s.UpdateClient)
	api.DELETE("/clients/:id", s.DeleteClient)
	api.PUT("/clients/:id/billing", s.UpdateClientBilling)

	// -------- Payments --------
	api.GET("/payments", s.ListPayments)
	api.POST("/payments", s.CreatePayment)
	api.GET("/payments/:id", s.GetPaymentByID)
	api.PATCH("/payments/:id", s.UpdatePayment)
	api.DELETE("/payments/:id", s.DeletePayment)

	// -------- Billing triggers --------
	api.POST("/billing/generate", s.GenerateObligations)
	api.POST("/billing/reconcile", s.ReconcileStatuses)

	// -------- Reports --------
	reports := api.Group("/reports")
	{
		reports.GET("/overview", s.GetReportOverview)
		reports.GET("/monthly", s.GetReportMonthly)
		reports.GET("/growth", s.GetReportGrowth)
		reports.GET("/upcoming", s.GetReportUpcoming)
		reports.GET("/top-clients", s.GetReportTopClients)
		reports.GET("/completion", s.GetReportCompletion)
		reports.GET("/trend", s.GetReportTrend)
		reports.GET("/export.csv", s.ExportReportCSV)
	}
}
