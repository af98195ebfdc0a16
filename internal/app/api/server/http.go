package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/membercard/internal/app/api/handlers"
	mw "github.com/fatflowers/membercard/internal/app/api/middleware"
	"github.com/fatflowers/membercard/internal/app/service/ledger"
	"github.com/fatflowers/membercard/internal/app/service/payment"
	"github.com/fatflowers/membercard/internal/app/service/pricing"
	"github.com/fatflowers/membercard/internal/app/service/quota"
	cfgpkg "github.com/fatflowers/membercard/pkg/config"
	metrics "github.com/fatflowers/membercard/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Request tracing only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config,
	ledgerSvc *ledger.Service, pricingSvc *pricing.Service,
	paymentSvc *payment.Service, quotaSvc *quota.Service) {
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: health + provider callback. The callback authenticates
	// itself with the payload signature, never a bearer token.
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	handlers.RegisterPaymentCallbackRoutes(pub.Group("/api"), paymentSvc)

	// Authenticated user APIs
	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.JWTAuthMiddleware(cfg.Auth.JWTSecret))
	handlers.RegisterCardRoutes(apiV1, ledgerSvc, pricingSvc)
	handlers.RegisterPaymentRoutes(apiV1, paymentSvc)

	// Admin APIs
	admin := apiV1.Group("/admin")
	admin.Use(mw.AdminOnlyMiddleware())
	handlers.RegisterAdminRoutes(admin, ledgerSvc, pricingSvc, paymentSvc, quotaSvc, cfg)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
