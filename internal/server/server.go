package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/semah/internal/authorization"
	checkoutdomain "github.com/smallbiznis/semah/internal/checkout/domain"
	"github.com/smallbiznis/semah/internal/config"
	"github.com/smallbiznis/semah/internal/identity"
	"github.com/smallbiznis/semah/internal/observability"
	obsmiddleware "github.com/smallbiznis/semah/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/semah/internal/observability/metrics"
	obstracing "github.com/smallbiznis/semah/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}))
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	verifier    *identity.Verifier
	authzSvc    authorization.Service
	checkoutSvc checkoutdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Verifier    *identity.Verifier
	AuthzSvc    authorization.Service
	CheckoutSvc checkoutdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		verifier:    p.Verifier,
		authzSvc:    p.AuthzSvc,
		checkoutSvc: p.CheckoutSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Checkout --------
	checkout := api.Group("/checkout")
	{
		checkout.POST("/purchase",
			s.AuthRequired(),
			s.authorizeAction(authorization.ObjectCheckout, authorization.ActionCheckoutPurchase),
			s.Purchase,
		)
		checkout.POST("/complete",
			s.AuthRequired(),
			s.authorizeAction(authorization.ObjectCheckout, authorization.ActionCheckoutComplete),
			s.CompleteCheckout,
		)
		// Browser redirect from the processor; no bearer token is attached.
		checkout.GET("/success", s.OptionalAuth(), s.CheckoutSuccess)
	}

	// -------- Payment Webhooks --------
	api.POST("/webhooks/payments", s.HandlePaymentWebhook)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
