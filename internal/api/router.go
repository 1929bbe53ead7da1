package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/schooltrack/alert-engine/docs"
	"github.com/schooltrack/alert-engine/internal/api/handler"
	"github.com/schooltrack/alert-engine/internal/api/middleware"
	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/service"
	"github.com/schooltrack/alert-engine/pkg/logger"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	JWTSecret string
	Mongo     *mongo.Database
	Redis     *redis.Client
	Telemetry handler.TelemetryFreshness
	// TelemetryMaxAge is how old the position snapshot may get before
	// readiness reports it stale.
	TelemetryMaxAge time.Duration

	Scopes      service.ScopeResolver
	Hub         *service.Hub
	Eta         *service.EtaService
	Preferences service.PreferenceLookup

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace: "tracker",
		Skipper: func(c echo.Context) bool {
			// the live channel is a long-lived upgrade, not a request
			return c.Path() == "/ws" || c.Path() == "/metrics"
		},
	}))

	// --- Health probes and tooling (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(d.Mongo, d.Redis, d.Telemetry, d.TelemetryMaxAge).Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Live channel; viewers authenticate in-band ---
	live := handler.NewLiveHandler(d.JWTSecret, d.Scopes, d.Hub, d.Eta, d.Preferences, d.Log)
	e.GET("/ws", live.Serve)

	// --- Authenticated API ---
	v1 := e.Group("/v1", middleware.Auth(d.JWTSecret), middleware.RBAC(domain.Roles...))
	v1.GET("/scope", handler.NewScopeHandler(d.Scopes).Get)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	log = logger.Component(log, "http")
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
