package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler handles GET /health, the liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Liveness godoc
// @Summary  Liveness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// TelemetryFreshness reports when the position feed was last read.
type TelemetryFreshness interface {
	LastSuccess() time.Time
}

// ReadinessHandler handles GET /health/ready, the readiness probe.
// Checks MongoDB, Redis and the age of the telemetry snapshot.
type ReadinessHandler struct {
	mongo     *mongo.Database
	redis     *redis.Client
	telemetry TelemetryFreshness
	maxAge    time.Duration
}

// NewReadinessHandler creates the probe. The telemetry snapshot counts as
// stale once it is older than maxAge.
func NewReadinessHandler(db *mongo.Database, rdb *redis.Client, telemetry TelemetryFreshness, maxAge time.Duration) *ReadinessHandler {
	return &ReadinessHandler{
		mongo:     db,
		redis:     rdb,
		telemetry: telemetry,
		maxAge:    maxAge,
	}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Readiness godoc
// @Summary  Readiness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  readinessResponse
// @Failure  503  {object}  readinessResponse
// @Router   /health/ready [get]
func (h *ReadinessHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus)
	healthy := true

	// --- MongoDB ping ---
	if h.mongo != nil {
		if err := h.mongo.Client().Ping(ctx, nil); err != nil {
			deps["mongodb"] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
		} else {
			deps["mongodb"] = dependencyStatus{Status: "ok"}
		}
	}

	// --- Redis ping ---
	if h.redis != nil {
		if _, err := h.redis.Ping(ctx).Result(); err != nil {
			deps["redis"] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
		} else {
			deps["redis"] = dependencyStatus{Status: "ok"}
		}
	}

	// --- Telemetry freshness ---
	if h.telemetry != nil {
		last := h.telemetry.LastSuccess()
		switch {
		case last.IsZero():
			deps["telemetry"] = dependencyStatus{Status: "unhealthy", Error: "no successful poll yet"}
			healthy = false
		case time.Since(last) > h.maxAge:
			deps["telemetry"] = dependencyStatus{Status: "unhealthy", Error: "last poll " + time.Since(last).Round(time.Second).String() + " ago"}
			healthy = false
		default:
			deps["telemetry"] = dependencyStatus{Status: "ok"}
		}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
