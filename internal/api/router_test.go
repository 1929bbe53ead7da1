package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/service"
)

type emptySnapshot struct{}

func (emptySnapshot) Latest() []domain.PositionSample { return nil }

type emptyGeofences struct{}

func (emptyGeofences) Current() []domain.Geofence { return nil }

// NewRouter registers prometheus collectors globally, so it is built once.
func TestRouter_Routes(t *testing.T) {
	e := NewRouter(Dependencies{
		JWTSecret: "secret",
		Scopes:    service.NewRoleScopeResolver(nil),
		Hub:       service.NewHub(0, zerolog.Nop()),
		Eta:       service.NewEtaService(emptySnapshot{}, emptyGeofences{}, service.NewEstimator(time.Hour, 5), zerolog.Nop()),
		Log:       zerolog.Nop(),
	})

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
	}{
		{"liveness", "/health", "", http.StatusOK},
		{"readiness without probes", "/health/ready", "", http.StatusOK},
		{"metrics", "/metrics", "", http.StatusOK},
		{"scope without token", "/v1/scope", "", http.StatusUnauthorized},
		{"scope with garbage token", "/v1/scope", "Bearer nope", http.StatusUnauthorized},
		{"unknown route", "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}
