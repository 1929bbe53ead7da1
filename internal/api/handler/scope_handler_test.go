package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/schooltrack/alert-engine/internal/api/middleware"
	"github.com/schooltrack/alert-engine/internal/core/domain"
)

func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(httptest.NewRequest(method, path, nil), rec), rec
}

// ---------------------------------------------------------------------------
// Scope
// ---------------------------------------------------------------------------

func TestScope_ReturnsSortedDevices(t *testing.T) {
	h := NewScopeHandler(&stubResolver{sets: map[string]domain.DeviceSet{"B1": domain.NewDeviceSet("D2", "D1")}})
	c, rec := newContext(http.MethodGet, "/v1/scope")
	c.Set(middleware.ClaimsKey, domain.Claims{Role: domain.RoleBranch, ID: "B1"})

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body scopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Role != "branch" || len(body.Devices) != 2 || body.Devices[0] != "D1" || body.Devices[1] != "D2" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestScope_MissingClaims(t *testing.T) {
	h := NewScopeHandler(&stubResolver{})
	c, _ := newContext(http.MethodGet, "/v1/scope")

	err := h.Get(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestScope_BranchWithoutID(t *testing.T) {
	h := NewScopeHandler(&stubResolver{})
	c, _ := newContext(http.MethodGet, "/v1/scope")
	c.Set(middleware.ClaimsKey, domain.Claims{Role: domain.RoleBranch})

	err := h.Get(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestScope_ResolverErrorPropagates(t *testing.T) {
	h := NewScopeHandler(&stubResolver{err: domain.ErrAuthResolution})
	c, _ := newContext(http.MethodGet, "/v1/scope")
	c.Set(middleware.ClaimsKey, domain.Claims{Role: domain.RoleParent, ParentID: "P1"})

	if err := h.Get(c); !errors.Is(err, domain.ErrAuthResolution) {
		t.Fatalf("expected ErrAuthResolution, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Readiness
// ---------------------------------------------------------------------------

type stubFreshness struct{ last time.Time }

func (s stubFreshness) LastSuccess() time.Time { return s.last }

func TestReadiness_Telemetry(t *testing.T) {
	tests := []struct {
		name     string
		last     time.Time
		wantCode int
	}{
		{"fresh", time.Now(), http.StatusOK},
		{"never polled", time.Time{}, http.StatusServiceUnavailable},
		{"stale", time.Now().Add(-time.Minute), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewReadinessHandler(nil, nil, stubFreshness{last: tt.last}, 30*time.Second)
			c, rec := newContext(http.MethodGet, "/health/ready")

			if err := h.Readiness(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}

			var body readinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := body.Dependencies["telemetry"]; !ok {
				t.Fatalf("telemetry missing from %+v", body.Dependencies)
			}
		})
	}
}

func TestLiveness(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/health")
	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
