// Package telemetry polls the GPS tracking server for the latest position of
// every device.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/api/metrics"
	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
	"github.com/schooltrack/alert-engine/pkg/logger"
)

var (
	_ ports.TelemetrySource  = (*Client)(nil)
	_ ports.PositionSnapshot = (*Client)(nil)
)

const defaultTimeout = 8 * time.Second

// Config captures the position feed endpoint and its fixed credentials.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// Client fetches positions and keeps the last successful snapshot.
type Client struct {
	cfg         Config
	http        *http.Client
	validate    *validator.Validate
	latest      atomic.Pointer[[]domain.PositionSample]
	lastSuccess atomic.Int64 // unix nanos
	log         zerolog.Logger
}

// NewClient creates a Client. A Timeout <= 0 uses defaultTimeout.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		validate: validator.New(),
		log:      logger.Component(log, "telemetry"),
	}
	empty := []domain.PositionSample{}
	c.latest.Store(&empty)
	return c
}

type position struct {
	DeviceID   deviceID           `json:"deviceId"`
	Latitude   float64            `json:"latitude"`
	Longitude  float64            `json:"longitude"`
	Speed      float64            `json:"speed"`
	FixTime    time.Time          `json:"fixTime"`
	Attributes positionAttributes `json:"attributes"`
}

type positionAttributes struct {
	Ignition *bool `json:"ignition"`
}

// deviceID takes an id sent as a JSON string or number. Any other shape
// decodes as empty so validation drops that sample alone.
type deviceID string

func (d *deviceID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = deviceID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*d = deviceID(n.String())
		return nil
	}
	*d = ""
	return nil
}

// Fetch performs one request. Every failure wraps domain.ErrTransport.
// Samples that fail validation are dropped individually.
func (c *Client) Fetch(ctx context.Context) ([]domain.PositionSample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrTransport, resp.StatusCode)
	}

	var raw []position
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode positions: %w", domain.ErrTransport, err)
	}

	out := make([]domain.PositionSample, 0, len(raw))
	for _, p := range raw {
		s := domain.PositionSample{
			DeviceID:  string(p.DeviceID),
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Speed:     p.Speed,
			FixTime:   p.FixTime,
		}
		if p.Attributes.Ignition != nil {
			s.IgnitionOn = *p.Attributes.Ignition
		}
		if err := c.validate.Struct(s); err != nil {
			c.log.Warn().Err(err).Str("device_id", s.DeviceID).Msg("dropping invalid position")
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Poll fetches once and replaces the snapshot on success. On failure the
// previous snapshot stays in place.
func (c *Client) Poll(ctx context.Context) error {
	samples, err := c.Fetch(ctx)
	if err != nil {
		metrics.TelemetryFetchErrorsTotal.Inc()
		return err
	}
	c.latest.Store(&samples)
	c.lastSuccess.Store(time.Now().UnixNano())
	metrics.TrackedDevices.Set(float64(len(samples)))
	return nil
}

// Latest returns the last successful snapshot. Callers must not modify it.
func (c *Client) Latest() []domain.PositionSample {
	return *c.latest.Load()
}

// LastSuccess returns when the last poll succeeded, or the zero time.
func (c *Client) LastSuccess() time.Time {
	n := c.lastSuccess.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Run polls immediately and then on every interval until ctx is cancelled.
// A failed poll is logged and retried on the next tick.
func (c *Client) Run(ctx context.Context, interval time.Duration) {
	poll := func() {
		if err := c.Poll(ctx); err != nil && ctx.Err() == nil {
			c.log.Error().Err(err).Msg("telemetry poll failed, keeping previous snapshot")
		}
	}

	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
