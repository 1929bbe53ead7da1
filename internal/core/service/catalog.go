package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/api/metrics"
	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/geo"
	"github.com/schooltrack/alert-engine/internal/core/ports"
	"github.com/schooltrack/alert-engine/pkg/logger"
)

// GeofenceCache holds the parsed geofence set. Refresh swaps in a whole new
// slice so readers see either the old or the new set, never a mix.
type GeofenceCache struct {
	repo    ports.GeofenceRepository
	current atomic.Pointer[[]domain.Geofence]
	log     zerolog.Logger
}

// NewGeofenceCache returns an empty cache backed by repo.
func NewGeofenceCache(repo ports.GeofenceRepository, log zerolog.Logger) *GeofenceCache {
	c := &GeofenceCache{repo: repo, log: logger.Component(log, "geofence_cache")}
	empty := []domain.Geofence{}
	c.current.Store(&empty)
	return c
}

// Current returns the latest parsed geofence set. Callers must not modify it.
func (c *GeofenceCache) Current() []domain.Geofence {
	return *c.current.Load()
}

// Refresh reloads and parses every geofence. A malformed area skips only that
// geofence. On a repository error the previous set is kept.
func (c *GeofenceCache) Refresh(ctx context.Context) error {
	raw, err := c.repo.ListGeofences(ctx)
	if err != nil {
		metrics.SourceErrorsTotal.WithLabelValues("geofences").Inc()
		return fmt.Errorf("refresh geofences: %w", err)
	}

	parsed := make([]domain.Geofence, 0, len(raw))
	for _, g := range raw {
		circle, err := geo.ParseCircle(g.Area)
		if err != nil {
			metrics.GeofenceParseErrorsTotal.Inc()
			c.log.Warn().Err(err).Str("geofence_id", g.ID).Str("name", g.Name).Msg("skipping geofence")
			continue
		}
		g.Circle = circle
		parsed = append(parsed, g)
	}

	c.current.Store(&parsed)
	c.log.Debug().Int("loaded", len(parsed)).Int("skipped", len(raw)-len(parsed)).Msg("geofences refreshed")
	return nil
}

// Run refreshes on every interval until ctx is cancelled.
func (c *GeofenceCache) Run(ctx context.Context, interval time.Duration) {
	runPeriodic(ctx, interval, func(ctx context.Context) {
		if err := c.Refresh(ctx); err != nil {
			c.log.Error().Err(err).Msg("geofence refresh failed, keeping previous set")
		}
	})
}

// PreferenceCache holds notification preferences keyed by device id, swapped
// whole on refresh.
type PreferenceCache struct {
	repo    ports.PreferenceRepository
	current atomic.Pointer[map[string]domain.NotificationPreference]
	log     zerolog.Logger
}

// NewPreferenceCache returns an empty cache backed by repo.
func NewPreferenceCache(repo ports.PreferenceRepository, log zerolog.Logger) *PreferenceCache {
	c := &PreferenceCache{repo: repo, log: logger.Component(log, "preference_cache")}
	empty := map[string]domain.NotificationPreference{}
	c.current.Store(&empty)
	return c
}

// Lookup returns the preference for deviceID, if one is stored.
func (c *PreferenceCache) Lookup(deviceID string) (domain.NotificationPreference, bool) {
	p, ok := (*c.current.Load())[deviceID]
	return p, ok
}

// Refresh reloads every preference record.
func (c *PreferenceCache) Refresh(ctx context.Context) error {
	prefs, err := c.repo.ListPreferences(ctx)
	if err != nil {
		metrics.SourceErrorsTotal.WithLabelValues("preferences").Inc()
		return fmt.Errorf("refresh preferences: %w", err)
	}
	next := make(map[string]domain.NotificationPreference, len(prefs))
	for _, p := range prefs {
		next[p.DeviceID] = p
	}
	c.current.Store(&next)
	return nil
}

// Run refreshes on every interval until ctx is cancelled.
func (c *PreferenceCache) Run(ctx context.Context, interval time.Duration) {
	runPeriodic(ctx, interval, func(ctx context.Context) {
		if err := c.Refresh(ctx); err != nil {
			c.log.Error().Err(err).Msg("preference refresh failed, keeping previous set")
		}
	})
}

// runPeriodic calls fn immediately and then on every tick until ctx ends.
func runPeriodic(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
