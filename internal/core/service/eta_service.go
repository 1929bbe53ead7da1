package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/api/metrics"
	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/geo"
	"github.com/schooltrack/alert-engine/internal/core/ports"
	"github.com/schooltrack/alert-engine/pkg/logger"
)

const (
	DefaultEtaMinSpeed = 5.0
	DefaultEtaCooldown = 3 * time.Hour
)

// Estimator computes the ETA of a moving device to its nearest eligible
// geofence. It owns the cooldown state.
type Estimator struct {
	cooldown *Cooldown
	minSpeed float64
}

// NewEstimator creates an Estimator. Speeds at or below minSpeed are treated
// as stationary.
func NewEstimator(cooldown time.Duration, minSpeed float64) *Estimator {
	return &Estimator{cooldown: NewCooldown(cooldown), minSpeed: minSpeed}
}

// Cooldown exposes the estimator's cooldown tracker.
func (e *Estimator) Cooldown() *Cooldown { return e.cooldown }

// Estimate returns an ETA for sample. When the nearest geofence already
// contains the device, a cooldown is recorded instead and no ETA is returned.
func (e *Estimator) Estimate(now time.Time, sample domain.PositionSample, geofences []domain.Geofence) (domain.EtaAlert, bool) {
	if sample.Speed <= e.minSpeed {
		return domain.EtaAlert{}, false
	}

	var (
		nearest domain.Geofence
		best    = math.Inf(1)
	)
	point := sample.Point()
	for _, g := range geofences {
		if !g.AppliesTo(sample.DeviceID) || e.cooldown.Active(sample.DeviceID, g.ID, now) {
			continue
		}
		if d := geo.Distance(point, g.Circle.Center); d < best {
			best, nearest = d, g
		}
	}
	if math.IsInf(best, 1) {
		return domain.EtaAlert{}, false
	}

	if best <= nearest.Circle.RadiusMeters {
		e.cooldown.Mark(sample.DeviceID, nearest.ID, now)
		return domain.EtaAlert{}, false
	}

	minutes := best / 1000 / sample.Speed * 60
	return domain.EtaAlert{
		DeviceID:     sample.DeviceID,
		GeofenceName: nearest.Name,
		EtaMinutes:   math.Round(minutes*100) / 100,
	}, true
}

type etaWatch struct {
	deviceID string
	ch       chan []domain.EtaAlert
}

// EtaService runs the estimator on its own cadence for every device some
// viewer has asked to follow, and delivers only to those viewers.
type EtaService struct {
	positions ports.PositionSnapshot
	geofences GeofenceSource
	estimator *Estimator

	mu       sync.Mutex
	watchers map[string]*etaWatch // connection id -> watch

	log zerolog.Logger
}

// NewEtaService wires an EtaService.
func NewEtaService(positions ports.PositionSnapshot, geofences GeofenceSource, estimator *Estimator, log zerolog.Logger) *EtaService {
	return &EtaService{
		positions: positions,
		geofences: geofences,
		estimator: estimator,
		watchers:  make(map[string]*etaWatch),
		log:       logger.Component(log, "eta"),
	}
}

// Watch follows deviceID for a connection, replacing what it followed before.
func (s *EtaService) Watch(connectionID, deviceID string) <-chan []domain.EtaAlert {
	ch := make(chan []domain.EtaAlert, 2)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.watchers[connectionID]; ok {
		close(old.ch)
	}
	s.watchers[connectionID] = &etaWatch{deviceID: deviceID, ch: ch}
	return ch
}

// Unwatch stops deliveries to a connection and closes its channel.
func (s *EtaService) Unwatch(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.watchers[connectionID]; ok {
		close(w.ch)
		delete(s.watchers, connectionID)
	}
}

// Tick evicts expired cooldowns, estimates each watched device once and
// delivers the result to its watchers. It returns the alerts computed.
func (s *EtaService) Tick(now time.Time) []domain.EtaAlert {
	evicted := s.estimator.Cooldown().Evict(now)
	if evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Msg("cooldowns expired")
	}

	s.mu.Lock()
	watched := make(map[string]struct{}, len(s.watchers))
	for _, w := range s.watchers {
		watched[w.deviceID] = struct{}{}
	}
	s.mu.Unlock()

	var alerts []domain.EtaAlert
	if len(watched) > 0 {
		geofences := s.geofences.Current()
		for _, p := range s.positions.Latest() {
			if _, ok := watched[p.DeviceID]; !ok {
				continue
			}
			if a, ok := s.estimator.Estimate(now, p, geofences); ok {
				alerts = append(alerts, a)
			}
		}
	}
	metrics.CooldownEntries.Set(float64(s.estimator.Cooldown().Len()))

	if len(alerts) == 0 {
		return nil
	}
	metrics.EtaAlertsTotal.Add(float64(len(alerts)))

	byDevice := make(map[string][]domain.EtaAlert, len(alerts))
	for _, a := range alerts {
		byDevice[a.DeviceID] = append(byDevice[a.DeviceID], a)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.watchers {
		out, ok := byDevice[w.deviceID]
		if !ok {
			continue
		}
		select {
		case w.ch <- out:
		default:
			metrics.DeliveriesDroppedTotal.WithLabelValues("eta").Inc()
			s.log.Warn().Str("connection_id", id).Str("device_id", w.deviceID).Msg("eta buffer full, notice dropped")
		}
	}
	return alerts
}

// Run ticks on every interval until ctx is cancelled.
func (s *EtaService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.Tick(t)
		}
	}
}
