package service

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubSnapshot struct{ positions []domain.PositionSample }

func (s *stubSnapshot) Latest() []domain.PositionSample { return s.positions }

type stubGeofences []domain.Geofence

func (s stubGeofences) Current() []domain.Geofence { return s }

func moving(deviceID string, lat, lon, speed float64) domain.PositionSample {
	return domain.PositionSample{DeviceID: deviceID, Latitude: lat, Longitude: lon, Speed: speed}
}

// ---------------------------------------------------------------------------
// Cooldown
// ---------------------------------------------------------------------------

func TestCooldown_ActiveWithinWindow(t *testing.T) {
	c := NewCooldown(3 * time.Hour)
	c.Mark("D1", "g1", t0)

	if !c.Active("D1", "g1", t0.Add(3*time.Hour-time.Second)) {
		t.Error("expected active just before the window ends")
	}
	if c.Active("D1", "g1", t0.Add(3*time.Hour)) {
		t.Error("expected inactive once the window has elapsed")
	}
	if c.Active("D1", "g2", t0) || c.Active("D2", "g1", t0) {
		t.Error("cooldown leaked to another pair")
	}
}

func TestCooldown_EvictOldestFirst(t *testing.T) {
	c := NewCooldown(time.Hour)
	c.Mark("D1", "g1", t0)
	c.Mark("D2", "g1", t0.Add(30*time.Minute))
	c.Mark("D3", "g1", t0.Add(50*time.Minute))

	if n := c.Evict(t0.Add(80 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries left, got %d", c.Len())
	}
	if n := c.Evict(t0.Add(2 * time.Hour)); n != 2 || c.Len() != 0 {
		t.Fatalf("expected everything evicted, got n=%d len=%d", n, c.Len())
	}
}

func TestCooldown_RemarkMovesToBack(t *testing.T) {
	c := NewCooldown(time.Hour)
	c.Mark("D1", "g1", t0)
	c.Mark("D2", "g1", t0.Add(10*time.Minute))
	c.Mark("D1", "g1", t0.Add(20*time.Minute))

	c.Evict(t0.Add(70 * time.Minute))
	if !c.Active("D1", "g1", t0.Add(70*time.Minute)) {
		t.Error("re-marked entry should survive")
	}
	if c.Active("D2", "g1", t0.Add(70*time.Minute)) {
		t.Error("older entry should be evicted")
	}
}

// ---------------------------------------------------------------------------
// Estimator
// ---------------------------------------------------------------------------

func TestEstimate_NearestGeofence(t *testing.T) {
	e := NewEstimator(DefaultEtaCooldown, DefaultEtaMinSpeed)
	farther := domain.Geofence{ID: "g9", Name: "Depot",
		Circle: domain.Circle{Center: domain.Point{Lat: 13.0, Lon: 77.6}, RadiusMeters: 100}}

	got, ok := e.Estimate(t0, moving("D1", 12.91, 77.6, 30), []domain.Geofence{farther, g1()})
	if !ok {
		t.Fatal("expected an ETA")
	}
	if got.GeofenceName != "G1" {
		t.Errorf("expected nearest geofence G1, got %s", got.GeofenceName)
	}
	// ~1111.95m at 30 km/h
	if got.EtaMinutes != 2.22 {
		t.Errorf("expected 2.22 minutes, got %v", got.EtaMinutes)
	}
}

func TestEstimate_SlowDeviceSkipped(t *testing.T) {
	e := NewEstimator(DefaultEtaCooldown, DefaultEtaMinSpeed)

	if _, ok := e.Estimate(t0, moving("D1", 12.91, 77.6, 5), []domain.Geofence{g1()}); ok {
		t.Error("speed at the threshold must not produce an ETA")
	}
}

func TestEstimate_NoApplicableGeofence(t *testing.T) {
	e := NewEstimator(DefaultEtaCooldown, DefaultEtaMinSpeed)
	other := "D2"
	fence := g1()
	fence.DeviceID = &other

	if _, ok := e.Estimate(t0, moving("D1", 12.91, 77.6, 40), []domain.Geofence{fence}); ok {
		t.Error("geofence of another device must be ignored")
	}
}

func TestEstimate_CooldownSuppressesForWindow(t *testing.T) {
	e := NewEstimator(3*time.Hour, DefaultEtaMinSpeed)
	fences := []domain.Geofence{g1()}

	// arrives
	if _, ok := e.Estimate(t0, moving("D1", 12.9, 77.6, 20), fences); ok {
		t.Fatal("device inside the geofence must not get an ETA")
	}

	for _, after := range []time.Duration{time.Minute, time.Hour, 3*time.Hour - time.Second} {
		now := t0.Add(after)
		e.Cooldown().Evict(now)
		if _, ok := e.Estimate(now, moving("D1", 12.95, 77.6, 40), fences); ok {
			t.Fatalf("ETA emitted %v after arrival, inside the cooldown", after)
		}
	}

	now := t0.Add(3 * time.Hour)
	e.Cooldown().Evict(now)
	if _, ok := e.Estimate(now, moving("D1", 12.95, 77.6, 40), fences); !ok {
		t.Fatal("expected ETA once the cooldown elapsed")
	}
}

func TestEstimate_CooldownFallsBackToNextGeofence(t *testing.T) {
	e := NewEstimator(3*time.Hour, DefaultEtaMinSpeed)
	school := domain.Geofence{ID: "g2", Name: "School",
		Circle: domain.Circle{Center: domain.Point{Lat: 12.95, Lon: 77.6}, RadiusMeters: 100}}
	fences := []domain.Geofence{g1(), school}

	e.Estimate(t0, moving("D1", 12.9, 77.6, 20), fences)

	got, ok := e.Estimate(t0.Add(time.Minute), moving("D1", 12.901, 77.6, 20), fences)
	if !ok || got.GeofenceName != "School" {
		t.Fatalf("expected ETA to School, got %+v ok=%v", got, ok)
	}
}

// ---------------------------------------------------------------------------
// EtaService
// ---------------------------------------------------------------------------

func TestEtaService_DeliversOnlyToWatchers(t *testing.T) {
	snap := &stubSnapshot{positions: []domain.PositionSample{
		moving("D1", 12.91, 77.6, 30),
		moving("D2", 12.92, 77.6, 30),
	}}
	svc := NewEtaService(snap, stubGeofences{g1()}, NewEstimator(DefaultEtaCooldown, DefaultEtaMinSpeed), zerolog.Nop())

	a := svc.Watch("a", "D1")
	b := svc.Watch("b", "D1")
	c := svc.Watch("c", "D9")

	alerts := svc.Tick(t0)
	if len(alerts) != 1 || alerts[0].DeviceID != "D1" {
		t.Fatalf("expected one ETA for D1 only, got %+v", alerts)
	}

	for name, ch := range map[string]<-chan []domain.EtaAlert{"a": a, "b": b} {
		select {
		case got := <-ch:
			if len(got) != 1 || got[0].DeviceID != "D1" {
				t.Errorf("%s: unexpected payload %+v", name, got)
			}
		default:
			t.Errorf("%s: nothing delivered", name)
		}
	}
	select {
	case got := <-c:
		t.Errorf("c: unexpected delivery %+v", got)
	default:
	}
}

func TestEtaService_NoWatchersNoWork(t *testing.T) {
	snap := &stubSnapshot{positions: []domain.PositionSample{moving("D1", 12.91, 77.6, 30)}}
	svc := NewEtaService(snap, stubGeofences{g1()}, NewEstimator(DefaultEtaCooldown, DefaultEtaMinSpeed), zerolog.Nop())

	if got := svc.Tick(t0); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestEtaService_EmptyResultNotSent(t *testing.T) {
	snap := &stubSnapshot{positions: []domain.PositionSample{moving("D1", 12.91, 77.6, 2)}}
	svc := NewEtaService(snap, stubGeofences{g1()}, NewEstimator(DefaultEtaCooldown, DefaultEtaMinSpeed), zerolog.Nop())
	ch := svc.Watch("a", "D1")

	svc.Tick(t0)
	select {
	case got := <-ch:
		t.Fatalf("expected no delivery, got %+v", got)
	default:
	}
}

func TestEtaService_UnwatchClosesChannel(t *testing.T) {
	svc := NewEtaService(&stubSnapshot{}, stubGeofences{}, NewEstimator(DefaultEtaCooldown, DefaultEtaMinSpeed), zerolog.Nop())
	ch := svc.Watch("a", "D1")

	svc.Unwatch("a")
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
}
