package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubRequests struct {
	records []domain.RequestRecord
	err     error
}

func (s *stubRequests) ListRequests(context.Context) ([]domain.RequestRecord, error) {
	return s.records, s.err
}

type stubAttendance struct {
	records  []domain.AttendanceRecord
	err      error
	lastDate string
}

func (s *stubAttendance) ListAttendance(_ context.Context, date string) ([]domain.AttendanceRecord, error) {
	s.lastDate = date
	return s.records, s.err
}

type stubSink struct{ batches []domain.Batch }

func (s *stubSink) Enqueue(b domain.Batch) { s.batches = append(s.batches, b) }

type stubBus struct{ batches []domain.Batch }

func (s *stubBus) Publish(b domain.Batch) { s.batches = append(s.batches, b) }

type stubSuppressor struct {
	drop map[string]bool // fingerprints to drop
	err  error
}

func (s *stubSuppressor) Filter(_ context.Context, events []domain.AlertEvent) ([]domain.AlertEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.AlertEvent
	for _, e := range events {
		if !s.drop[e.Fingerprint()] {
			out = append(out, e)
		}
	}
	return out, nil
}

type alertFixture struct {
	snap       *stubSnapshot
	requests   *stubRequests
	attendance *stubAttendance
	sink       *stubSink
	bus        *stubBus
	svc        *AlertService
}

func newAlertFixture(suppressor *stubSuppressor, loc *time.Location) *alertFixture {
	f := &alertFixture{
		snap:       &stubSnapshot{},
		requests:   &stubRequests{},
		attendance: &stubAttendance{},
		sink:       &stubSink{},
		bus:        &stubBus{},
	}
	var sup ports.Suppressor
	if suppressor != nil {
		sup = suppressor
	}
	f.svc = NewAlertService(f.snap, stubGeofences{g1()}, f.requests, f.attendance,
		NewDiffer(DefaultDifferOptions()), sup, f.sink, f.bus, loc, zerolog.Nop())
	return f
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestTick_EmitsBatchToSinkAndBus(t *testing.T) {
	f := newAlertFixture(nil, nil)
	ctx := context.Background()

	f.snap.positions = []domain.PositionSample{sample("D1", 12.95, 77.6, false)}
	if b := f.svc.Tick(ctx, tickAt(1)); len(b.Events) != 0 {
		t.Fatalf("seed tick produced %+v", b.Events)
	}
	if len(f.sink.batches) != 0 || len(f.bus.batches) != 0 {
		t.Fatal("empty batch must be neither persisted nor published")
	}

	f.snap.positions = []domain.PositionSample{sample("D1", 12.9, 77.6, false)}
	b := f.svc.Tick(ctx, tickAt(2))
	if len(b.Events) != 1 || b.Seq != 1 {
		t.Fatalf("expected seq 1 with one event, got %+v", b)
	}
	if len(f.sink.batches) != 1 || len(f.bus.batches) != 1 {
		t.Fatalf("expected batch on sink and bus, got sink=%d bus=%d", len(f.sink.batches), len(f.bus.batches))
	}
}

func TestTick_SourceFailureSkipsOnlyThatFamily(t *testing.T) {
	f := newAlertFixture(nil, nil)
	ctx := context.Background()

	f.requests.records = []domain.RequestRecord{{ID: "R1", Status: "pending"}}
	f.snap.positions = []domain.PositionSample{sample("D1", 12.95, 77.6, false)}
	f.svc.Tick(ctx, tickAt(1))

	f.requests.err = errors.New("timeout")
	f.snap.positions = []domain.PositionSample{sample("D1", 12.9, 77.6, false)}
	b := f.svc.Tick(ctx, tickAt(2))
	if len(b.Events) != 1 || b.Events[0].Kind != domain.AlertGeofenceEntered {
		t.Fatalf("expected geofence event despite request outage, got %+v", b.Events)
	}

	f.requests.err = nil
	f.requests.records = []domain.RequestRecord{{ID: "R1", Status: "approved"}}
	b = f.svc.Tick(ctx, tickAt(3))
	if len(b.Events) != 1 || b.Events[0].RequestAlert != "approved" {
		t.Fatalf("expected request change after recovery, got %+v", b.Events)
	}
}

func TestTick_SuppressorDropsRepeats(t *testing.T) {
	ev := domain.AlertEvent{Kind: domain.AlertGeofenceEntered, DeviceID: "D1", GeofenceName: "G1"}
	f := newAlertFixture(&stubSuppressor{drop: map[string]bool{ev.Fingerprint(): true}}, nil)
	ctx := context.Background()

	f.snap.positions = []domain.PositionSample{sample("D1", 12.95, 77.6, false)}
	f.svc.Tick(ctx, tickAt(1))
	f.snap.positions = []domain.PositionSample{sample("D1", 12.9, 77.6, false)}
	b := f.svc.Tick(ctx, tickAt(2))

	if len(b.Events) != 0 || len(f.bus.batches) != 0 {
		t.Fatalf("expected suppressed batch, got %+v", b)
	}
}

func TestTick_SuppressorErrorDeliversAnyway(t *testing.T) {
	f := newAlertFixture(&stubSuppressor{err: errors.New("redis down")}, nil)
	ctx := context.Background()

	f.snap.positions = []domain.PositionSample{sample("D1", 12.95, 77.6, false)}
	f.svc.Tick(ctx, tickAt(1))
	f.snap.positions = []domain.PositionSample{sample("D1", 12.9, 77.6, false)}
	b := f.svc.Tick(ctx, tickAt(2))

	if len(b.Events) != 1 || len(f.bus.batches) != 1 {
		t.Fatalf("expected delivery despite suppressor error, got %+v", b)
	}
}

func TestTick_AttendanceDateInLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	f := newAlertFixture(nil, loc)

	// 20:00 UTC on the 2nd is already the 3rd in IST
	f.svc.Tick(context.Background(), time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC))
	if f.attendance.lastDate != "03-03-2026" {
		t.Fatalf("expected 03-03-2026, got %q", f.attendance.lastDate)
	}
}
