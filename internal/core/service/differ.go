package service

import (
	"time"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/geo"
)

// TickInput is everything the differ observes in one tick. A family whose
// source could not be read is marked unavailable and left untouched.
type TickInput struct {
	Now       time.Time
	Positions []domain.PositionSample
	Geofences []domain.Geofence

	Requests          []domain.RequestRecord
	RequestsAvailable bool

	Attendance          []domain.AttendanceRecord
	AttendanceAvailable bool
}

// DifferOptions tunes edge cases of the state machine.
type DifferOptions struct {
	// SuppressIgnitionOnFleetChange skips ignition events for a whole tick
	// whenever the number of reporting devices differs from the previous tick.
	SuppressIgnitionOnFleetChange bool
}

// DefaultDifferOptions keeps ignition suppression on fleet-size change.
func DefaultDifferOptions() DifferOptions {
	return DifferOptions{SuppressIgnitionOnFleetChange: true}
}

type deviceState struct {
	ignitionOn   bool
	ignitionSeen bool
	containment  map[string]bool // geofence key -> inside
}

type attendanceState struct {
	pickup bool
	drop   bool
}

// StateStore is the previous-tick view of every signal family, keyed by stable
// entity id.
type StateStore struct {
	devices   map[string]*deviceState
	fleetSize int
	fleetSeen bool

	requests       map[string]string // request id -> status
	requestsSeeded bool

	attendance       map[string]attendanceState // child id -> state
	attendanceSeeded bool
}

// NewStateStore returns an empty store.
func NewStateStore() *StateStore {
	return &StateStore{
		devices:    make(map[string]*deviceState),
		requests:   make(map[string]string),
		attendance: make(map[string]attendanceState),
	}
}

func (s *StateStore) device(id string) *deviceState {
	d, ok := s.devices[id]
	if !ok {
		d = &deviceState{containment: make(map[string]bool)}
		s.devices[id] = d
	}
	return d
}

// Differ turns successive observations into edge-triggered alerts. It owns its
// StateStore and is not safe for concurrent use; one tick loop drives it.
type Differ struct {
	state *StateStore
	opts  DifferOptions
}

// NewDiffer creates a Differ over a fresh StateStore.
func NewDiffer(opts DifferOptions) *Differ {
	return &Differ{state: NewStateStore(), opts: opts}
}

// Diff compares in against the previous tick, updates the stored state and
// returns the tick's alerts ordered geofence, ignition, request, attendance.
func (d *Differ) Diff(in TickInput) []domain.AlertEvent {
	var out []domain.AlertEvent
	out = append(out, d.diffGeofences(in)...)
	out = append(out, d.diffIgnition(in)...)
	if in.RequestsAvailable {
		out = append(out, d.diffRequests(in)...)
	}
	if in.AttendanceAvailable {
		out = append(out, d.diffAttendance(in)...)
	}
	return out
}

func (d *Differ) diffGeofences(in TickInput) []domain.AlertEvent {
	var out []domain.AlertEvent
	for _, p := range in.Positions {
		dev := d.state.device(p.DeviceID)
		point := p.Point()
		for _, g := range in.Geofences {
			if !g.AppliesTo(p.DeviceID) {
				continue
			}
			key := geofenceKey(g)
			inside := geo.IsInside(g.Circle, point)
			prev, seen := dev.containment[key]
			dev.containment[key] = inside
			if !seen || prev == inside {
				continue
			}

			ev := domain.AlertEvent{
				Kind:         domain.AlertGeofenceExited,
				Status:       domain.GeofenceStatusExited,
				DeviceID:     p.DeviceID,
				GeofenceName: g.Name,
				Timestamp:    in.Now,
			}
			if inside {
				ev.Kind = domain.AlertGeofenceEntered
				ev.Status = domain.GeofenceStatusEntered
			}
			out = append(out, ev)
		}
	}
	return out
}

// geofenceKey identifies a geofence in containment state. Names are not
// unique, so the id is preferred.
func geofenceKey(g domain.Geofence) string {
	if g.ID != "" {
		return g.ID
	}
	return g.Name
}

// diffIgnition compares per device, but when SuppressIgnitionOnFleetChange is
// set a tick whose fleet size differs from the previous one only reseeds.
func (d *Differ) diffIgnition(in TickInput) []domain.AlertEvent {
	fleetChanged := !d.state.fleetSeen || len(in.Positions) != d.state.fleetSize
	emit := !(d.opts.SuppressIgnitionOnFleetChange && fleetChanged)

	var out []domain.AlertEvent
	for _, p := range in.Positions {
		dev := d.state.device(p.DeviceID)
		if emit && dev.ignitionSeen && dev.ignitionOn != p.IgnitionOn {
			out = append(out, domain.AlertEvent{
				Kind:      domain.AlertIgnitionChanged,
				DeviceID:  p.DeviceID,
				Ignition:  domain.Bool(p.IgnitionOn),
				Timestamp: in.Now,
			})
		}
		dev.ignitionOn = p.IgnitionOn
		dev.ignitionSeen = true
	}

	d.state.fleetSize = len(in.Positions)
	d.state.fleetSeen = true
	return out
}

// diffRequests emits on a status change and for every request created after
// the first observation. Requests that disappear are forgotten silently.
func (d *Differ) diffRequests(in TickInput) []domain.AlertEvent {
	seeded := d.state.requestsSeeded
	current := make(map[string]string, len(in.Requests))

	var out []domain.AlertEvent
	for _, r := range in.Requests {
		current[r.ID] = r.Status
		if !seeded {
			continue
		}
		prev, known := d.state.requests[r.ID]
		if known && prev == r.Status {
			continue
		}
		out = append(out, domain.AlertEvent{
			Kind:         domain.AlertRequestStatusChanged,
			DeviceID:     r.DeviceID,
			RequestID:    r.ID,
			RequestType:  r.RequestType,
			RequestAlert: r.Status,
			ParentID:     r.ParentID,
			SchoolID:     r.SchoolID,
			BranchID:     r.BranchID,
			Timestamp:    in.Now,
		})
	}

	d.state.requests = current
	d.state.requestsSeeded = true
	return out
}

// diffAttendance emits one event per child whose pickup or drop flag changed,
// and one for every record created after the first observation.
func (d *Differ) diffAttendance(in TickInput) []domain.AlertEvent {
	seeded := d.state.attendanceSeeded
	current := make(map[string]attendanceState, len(in.Attendance))

	var out []domain.AlertEvent
	for _, a := range in.Attendance {
		now := attendanceState{pickup: a.Pickup, drop: a.Drop}
		current[a.ChildID] = now
		if !seeded {
			continue
		}
		prev, known := d.state.attendance[a.ChildID]
		if known && prev == now {
			continue
		}
		out = append(out, domain.AlertEvent{
			Kind:       domain.AlertAttendanceChanged,
			DeviceID:   a.DeviceID,
			ChildID:    a.ChildID,
			Pickup:     domain.Bool(a.Pickup),
			Drop:       domain.Bool(a.Drop),
			PickupTime: a.PickupTime,
			DropTime:   a.DropTime,
			SchoolID:   a.SchoolID,
			BranchID:   a.BranchID,
			Timestamp:  in.Now,
		})
	}

	d.state.attendance = current
	d.state.attendanceSeeded = true
	return out
}
