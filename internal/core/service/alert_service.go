package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/schooltrack/alert-engine/internal/api/metrics"
	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
	"github.com/schooltrack/alert-engine/pkg/logger"
)

const attendanceDateLayout = "02-01-2006"

// GeofenceSource exposes the current geofence set.
type GeofenceSource interface {
	Current() []domain.Geofence
}

// BatchBroadcaster multicasts a batch to live viewers.
type BatchBroadcaster interface {
	Publish(batch domain.Batch)
}

// AlertService runs the diff-and-alert tick: observe, diff, suppress,
// persist, fan out.
type AlertService struct {
	positions  ports.PositionSnapshot
	geofences  GeofenceSource
	requests   ports.RequestRepository
	attendance ports.AttendanceRepository
	differ     *Differ
	suppressor ports.Suppressor
	sink       ports.BatchSink
	bus        BatchBroadcaster
	loc        *time.Location
	seq        uint64
	log        zerolog.Logger
}

// NewAlertService wires the tick. suppressor may be nil; loc defaults to UTC
// and decides which day's attendance is read.
func NewAlertService(
	positions ports.PositionSnapshot,
	geofences GeofenceSource,
	requests ports.RequestRepository,
	attendance ports.AttendanceRepository,
	differ *Differ,
	suppressor ports.Suppressor,
	sink ports.BatchSink,
	bus BatchBroadcaster,
	loc *time.Location,
	log zerolog.Logger,
) *AlertService {
	if loc == nil {
		loc = time.UTC
	}
	return &AlertService{
		positions:  positions,
		geofences:  geofences,
		requests:   requests,
		attendance: attendance,
		differ:     differ,
		suppressor: suppressor,
		sink:       sink,
		bus:        bus,
		loc:        loc,
		log:        logger.Component(log, "alert_tick"),
	}
}

// Tick runs one diff-and-alert pass and returns the batch it produced. An
// empty batch is neither persisted nor published.
func (s *AlertService) Tick(ctx context.Context, now time.Time) domain.Batch {
	start := time.Now()
	defer func() {
		metrics.TicksTotal.Inc()
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	in := TickInput{
		Now:       now,
		Positions: s.positions.Latest(),
		Geofences: s.geofences.Current(),
	}

	requests, err := s.requests.ListRequests(ctx)
	if err != nil {
		metrics.SourceErrorsTotal.WithLabelValues("requests").Inc()
		s.log.Warn().Err(err).Msg("request source unavailable, skipping family this tick")
	} else {
		in.Requests, in.RequestsAvailable = requests, true
	}

	date := now.In(s.loc).Format(attendanceDateLayout)
	attendance, err := s.attendance.ListAttendance(ctx, date)
	if err != nil {
		metrics.SourceErrorsTotal.WithLabelValues("attendance").Inc()
		s.log.Warn().Err(err).Str("date", date).Msg("attendance source unavailable, skipping family this tick")
	} else {
		in.Attendance, in.AttendanceAvailable = attendance, true
	}

	events := s.differ.Diff(in)
	for _, e := range events {
		metrics.AlertsEmittedTotal.WithLabelValues(string(e.Kind)).Inc()
	}

	if len(events) > 0 && s.suppressor != nil {
		kept, err := s.suppressor.Filter(ctx, events)
		if err != nil {
			s.log.Warn().Err(err).Msg("suppression check failed, delivering anyway")
		} else {
			metrics.AlertsSuppressedTotal.Add(float64(len(events) - len(kept)))
			events = kept
		}
	}

	if len(events) == 0 {
		return domain.Batch{At: now}
	}

	s.seq++
	batch := domain.Batch{Seq: s.seq, At: now, Events: events}

	s.sink.Enqueue(batch)
	s.bus.Publish(batch)

	s.log.Info().Uint64("seq", batch.Seq).Int("events", len(events)).Msg("alert batch emitted")
	return batch
}

// Run ticks on every interval until ctx is cancelled.
func (s *AlertService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.Tick(ctx, t)
		}
	}
}
