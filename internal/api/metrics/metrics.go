// Package metrics defines and registers all custom Prometheus metrics for the
// alert engine. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tracker"

// ── Alert tick ───────────────────────────────────────────────────────────────

// TicksTotal counts completed diff-and-alert ticks.
var TicksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_ticks_total",
		Help:      "Total number of diff-and-alert ticks executed.",
	},
)

// TickDuration measures one diff-and-alert tick end-to-end.
var TickDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "alert_tick_duration_seconds",
		Help:      "Duration of one diff-and-alert tick.",
		Buckets:   prometheus.DefBuckets,
	},
)

// AlertsEmittedTotal counts alerts emitted by the state differ.
// Label:
//   - kind: GeofenceEntered, GeofenceExited, IgnitionChanged, RequestStatusChanged, AttendanceChanged
var AlertsEmittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_emitted_total",
		Help:      "Total number of alerts derived from state transitions.",
	},
	[]string{"kind"},
)

// AlertsSuppressedTotal counts alerts dropped by the suppression window.
var AlertsSuppressedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_suppressed_total",
		Help:      "Total number of alerts dropped as redundant within the suppression window.",
	},
)

// PersistErrorsTotal counts alert batches that failed to persist.
var PersistErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_persist_errors_total",
		Help:      "Total number of alert batches that failed to persist.",
	},
)

// PersistQueueDepth tracks batches waiting for the persistence worker.
var PersistQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "alert_persist_queue_depth",
		Help:      "Current number of alert batches pending persistence.",
	},
)

// SourceErrorsTotal counts failed reads of a signal family's source.
// Label:
//   - source: "requests", "attendance", "geofences", "preferences"
var SourceErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_errors_total",
		Help:      "Total number of failed reads from alert input sources.",
	},
	[]string{"source"},
)

// GeofenceParseErrorsTotal counts geofences skipped because of a malformed area.
var GeofenceParseErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geofence_parse_errors_total",
		Help:      "Total number of geofences skipped because their area could not be parsed.",
	},
)

// ── Telemetry ────────────────────────────────────────────────────────────────

// TelemetryFetchErrorsTotal counts failed polls of the telemetry feed.
var TelemetryFetchErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "telemetry_fetch_errors_total",
		Help:      "Total number of failed telemetry polls.",
	},
)

// TrackedDevices is the number of devices in the latest telemetry snapshot.
var TrackedDevices = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_devices",
		Help:      "Number of devices in the latest telemetry snapshot.",
	},
)

// ── Fanout ───────────────────────────────────────────────────────────────────

// Subscribers is the number of authenticated live viewers.
var Subscribers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_subscribers",
		Help:      "Number of authenticated live viewers.",
	},
)

// DeliveriesDroppedTotal counts batches dropped for a slow or broken viewer.
// Label:
//   - stream: "alerts" or "eta"
var DeliveriesDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_dropped_total",
		Help:      "Total number of batches dropped for a viewer whose channel was full or down.",
	},
	[]string{"stream"},
)

// AuthFailuresTotal counts rejected viewer authentications.
// Label:
//   - reason: "missing_token", "invalid_token", "scope"
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of rejected viewer authentications.",
	},
	[]string{"reason"},
)

// ── ETA ──────────────────────────────────────────────────────────────────────

// EtaAlertsTotal counts ETA notices sent to viewers.
var EtaAlertsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eta_alerts_total",
		Help:      "Total number of ETA notices computed.",
	},
)

// CooldownEntries is the number of active (device, geofence) cooldowns.
var CooldownEntries = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "eta_cooldown_entries",
		Help:      "Number of active geofence-entry cooldowns.",
	},
)
