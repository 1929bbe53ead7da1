package ports

import (
	"context"

	"github.com/schooltrack/alert-engine/internal/core/domain"
)

// GeofenceRepository loads geofence definitions. Area strings are returned
// unparsed; Circle is left zero.
type GeofenceRepository interface {
	ListGeofences(ctx context.Context) ([]domain.Geofence, error)
}

// RequestRepository reads leave and route-change requests.
type RequestRepository interface {
	ListRequests(ctx context.Context) ([]domain.RequestRecord, error)
}

// AttendanceRepository reads attendance for a single day (dd-mm-yyyy).
type AttendanceRepository interface {
	ListAttendance(ctx context.Context, date string) ([]domain.AttendanceRecord, error)
}

// PreferenceRepository is the read-only notification-type preference store.
type PreferenceRepository interface {
	ListPreferences(ctx context.Context) ([]domain.NotificationPreference, error)
}

// DirectoryRepository answers ownership lookups used to scope viewers.
type DirectoryRepository interface {
	// DevicesByBranches returns the device ids owned by the given branches.
	DevicesByBranches(ctx context.Context, branchIDs []string) ([]string, error)
	// DevicesByParent returns the device ids assigned to a parent's children.
	DevicesByParent(ctx context.Context, parentID string) ([]string, error)
}

// AlertRepository is the append-only alert log.
type AlertRepository interface {
	// InsertAlerts writes the batch in one bulk insert.
	InsertAlerts(ctx context.Context, events []domain.AlertEvent) error
}
