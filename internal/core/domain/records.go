package domain

// RequestRecord is a leave or route-change request as stored by the
// request management API. DeviceID is resolved through the child's bus.
type RequestRecord struct {
	ID          string
	ChildID     string
	DeviceID    string
	ParentID    string
	SchoolID    string
	BranchID    string
	RequestType string
	Status      string
}

// AttendanceRecord is one child's pickup/drop state for the current day.
type AttendanceRecord struct {
	ChildID    string
	DeviceID   string
	SchoolID   string
	BranchID   string
	Pickup     bool
	Drop       bool
	PickupTime string
	DropTime   string
}

// NotificationPreference lists which alerts an installation wants for a device.
type NotificationPreference struct {
	DeviceID           string `json:"deviceId"`
	IgnitionOn         bool   `json:"ignitionOn"`
	IgnitionOff        bool   `json:"ignitionOff"`
	GeofenceEnter      bool   `json:"geofenceEnter"`
	GeofenceExit       bool   `json:"geofenceExit"`
	StudentPresent     bool   `json:"studentPresent"`
	StudentAbsent      bool   `json:"studentAbsent"`
	LeaveRequestStatus bool   `json:"leaveRequestStatus"`
}

// Allows reports whether the preference enables e.
func (p NotificationPreference) Allows(e AlertEvent) bool {
	switch e.Kind {
	case AlertGeofenceEntered:
		return p.GeofenceEnter
	case AlertGeofenceExited:
		return p.GeofenceExit
	case AlertIgnitionChanged:
		if e.Ignition != nil && *e.Ignition {
			return p.IgnitionOn
		}
		return p.IgnitionOff
	case AlertRequestStatusChanged:
		return p.LeaveRequestStatus
	case AlertAttendanceChanged:
		// a child picked up or dropped is present; otherwise absent
		if (e.Pickup != nil && *e.Pickup) || (e.Drop != nil && *e.Drop) {
			return p.StudentPresent
		}
		return p.StudentAbsent
	}
	return false
}
