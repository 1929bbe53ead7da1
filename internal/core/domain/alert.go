package domain

import (
	"fmt"
	"strconv"
	"time"
)

// AlertKind identifies the signal family an alert was derived from.
type AlertKind string

const (
	AlertGeofenceEntered      AlertKind = "GeofenceEntered"
	AlertGeofenceExited       AlertKind = "GeofenceExited"
	AlertIgnitionChanged      AlertKind = "IgnitionChanged"
	AlertRequestStatusChanged AlertKind = "RequestStatusChanged"
	AlertAttendanceChanged    AlertKind = "AttendanceChanged"
)

// Geofence event status values as shown to viewers.
const (
	GeofenceStatusEntered = "Entered"
	GeofenceStatusExited  = "Exited"
)

// AlertEvent is an immutable, edge-triggered alert. Only the fields relevant
// to Kind are populated.
type AlertEvent struct {
	Kind      AlertKind `json:"kind"      bson:"kind"`
	DeviceID  string    `json:"deviceId"  bson:"deviceId"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	// geofence
	Status       string `json:"status,omitempty"       bson:"status,omitempty"`
	GeofenceName string `json:"geofenceName,omitempty" bson:"geofenceName,omitempty"`

	// ignition
	Ignition *bool `json:"ignition,omitempty" bson:"ignition,omitempty"`

	// leave / route-change request
	RequestID    string `json:"requestId,omitempty"    bson:"requestId,omitempty"`
	RequestType  string `json:"requestType,omitempty"  bson:"requestType,omitempty"`
	RequestAlert string `json:"requestAlert,omitempty" bson:"requestAlert,omitempty"`
	ParentID     string `json:"parentId,omitempty"     bson:"parentId,omitempty"`

	// attendance
	ChildID    string `json:"childId,omitempty"    bson:"childId,omitempty"`
	Pickup     *bool  `json:"pickup,omitempty"     bson:"pickup,omitempty"`
	Drop       *bool  `json:"drop,omitempty"       bson:"drop,omitempty"`
	PickupTime string `json:"pickupTime,omitempty" bson:"pickupTime,omitempty"`
	DropTime   string `json:"dropTime,omitempty"   bson:"dropTime,omitempty"`

	SchoolID string `json:"schoolId,omitempty" bson:"schoolId,omitempty"`
	BranchID string `json:"branchId,omitempty" bson:"branchId,omitempty"`
}

// Fingerprint identifies an alert by what it says rather than when it was
// raised. Two alerts with the same fingerprint are redundant.
func (e AlertEvent) Fingerprint() string {
	switch e.Kind {
	case AlertGeofenceEntered, AlertGeofenceExited:
		return fmt.Sprintf("%s:%s:%s", e.Kind, e.DeviceID, e.GeofenceName)
	case AlertIgnitionChanged:
		return fmt.Sprintf("%s:%s:%s", e.Kind, e.DeviceID, fmtBool(e.Ignition))
	case AlertRequestStatusChanged:
		return fmt.Sprintf("%s:%s:%s", e.Kind, e.RequestID, e.RequestAlert)
	case AlertAttendanceChanged:
		return fmt.Sprintf("%s:%s:%s:%s", e.Kind, e.ChildID, fmtBool(e.Pickup), fmtBool(e.Drop))
	default:
		return fmt.Sprintf("%s:%s", e.Kind, e.DeviceID)
	}
}

// Batch is the ordered set of alerts derived from one tick.
type Batch struct {
	Seq    uint64       `json:"seq"`
	At     time.Time    `json:"at"`
	Events []AlertEvent `json:"events"`
}

// EtaAlert is the estimated arrival of a moving device at its nearest geofence.
type EtaAlert struct {
	DeviceID     string  `json:"deviceId"`
	GeofenceName string  `json:"geofenceName"`
	EtaMinutes   float64 `json:"etaMinutes"`
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

func fmtBool(b *bool) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatBool(*b)
}
