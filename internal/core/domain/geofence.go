package domain

import (
	"errors"
	"fmt"
)

// ErrGeofenceParse is returned when a geofence area string is not a valid circle.
var ErrGeofenceParse = errors.New("invalid geofence area")

// Point represents a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Circle is a parsed circular area.
type Circle struct {
	Center       Point   `json:"center"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// Geofence is a named circular region. A nil DeviceID applies the geofence to
// every device.
type Geofence struct {
	ID       string  `json:"id"`
	DeviceID *string `json:"deviceId,omitempty"`
	Name     string  `json:"name"`
	Area     string  `json:"area"`
	Circle   Circle  `json:"circle"`
}

// AppliesTo reports whether the geofence is evaluated for deviceID.
func (g Geofence) AppliesTo(deviceID string) bool {
	return g.DeviceID == nil || *g.DeviceID == deviceID
}

// ParseError describes an area string that could not be parsed.
type ParseError struct {
	Area   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrGeofenceParse, e.Area, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrGeofenceParse }
