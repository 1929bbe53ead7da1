package domain

import "time"

// PositionSample is one device's reading from the telemetry feed.
type PositionSample struct {
	DeviceID   string    `json:"deviceId"  validate:"required"`
	Latitude   float64   `json:"latitude"  validate:"gte=-90,lte=90"`
	Longitude  float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Speed      float64   `json:"speed"     validate:"gte=0"`
	IgnitionOn bool      `json:"ignition"`
	FixTime    time.Time `json:"fixTime,omitempty"`
}

// Point returns the sample's coordinates.
func (p PositionSample) Point() Point {
	return Point{Lat: p.Latitude, Lon: p.Longitude}
}
