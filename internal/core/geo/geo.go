// Package geo holds the pure geometry used for geofence containment and ETA
// distances. Nothing here touches the network or storage.
package geo

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/schooltrack/alert-engine/internal/core/domain"
)

const earthRadiusMeters = 6371000

// Area strings look like "Circle(12.9716 77.5946, 150)". The first coordinate
// is the latitude, matching the records written by the geofence API.
var circleRe = regexp.MustCompile(`(?i)^circle\s*\(\s*([-+]?\d+(?:\.\d+)?)\s+([-+]?\d+(?:\.\d+)?)\s*,\s*(\d+(?:\.\d+)?)\s*\)$`)

// ParseCircle parses a geofence area definition.
func ParseCircle(area string) (domain.Circle, error) {
	norm := strings.Join(strings.Fields(area), " ")
	m := circleRe.FindStringSubmatch(norm)
	if m == nil {
		return domain.Circle{}, &domain.ParseError{Area: area, Reason: "expected Circle(<lat> <lon>, <radius>)"}
	}

	lat, _ := strconv.ParseFloat(m[1], 64)
	lon, _ := strconv.ParseFloat(m[2], 64)
	radius, _ := strconv.ParseFloat(m[3], 64)

	if lat < -90 || lat > 90 {
		return domain.Circle{}, &domain.ParseError{Area: area, Reason: "latitude out of range"}
	}
	if lon < -180 || lon > 180 {
		return domain.Circle{}, &domain.ParseError{Area: area, Reason: "longitude out of range"}
	}

	return domain.Circle{
		Center:       domain.Point{Lat: lat, Lon: lon},
		RadiusMeters: radius,
	}, nil
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsInside reports whether p lies within c. The boundary counts as inside.
func IsInside(c domain.Circle, p domain.Point) bool {
	return Distance(p, c.Center) <= c.RadiusMeters
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
