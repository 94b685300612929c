package locations

import (
	"math"
	"time"
)

// Location is a geofenced work site.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	RadiusM   float64   `json:"radius_m"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const earthRadiusM = 6371000.0

// DistanceM returns the great-circle distance in meters between the site
// center and the given coordinates.
func (l Location) DistanceM(lat, lng float64) float64 {
	lat1 := lat * math.Pi / 180
	lat2 := l.Latitude * math.Pi / 180
	dLat := (l.Latitude - lat) * math.Pi / 180
	dLng := (l.Longitude - lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Contains reports whether the coordinates fall inside the geofence. A
// location without a radius accepts everything.
func (l Location) Contains(lat, lng float64) bool {
	if l.RadiusM <= 0 {
		return true
	}
	return l.DistanceM(lat, lng) <= l.RadiusM
}
