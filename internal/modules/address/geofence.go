// README: Directional geofence; the service boundary is a quadrant fan around
// the store, with a different radius per compass direction.
package address

import (
	"math"

	"kilap/internal/config"
	"kilap/internal/types"
)

const earthRadiusKm = 6371.0

// Geofence accepts points whose distance from the origin stays under the
// radius for the quadrant their bearing falls in. North covers bearings
// [315, 45), east [45, 135), and so on.
type Geofence struct {
	origin  types.Point
	northKm float64
	eastKm  float64
	southKm float64
	westKm  float64
}

func NewGeofence(cfg config.GeofenceConfig) *Geofence {
	return &Geofence{
		origin:  types.Point{Lat: cfg.OriginLat, Lng: cfg.OriginLng},
		northKm: cfg.NorthKm,
		eastKm:  cfg.EastKm,
		southKm: cfg.SouthKm,
		westKm:  cfg.WestKm,
	}
}

func (g *Geofence) Origin() types.Point {
	return g.origin
}

func (g *Geofence) Contains(p types.Point) bool {
	dist := haversineKm(g.origin, p)
	switch quadrant(bearingDeg(g.origin, p)) {
	case "north":
		return dist <= g.northKm
	case "east":
		return dist <= g.eastKm
	case "south":
		return dist <= g.southKm
	default:
		return dist <= g.westKm
	}
}

func haversineKm(a, b types.Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// bearingDeg returns the initial bearing from a to b in [0, 360).
func bearingDeg(a, b types.Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func quadrant(bearing float64) string {
	switch {
	case bearing < 45 || bearing >= 315:
		return "north"
	case bearing < 135:
		return "east"
	case bearing < 225:
		return "south"
	default:
		return "west"
	}
}
