package sound

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// earthRadiusMeters is the mean Earth radius used for great-circle distances.
const earthRadiusMeters = 6371008.8

// Location is a WGS84 coordinate in degrees.
type Location struct {
	Lat float64
	Lon float64
}

// DistanceTo returns the great-circle distance to other in meters.
func (l Location) DistanceTo(other Location) float64 {
	a := s2.LatLngFromDegrees(l.Lat, l.Lon)
	b := s2.LatLngFromDegrees(other.Lat, other.Lon)
	return a.Distance(b).Radians() * earthRadiusMeters
}

// Offset returns the location moved by the given meters north and east.
// Accurate enough for panning a viewport by tens of meters.
func (l Location) Offset(northMeters, eastMeters float64) Location {
	ll := s2.LatLngFromDegrees(l.Lat, l.Lon)
	dLat := northMeters / earthRadiusMeters
	dLon := 0.0
	if c := math.Cos(ll.Lat.Radians()); c > 1e-9 {
		dLon = eastMeters / (earthRadiusMeters * c)
	}
	moved := s2.LatLng{Lat: ll.Lat + s1.Angle(dLat), Lng: ll.Lng + s1.Angle(dLon)}.Normalized()
	return Location{Lat: moved.Lat.Degrees(), Lon: moved.Lng.Degrees()}
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (l Location) Valid() bool {
	return s2.LatLngFromDegrees(l.Lat, l.Lon).IsValid()
}

func (l Location) String() string {
	return fmt.Sprintf("%.5f,%.5f", l.Lat, l.Lon)
}
