package l1samples

import (
	"fmt"
	"math"
)

// SamplePoint is a single ROTI measurement projected to a geographic
// position (the ionospheric pierce point of one station/satellite line of
// sight).
type SamplePoint struct {
	Lon   float64 `json:"lon"`   // degrees, [-180, 180]
	Lat   float64 `json:"lat"`   // degrees, [-90, 90]
	Value float64 `json:"value"` // ROTI, TECU/min
}

// Validate reports whether the point carries finite, in-range coordinates.
func (p SamplePoint) Validate() error {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || math.IsNaN(p.Value) {
		return fmt.Errorf("sample has NaN field: %+v", p)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("sample longitude %f out of range [-180, 180]", p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("sample latitude %f out of range [-90, 90]", p.Lat)
	}
	return nil
}

// Sector is the geographic gate applied to samples before aggregation.
type Sector struct {
	MinLon float64
	MaxLon float64
	MinLat float64
}

// DefaultSector returns the North American high-latitude sector.
func DefaultSector() Sector {
	return Sector{MinLon: -120, MaxLon: -60, MinLat: 40}
}

// Contains reports whether (lon, lat) passes the gate. Bounds are inclusive.
func (s Sector) Contains(lon, lat float64) bool {
	return lon >= s.MinLon && lon <= s.MaxLon && lat >= s.MinLat
}

// Gate returns the points inside the sector, preserving input order.
// Invalid points are dropped.
func Gate(points []SamplePoint, s Sector) []SamplePoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]SamplePoint, 0, len(points))
	for _, p := range points {
		if p.Validate() != nil {
			continue
		}
		if s.Contains(p.Lon, p.Lat) {
			out = append(out, p)
		}
	}
	return out
}
