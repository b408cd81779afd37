package testutil

import (
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
)

// Synthetic band field: a tent-shaped ROTI enhancement centred on
// BandCenterLat over a quiet background.
const (
	BandCenterLat = 60.0
	BandHalfWidth = 10.0
	BandPeak      = 0.2
	BandFloor     = 0.02
)

// BandValue returns the synthetic ROTI value at latitude lat. The field is
// independent of longitude.
func BandValue(lat float64) float64 {
	d := math.Abs(lat-BandCenterLat) / BandHalfWidth
	return BandFloor + BandPeak*math.Max(0, 1-d)
}

// BandEdges returns the analytic latitudes where BandValue crosses
// threshold. ok is false when the threshold is outside the field's range.
func BandEdges(threshold float64) (equatorward, poleward float64, ok bool) {
	if threshold <= BandFloor || threshold >= BandFloor+BandPeak {
		return 0, 0, false
	}
	d := (1 - (threshold-BandFloor)/BandPeak) * BandHalfWidth
	return BandCenterLat - d, BandCenterLat + d, true
}

// BandSamples returns samples of BandValue on a regular lattice covering
// [minLon, maxLon] × [minLat, maxLat] with the given spacing in degrees.
func BandSamples(minLon, maxLon, minLat, maxLat, spacing float64) []l1samples.SamplePoint {
	nLon := int(math.Floor((maxLon-minLon)/spacing+1e-9)) + 1
	nLat := int(math.Floor((maxLat-minLat)/spacing+1e-9)) + 1
	points := make([]l1samples.SamplePoint, 0, nLon*nLat)
	for j := 0; j < nLat; j++ {
		lat := minLat + float64(j)*spacing
		for i := 0; i < nLon; i++ {
			lon := minLon + float64(i)*spacing
			points = append(points, l1samples.SamplePoint{Lon: lon, Lat: lat, Value: BandValue(lat)})
		}
	}
	return points
}

// Arc returns n points on a circular arc around (centerLon, centerLat)
// from startDeg to endDeg (counter-clockwise from east), inclusive.
func Arc(centerLon, centerLat, radius, startDeg, endDeg float64, n int) []orb.Point {
	if n < 2 {
		return nil
	}
	points := make([]orb.Point, n)
	for i := 0; i < n; i++ {
		a := (startDeg + (endDeg-startDeg)*float64(i)/float64(n-1)) * math.Pi / 180
		points[i] = orb.Point{centerLon + radius*math.Cos(a), centerLat + radius*math.Sin(a)}
	}
	return points
}

// Line returns n evenly spaced points from a to b inclusive.
func Line(a, b orb.Point, n int) []orb.Point {
	if n < 2 {
		return nil
	}
	points := make([]orb.Point, n)
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n-1)
		points[i] = orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
	}
	return points
}

// MeridianTrack returns a ground track at fixed longitude moving linearly
// from lat0 to lat1, sampled every step starting at start.
func MeridianTrack(station, satellite string, start time.Time, step time.Duration, n int, lon, lat0, lat1 float64) l1samples.TrackRecord {
	tr := l1samples.TrackRecord{Station: station, Satellite: satellite}
	for i := 0; i < n; i++ {
		f := 0.0
		if n > 1 {
			f = float64(i) / float64(n-1)
		}
		tr.Samples = append(tr.Samples, l1samples.TrackPoint{
			Time: start.Add(time.Duration(i) * step),
			Lon:  lon,
			Lat:  lat0 + (lat1-lat0)*f,
		})
	}
	return tr
}
