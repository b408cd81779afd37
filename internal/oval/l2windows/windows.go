package l2windows

import (
	"math"
	"sort"

	"github.com/roti-lab/auroral.report/internal/oval/l1samples"
)

// WindowSize is the extent of one aggregation window in degrees.
type WindowSize struct {
	Lat float64
	Lon float64
}

// Step is the advance of the window between adjacent positions in degrees.
// A step smaller than the window size produces overlapping windows.
type Step struct {
	Lat float64
	Lon float64
}

// Cell is one non-empty window position.
type Cell struct {
	Lon   float64 // window centre
	Lat   float64 // window centre
	Value float64 // median of samples inside the window
	Count int     // samples inside the window
}

// DefaultWindowSize returns the 5°×10° (lat×lon) window.
func DefaultWindowSize() WindowSize { return WindowSize{Lat: 5, Lon: 10} }

// DefaultStep returns the 0.7°×0.2° (lat×lon) step.
func DefaultStep() Step { return Step{Lat: 0.7, Lon: 0.2} }

// Segment sweeps a window over the bounding box of points and emits one cell
// per window position containing at least one sample.
//
// The first window is centred on the bounding box's minimum corner. Window
// bounds are half-open: lon ∈ [cur, cur+size.Lon), lat ∈ [cur, cur+size.Lat).
// Cells are emitted row-major, latitude outer, so output order does not
// depend on input order.
func Segment(points []l1samples.SamplePoint, size WindowSize, step Step) []Cell {
	if len(points) == 0 || size.Lat <= 0 || size.Lon <= 0 || step.Lat <= 0 || step.Lon <= 0 {
		return nil
	}

	minLon, maxLon := points[0].Lon, points[0].Lon
	minLat, maxLat := points[0].Lat, points[0].Lat
	for _, p := range points[1:] {
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
	}

	latSteps := int(math.Ceil((maxLat-minLat+size.Lat)/step.Lat)) + 1
	lonSteps := int(math.Ceil((maxLon-minLon+size.Lon)/step.Lon)) + 1
	originLat := minLat - size.Lat/2
	originLon := minLon - size.Lon/2

	byLat := make([]l1samples.SamplePoint, len(points))
	copy(byLat, points)
	sort.SliceStable(byLat, func(i, j int) bool { return byLat[i].Lat < byLat[j].Lat })

	var cells []Cell
	row := make([]l1samples.SamplePoint, 0, len(points))
	values := make([]float64, 0, len(points))

	for i := 0; i < latSteps; i++ {
		curLat := originLat + float64(i)*step.Lat
		lo := sort.Search(len(byLat), func(k int) bool { return byLat[k].Lat >= curLat })
		hi := sort.Search(len(byLat), func(k int) bool { return byLat[k].Lat >= curLat+size.Lat })
		if lo >= hi {
			continue
		}

		row = append(row[:0], byLat[lo:hi]...)
		sort.SliceStable(row, func(a, b int) bool { return row[a].Lon < row[b].Lon })

		for j := 0; j < lonSteps; j++ {
			curLon := originLon + float64(j)*step.Lon
			cl := sort.Search(len(row), func(k int) bool { return row[k].Lon >= curLon })
			ch := sort.Search(len(row), func(k int) bool { return row[k].Lon >= curLon+size.Lon })
			if cl >= ch {
				continue
			}

			values = values[:0]
			for _, p := range row[cl:ch] {
				values = append(values, p.Value)
			}
			cells = append(cells, Cell{
				Lon:   curLon + size.Lon/2,
				Lat:   curLat + size.Lat/2,
				Value: Median(values),
				Count: ch - cl,
			})
		}
	}
	return cells
}

// Median returns the median of values, averaging the two middle elements
// for an even count. It reorders values in place. Returns NaN when empty.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
