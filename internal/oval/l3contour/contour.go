package l3contour

import (
	"github.com/paulmach/orb"

	"github.com/roti-lab/auroral.report/internal/oval/l2windows"
)

// Point is a vertex on the boundary isoline.
type Point struct {
	Lon float64
	Lat float64
}

// Orb returns p as an orb point (x = lon, y = lat).
func (p Point) Orb() orb.Point { return orb.Point{p.Lon, p.Lat} }

// Polylines interpolates cells onto a gridPoints×gridPoints lattice and
// traces the threshold isoline, keeping each chain separate.
func Polylines(cells []l2windows.Cell, threshold float64, gridPoints int) ([][]Point, error) {
	g, err := Interpolate(cells, gridPoints)
	if err != nil {
		return nil, err
	}
	return isolines(g, threshold), nil
}

// Extract returns every vertex of the threshold isoline as one flat
// sequence. Chain identity is discarded; the walk order within each chain
// is kept. A field that never reaches the threshold yields no points and no
// error; ErrTooFewPoints and ErrNoValidGrid report data too sparse to
// interpolate.
func Extract(cells []l2windows.Cell, threshold float64, gridPoints int) ([]Point, error) {
	lines, err := Polylines(cells, threshold, gridPoints)
	if err != nil {
		return nil, err
	}
	n := 0
	for _, l := range lines {
		n += len(l)
	}
	out := make([]Point, 0, n)
	for _, l := range lines {
		out = append(out, l...)
	}
	return out, nil
}
