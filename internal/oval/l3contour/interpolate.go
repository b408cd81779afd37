package l3contour

import (
	"errors"
	"math"

	"github.com/fogleman/delaunay"
	"gonum.org/v1/gonum/floats"

	"github.com/roti-lab/auroral.report/internal/oval/l2windows"
)

// Sentinel errors for data-insufficient epochs.
var (
	// ErrTooFewPoints means fewer than four distinct, non-collinear cells
	// were available to triangulate.
	ErrTooFewPoints = errors.New("too few points to interpolate")
	// ErrNoValidGrid means interpolation left every lattice node undefined.
	ErrNoValidGrid = errors.New("interpolation produced no valid grid nodes")
)

// DefaultGridPoints is the lattice resolution per axis.
const DefaultGridPoints = 100

// minPoints is the smallest number of distinct cells that can be
// interpolated.
const minPoints = 4

// Grid is a regular lattice of interpolated values. Nodes outside the
// convex hull of the input cells hold NaN.
type Grid struct {
	N   int       // nodes per axis
	Lon []float64 // node longitudes, ascending
	Lat []float64 // node latitudes, ascending
	Z   []float64 // row-major values, Z[j*N+i] is at (Lon[i], Lat[j])
}

// At returns the value at lattice node (i, j).
func (g *Grid) At(i, j int) float64 { return g.Z[j*g.N+i] }

// Valid returns the number of defined nodes.
func (g *Grid) Valid() int {
	n := 0
	for _, z := range g.Z {
		if !math.IsNaN(z) {
			n++
		}
	}
	return n
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	return floats.Span(out, lo, hi)
}

// Interpolate resamples cell values onto an n×n lattice spanning the cells'
// extent using piecewise-linear interpolation over their Delaunay
// triangulation.
func Interpolate(cells []l2windows.Cell, n int) (*Grid, error) {
	if n < 2 {
		n = DefaultGridPoints
	}

	type key struct{ lon, lat float64 }
	seen := make(map[key]struct{}, len(cells))
	uniq := make([]l2windows.Cell, 0, len(cells))
	for _, c := range cells {
		if math.IsNaN(c.Value) {
			continue
		}
		k := key{c.Lon, c.Lat}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, c)
	}
	if len(uniq) < minPoints {
		return nil, ErrTooFewPoints
	}

	minLon, maxLon := uniq[0].Lon, uniq[0].Lon
	minLat, maxLat := uniq[0].Lat, uniq[0].Lat
	for _, c := range uniq[1:] {
		minLon = math.Min(minLon, c.Lon)
		maxLon = math.Max(maxLon, c.Lon)
		minLat = math.Min(minLat, c.Lat)
		maxLat = math.Max(maxLat, c.Lat)
	}
	if maxLon == minLon || maxLat == minLat {
		return nil, ErrTooFewPoints
	}

	scale := math.Max(maxLon-minLon, maxLat-minLat)
	norm := make([]delaunay.Point, len(uniq))
	values := make([]float64, len(uniq))
	for i, c := range uniq {
		norm[i] = delaunay.Point{X: (c.Lon - minLon) / scale, Y: (c.Lat - minLat) / scale}
		values[i] = c.Value
	}

	tri, err := triangulate(norm)
	if err != nil {
		return nil, err
	}

	g := &Grid{
		N:   n,
		Lon: linspace(minLon, maxLon, n),
		Lat: linspace(minLat, maxLat, n),
		Z:   make([]float64, n*n),
	}
	for i := range g.Z {
		g.Z[i] = math.NaN()
	}

	nx := make([]float64, n)
	ny := make([]float64, n)
	for i := 0; i < n; i++ {
		nx[i] = (g.Lon[i] - minLon) / scale
		ny[i] = (g.Lat[i] - minLat) / scale
	}
	xStep := nx[n-1] / float64(n-1)
	yStep := ny[n-1] / float64(n-1)

	const tol = 1e-9
	for k := 0; k < tri.count(); k++ {
		ia, ib, ic := tri.corners(k)
		a, b, c := norm[ia], norm[ib], norm[ic]
		det := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
		if det == 0 {
			continue
		}
		va, vb, vc := values[ia], values[ib], values[ic]

		i0 := clampIndex(int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))/xStep)), n)
		i1 := clampIndex(int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))/xStep)), n)
		j0 := clampIndex(int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))/yStep)), n)
		j1 := clampIndex(int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))/yStep)), n)

		for j := j0; j <= j1; j++ {
			y := ny[j]
			for i := i0; i <= i1; i++ {
				idx := j*n + i
				if !math.IsNaN(g.Z[idx]) {
					continue
				}
				x := nx[i]
				l1 := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / det
				l2 := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / det
				l3 := 1 - l1 - l2
				if l1 < -tol || l2 < -tol || l3 < -tol {
					continue
				}
				g.Z[idx] = l1*va + l2*vb + l3*vc
			}
		}
	}

	if g.Valid() == 0 {
		return nil, ErrNoValidGrid
	}
	return g, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
