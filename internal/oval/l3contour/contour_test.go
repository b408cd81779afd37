package l3contour

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/fogleman/delaunay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roti-lab/auroral.report/internal/oval/l2windows"
	"github.com/roti-lab/auroral.report/internal/testutil"
)

// latticeCells samples f on a regular lattice.
func latticeCells(minLon, maxLon, minLat, maxLat, spacing float64, f func(lon, lat float64) float64) []l2windows.Cell {
	var cells []l2windows.Cell
	nLon := int(math.Round((maxLon-minLon)/spacing)) + 1
	nLat := int(math.Round((maxLat-minLat)/spacing)) + 1
	for j := 0; j < nLat; j++ {
		lat := minLat + float64(j)*spacing
		for i := 0; i < nLon; i++ {
			lon := minLon + float64(i)*spacing
			cells = append(cells, l2windows.Cell{Lon: lon, Lat: lat, Value: f(lon, lat), Count: 1})
		}
	}
	return cells
}

// =============================================================================
// Triangulation
// =============================================================================

func randomPoints(seed int64, n int) []delaunay.Point {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]delaunay.Point, n)
	for i := range pts {
		pts[i] = delaunay.Point{X: rng.Float64(), Y: rng.Float64()}
	}
	return pts
}

// inCircumcircle reports whether d lies strictly inside the circumcircle
// of triangle abc, whatever its orientation.
func inCircumcircle(a, b, c, d delaunay.Point) bool {
	orient := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	adx, ady := a.X-d.X, a.Y-d.Y
	bdx, bdy := b.X-d.X, b.Y-d.Y
	cdx, cdy := c.X-d.X, c.Y-d.Y
	det := (adx*adx+ady*ady)*(bdx*cdy-cdx*bdy) -
		(bdx*bdx+bdy*bdy)*(adx*cdy-cdx*ady) +
		(cdx*cdx+cdy*cdy)*(adx*bdy-bdx*ady)
	if orient < 0 {
		det = -det
	}
	return det > 1e-12
}

func TestTriangulate_DelaunayProperty(t *testing.T) {
	t.Parallel()

	pts := randomPoints(1, 200)
	tri, err := triangulate(pts)
	require.NoError(t, err)
	require.NotZero(t, tri.count())

	for k := 0; k < tri.count(); k++ {
		ia, ib, ic := tri.corners(k)
		for m := range pts {
			if m == ia || m == ib || m == ic {
				continue
			}
			if inCircumcircle(pts[ia], pts[ib], pts[ic], pts[m]) {
				t.Fatalf("point %d lies inside circumcircle of triangle %d", m, k)
			}
		}
	}
}

func TestTriangulate_Valid(t *testing.T) {
	t.Parallel()

	tri, err := triangulate(randomPoints(2, 150))
	require.NoError(t, err)
	assert.NoError(t, tri.Validate())
	assert.NotEmpty(t, tri.ConvexHull)
}

func TestTriangulate_Lattice(t *testing.T) {
	t.Parallel()

	// Window centres form a regular lattice with many co-circular points.
	var pts []delaunay.Point
	for j := 0; j < 12; j++ {
		for i := 0; i < 30; i++ {
			pts = append(pts, delaunay.Point{X: float64(i) / 29, Y: float64(j) / 29})
		}
	}
	tri, err := triangulate(pts)
	require.NoError(t, err)

	// The triangles tile the lattice rectangle and touch every node.
	used := make([]bool, len(pts))
	var area float64
	for k := 0; k < tri.count(); k++ {
		ia, ib, ic := tri.corners(k)
		used[ia], used[ib], used[ic] = true, true, true
		a, b, c := pts[ia], pts[ib], pts[ic]
		area += math.Abs((b.X-a.X)*(c.Y-a.Y)-(b.Y-a.Y)*(c.X-a.X)) / 2
	}
	assert.InDelta(t, 11.0/29, area, 1e-9)
	assert.NotContains(t, used, false)
}

func TestTriangulate_CollinearIsTooFewPoints(t *testing.T) {
	t.Parallel()

	pts := []delaunay.Point{{X: 0, Y: 0}, {X: 0.25, Y: 0.25}, {X: 0.5, Y: 0.5}, {X: 0.75, Y: 0.75}, {X: 1, Y: 1}}
	_, err := triangulate(pts)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

// =============================================================================
// Interpolation
// =============================================================================

func TestInterpolate_ReproducesLinearField(t *testing.T) {
	t.Parallel()

	f := func(lon, lat float64) float64 { return 0.01*lon - 0.02*lat + 3 }
	cells := latticeCells(-110, -100, 50, 60, 1, f)

	g, err := Interpolate(cells, 25)
	require.NoError(t, err)
	assert.Equal(t, 25*25, g.Valid(), "lattice inside a rectangular hull should be fully defined")

	for j := 0; j < g.N; j++ {
		for i := 0; i < g.N; i++ {
			z := g.At(i, j)
			if math.IsNaN(z) {
				continue
			}
			assert.InDelta(t, f(g.Lon[i], g.Lat[j]), z, 1e-9)
		}
	}
	assert.Equal(t, -110.0, g.Lon[0])
	assert.Equal(t, -100.0, g.Lon[g.N-1])
	assert.Equal(t, 60.0, g.Lat[g.N-1])
}

func TestInterpolate_OutsideHullIsNaN(t *testing.T) {
	t.Parallel()

	// A triangle of cells plus one interior point: the lattice corner
	// opposite the hypotenuse lies outside the hull.
	cells := []l2windows.Cell{
		{Lon: 0, Lat: 0, Value: 1},
		{Lon: 10, Lat: 0, Value: 1},
		{Lon: 0, Lat: 10, Value: 1},
		{Lon: 2, Lat: 2, Value: 1},
	}
	g, err := Interpolate(cells, 11)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(g.At(10, 10)))
	assert.False(t, math.IsNaN(g.At(0, 0)))
	assert.InDelta(t, 1.0, g.At(1, 1), 1e-12)
}

func TestInterpolate_InsufficientData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cells []l2windows.Cell
	}{
		{"empty", nil},
		{"three points", []l2windows.Cell{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 0, Lat: 1}}},
		{"duplicates collapse", []l2windows.Cell{
			{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 0, Lat: 1}, {Lon: 0, Lat: 1}, {Lon: 1, Lat: 0},
		}},
		{"collinear", []l2windows.Cell{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}, {Lon: 2, Lat: 2}, {Lon: 3, Lat: 3}, {Lon: 4, Lat: 4}}},
		{"single latitude", []l2windows.Cell{{Lon: 0, Lat: 5}, {Lon: 1, Lat: 5}, {Lon: 2, Lat: 5}, {Lon: 3, Lat: 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Interpolate(tt.cells, 10)
			if !errors.Is(err, ErrTooFewPoints) {
				t.Errorf("expected ErrTooFewPoints, got %v", err)
			}
		})
	}
}

// =============================================================================
// Isolines
// =============================================================================

// TestExtract_BilinearIsoline checks that every contour vertex of f = x*y
// lies within one lattice cell of the analytic curve x*y = level.
func TestExtract_BilinearIsoline(t *testing.T) {
	t.Parallel()

	f := func(x, y float64) float64 { return x * y }
	cells := latticeCells(1, 5, 1, 5, 0.25, f)
	const level = 6.0
	const gridPoints = 40

	pts, err := Extract(cells, level, gridPoints)
	require.NoError(t, err)
	require.NotEmpty(t, pts)

	cellDiag := math.Hypot(4.0/(gridPoints-1), 4.0/(gridPoints-1))
	for _, p := range pts {
		grad := math.Hypot(p.Lat, p.Lon)
		dist := math.Abs(f(p.Lon, p.Lat)-level) / grad
		if dist > cellDiag {
			t.Errorf("point (%f, %f) is %f from the isoline, want <= %f", p.Lon, p.Lat, dist, cellDiag)
		}
	}
}

func TestPolylines_BandGivesTwoOpenChains(t *testing.T) {
	t.Parallel()

	cells := latticeCells(-120, -60, 40, 85, 1, func(_, lat float64) float64 {
		return testutil.BandValue(lat)
	})
	const threshold = 0.07
	eq, pole, ok := testutil.BandEdges(threshold)
	require.True(t, ok)

	lines, err := Polylines(cells, threshold, 50)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	for _, line := range lines {
		require.Len(t, line, 50, "one crossing per lattice column")
		want := eq
		if line[0].Lat > testutil.BandCenterLat {
			want = pole
		}
		for _, p := range line {
			assert.InDelta(t, want, p.Lat, 1e-6)
		}
		// Chains walk the line monotonically in longitude.
		dir := math.Signbit(line[len(line)-1].Lon - line[0].Lon)
		for k := 1; k < len(line); k++ {
			assert.Equal(t, dir, math.Signbit(line[k].Lon-line[k-1].Lon))
		}
	}

	flat, err := Extract(cells, threshold, 50)
	require.NoError(t, err)
	assert.Len(t, flat, 100)
}

func TestPolylines_ClosedLoop(t *testing.T) {
	t.Parallel()

	bump := func(lon, lat float64) float64 {
		return math.Exp(-(lon*lon + lat*lat) / 8)
	}
	cells := latticeCells(-6, 6, -6, 6, 0.5, bump)
	level := math.Exp(-0.5) // isoline at radius 2

	lines, err := Polylines(cells, level, 60)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Greater(t, len(lines[0]), 20)
	for _, p := range lines[0] {
		assert.InDelta(t, 2.0, math.Hypot(p.Lon, p.Lat), 0.1)
	}
}

func TestExtract_BelowThreshold(t *testing.T) {
	t.Parallel()

	cells := latticeCells(0, 5, 0, 5, 1, func(_, _ float64) float64 { return 0.01 })
	pts, err := Extract(cells, 0.07, 20)
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestExtract_TooFewPoints(t *testing.T) {
	t.Parallel()

	_, err := Extract([]l2windows.Cell{{Lon: 0, Lat: 0, Value: 1}}, 0.5, 10)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestIsolines_SaddleResolvedByCentre(t *testing.T) {
	t.Parallel()

	// Diagonal corners above: bl and tr high, br and tl low.
	g := &Grid{
		N:   2,
		Lon: []float64{0, 1},
		Lat: []float64{0, 1},
		Z:   []float64{1, 0, 0, 1}, // (0,0)=1 (1,0)=0 (0,1)=0 (1,1)=1
	}
	above := isolines(g, 0.4) // centre 0.5 >= 0.4, high corners join
	require.Len(t, above, 2)
	for _, l := range above {
		require.Len(t, l, 2)
	}
	// Segments isolate the low corners: bottom-right and top-left.
	assert.InDelta(t, 0.6, above[0][0].Lon+above[0][1].Lon-1, 1e-12)

	below := isolines(g, 0.6) // centre 0.5 < 0.6, high corners isolated
	require.Len(t, below, 2)
	assert.InDelta(t, 0.4, below[0][0].Lat, 1e-12)
	assert.InDelta(t, 0.4, below[0][1].Lon, 1e-12)
}

func TestIsolines_SkipsUndefinedCells(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	g := &Grid{
		N:   3,
		Lon: []float64{0, 1, 2},
		Lat: []float64{0, 1, 2},
		Z: []float64{
			0, 0, nan,
			1, 1, nan,
			1, 1, nan,
		},
	}
	lines := isolines(g, 0.5)
	require.Len(t, lines, 1)
	require.Len(t, lines[0], 2)
	for _, p := range lines[0] {
		assert.InDelta(t, 0.5, p.Lat, 1e-12)
		assert.LessOrEqual(t, p.Lon, 1.0)
	}
}
