package l5regions

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roti-lab/auroral.report/internal/oval/l3contour"
	"github.com/roti-lab/auroral.report/internal/oval/l4clusters"
	"github.com/roti-lab/auroral.report/internal/testutil"
)

func curve(pts []orb.Point) []l3contour.Point {
	out := make([]l3contour.Point, len(pts))
	for i, p := range pts {
		out[i] = l3contour.Point{Lon: p[0], Lat: p[1]}
	}
	return out
}

// bandRelation returns a top-bottom relation whose curves are horizontal
// lines at eqLat and poleLat over [-110, -70], closed the way the
// clusterer closes them.
func bandRelation(eqLat, poleLat float64) *l4clusters.Relation {
	pole := []l3contour.Point{{Lon: -110, Lat: 40}}
	pole = append(pole, curve(testutil.Line(orb.Point{-110, poleLat}, orb.Point{-70, poleLat}, 41))...)
	pole = append(pole, l3contour.Point{Lon: -70, Lat: 40})

	eq := []l3contour.Point{{Lon: -110, Lat: 90}}
	eq = append(eq, curve(testutil.Line(orb.Point{-110, eqLat}, orb.Point{-70, eqLat}, 41))...)
	eq = append(eq, l3contour.Point{Lon: -70, Lat: 90})

	return &l4clusters.Relation{
		Kind: l4clusters.RelationTopBottom,
		Curves: []l4clusters.Curve{
			{Role: l4clusters.RolePoleward, Points: pole, Closed: true, Closure: 40},
			{Role: l4clusters.RoleEquatorward, Points: eq, Closed: true, Closure: 90},
		},
	}
}

func TestBuild_Nil(t *testing.T) {
	t.Parallel()

	var r *Region
	assert.Nil(t, Build(nil))
	assert.False(t, r.Usable())
	assert.False(t, r.Contains(0, 0))
	assert.Zero(t, r.Area())
}

func TestBuild_TopBottomOverlapIsBand(t *testing.T) {
	t.Parallel()

	r := Build(bandRelation(55, 65))
	require.NotNil(t, r)
	require.Len(t, r.Polygons, 2)
	assert.True(t, r.Usable())

	poleArea := r.PolygonArea(0) // 40° × 25°
	eqArea := r.PolygonArea(1)   // 40° × 35°
	assert.InDelta(t, 1000, poleArea, 1e-6)
	assert.InDelta(t, 1400, eqArea, 1e-6)

	overlap := r.Area()
	assert.Greater(t, overlap, 0.0)
	assert.Less(t, overlap, poleArea)
	assert.Less(t, overlap, eqArea)
	assert.InDelta(t, 400, overlap, 1e-6)

	tests := []struct {
		name     string
		lon, lat float64
		want     bool
	}{
		{"inside band", -90, 60, true},
		{"equatorward of band", -90, 50, false},
		{"poleward of band", -90, 70, false},
		{"west of sector", -115, 60, false},
		{"east of sector", -65, 60, false},
		{"on equatorward edge", -90, 55, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Contains(tt.lon, tt.lat); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.lon, tt.lat, got, tt.want)
			}
		})
	}
}

func TestBuild_TopBottomWavyCurves(t *testing.T) {
	t.Parallel()

	// Nested arcs: the band between them is thinner than either polygon.
	pole := []l3contour.Point{{Lon: -110, Lat: 40}}
	pole = append(pole, curve(testutil.Arc(-90, 50, 20, 180, 0, 90))...)
	pole = append(pole, l3contour.Point{Lon: -70, Lat: 40})
	eq := []l3contour.Point{{Lon: -105, Lat: 90}}
	eq = append(eq, curve(testutil.Arc(-90, 50, 15, 180, 0, 90))...)
	eq = append(eq, l3contour.Point{Lon: -75, Lat: 90})

	r := Build(&l4clusters.Relation{
		Kind: l4clusters.RelationTopBottom,
		Curves: []l4clusters.Curve{
			{Role: l4clusters.RolePoleward, Points: pole, Closed: true, Closure: 40},
			{Role: l4clusters.RoleEquatorward, Points: eq, Closed: true, Closure: 90},
		},
	})
	require.True(t, r.Usable())
	assert.Less(t, r.Area(), r.PolygonArea(0))
	assert.Less(t, r.Area(), r.PolygonArea(1))
	assert.True(t, r.Contains(-90, 67.5))
	assert.False(t, r.Contains(-90, 60))
	assert.False(t, r.Contains(-90, 75))
}

func TestBuild_DisjointTopBottomNotUsable(t *testing.T) {
	t.Parallel()

	// Equatorward curve above the poleward curve: the polygons do not meet.
	r := Build(bandRelation(70, 50))
	require.NotNil(t, r)
	assert.Len(t, r.Polygons, 2)
	assert.False(t, r.Usable())
	assert.False(t, r.Contains(-90, 60))
}

func TestBuild_Single(t *testing.T) {
	t.Parallel()

	pts := []l3contour.Point{{Lon: -100, Lat: 90}}
	pts = append(pts, curve(testutil.Arc(-90, 60, 10, 180, 0, 50))...)
	pts = append(pts, l3contour.Point{Lon: -80, Lat: 90})

	r := Build(&l4clusters.Relation{
		Kind:   l4clusters.RelationSingle,
		Curves: []l4clusters.Curve{{Role: l4clusters.RoleSingle, Points: pts, Closed: true, Closure: 90}},
	})
	require.NotNil(t, r)
	require.Len(t, r.Polygons, 1)
	assert.True(t, r.Usable())
	assert.True(t, r.Polygons[0][0].Closed())
	assert.True(t, r.Contains(-90, 80))
	assert.False(t, r.Contains(-90, 65))
	assert.False(t, r.Contains(-120, 80))
}

func TestBuild_LeftRightNotUsable(t *testing.T) {
	t.Parallel()

	r := Build(&l4clusters.Relation{
		Kind: l4clusters.RelationLeftRight,
		Curves: []l4clusters.Curve{
			{Role: l4clusters.RoleWest, Points: curve(testutil.Line(orb.Point{-110, 60}, orb.Point{-105, 62}, 10))},
			{Role: l4clusters.RoleEast, Points: curve(testutil.Line(orb.Point{-75, 60}, orb.Point{-70, 62}, 10))},
		},
	})
	require.NotNil(t, r)
	assert.Equal(t, l4clusters.RelationLeftRight, r.Kind)
	assert.Empty(t, r.Polygons)
	assert.False(t, r.Usable())
	assert.False(t, r.Contains(-108, 61))
}

func TestIntersect(t *testing.T) {
	t.Parallel()

	square := func(x, y, s float64) orb.Ring {
		return orb.Ring{{x, y}, {x + s, y}, {x + s, y + s}, {x, y + s}, {x, y}}
	}

	t.Run("overlapping squares", func(t *testing.T) {
		mp := Intersect(square(0, 0, 2), square(1, 1, 2))
		r := &Region{Kind: l4clusters.RelationTopBottom, Interior: mp}
		assert.InDelta(t, 1.0, r.Area(), 1e-12)
		assert.True(t, r.Contains(1.5, 1.5))
		assert.False(t, r.Contains(0.5, 0.5))
	})
	t.Run("disjoint squares", func(t *testing.T) {
		assert.Empty(t, Intersect(square(0, 0, 1), square(5, 5, 1)))
	})
	t.Run("nested squares", func(t *testing.T) {
		mp := Intersect(square(0, 0, 10), square(2, 2, 3))
		r := &Region{Interior: mp}
		assert.InDelta(t, 9.0, r.Area(), 1e-12)
	})
	t.Run("crossing triangle", func(t *testing.T) {
		tri := orb.Ring{{-1, 0.5}, {3, 0.5}, {1, 3}}
		mp := Intersect(square(0, 0, 2), tri)
		r := &Region{Interior: mp}
		// The square's top clips the apex; the sides meet it at x=0.2
		// and x=1.8.
		assert.InDelta(t, 2.95, r.Area(), 1e-9)
	})
	t.Run("u shape across a bar gives two pieces", func(t *testing.T) {
		u := orb.Ring{{0, 0}, {3, 0}, {3, 3}, {2, 3}, {2, 1}, {1, 1}, {1, 3}, {0, 3}, {0, 0}}
		bar := orb.Ring{{-1, 2}, {4, 2}, {4, 2.5}, {-1, 2.5}, {-1, 2}}
		mp := Intersect(u, bar)
		require.Len(t, mp, 2)
		r := &Region{Interior: mp}
		assert.InDelta(t, 1.0, r.Area(), 1e-9)
		assert.True(t, r.Contains(0.5, 2.25))
		assert.True(t, r.Contains(2.5, 2.25))
		assert.False(t, r.Contains(1.5, 2.25))
	})
	t.Run("degenerate ring", func(t *testing.T) {
		assert.Nil(t, Intersect(orb.Ring{{0, 0}, {1, 1}, {0, 0}}, square(0, 0, 1)))
		assert.Nil(t, Intersect(nil, square(0, 0, 1)))
	})
	t.Run("closed rings with repeated vertices", func(t *testing.T) {
		a := orb.Ring{{0, 0}, {2, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}
		mp := Intersect(a, square(1, 1, 2))
		require.Len(t, mp, 1)
		assert.True(t, mp[0][0].Closed())
	})
}

func TestIntersect_MatchesBothRings(t *testing.T) {
	t.Parallel()

	pole := []l3contour.Point{{Lon: -110, Lat: 40}}
	pole = append(pole, curve(testutil.Arc(-90, 50, 20, 180, 0, 90))...)
	pole = append(pole, l3contour.Point{Lon: -70, Lat: 40})
	eq := []l3contour.Point{{Lon: -105, Lat: 90}}
	eq = append(eq, curve(testutil.Arc(-90, 50, 15, 180, 0, 90))...)
	eq = append(eq, l3contour.Point{Lon: -75, Lat: 90})
	a, b := curvePolygon(pole)[0], curvePolygon(eq)[0]

	r := &Region{Interior: Intersect(a, b)}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		p := orb.Point{-112 + 44*rng.Float64(), 38 + 54*rng.Float64()}
		want := planar.RingContains(a, p) && planar.RingContains(b, p)
		if got := r.Contains(p[0], p[1]); got != want {
			t.Fatalf("Contains(%v) = %v, want %v", p, got, want)
		}
	}
}

func TestGeoJSONRoundTrip(t *testing.T) {
	t.Parallel()

	r := Build(bandRelation(55, 65))
	data, err := r.MarshalGeoJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"role":"poleward"`)
	assert.Contains(t, string(data), `"role":"interior"`)

	got, err := ParseGeoJSON(data, l4clusters.RelationTopBottom)
	require.NoError(t, err)
	assert.Equal(t, r.Roles, got.Roles)
	assert.Equal(t, r.Polygons, got.Polygons)
	assert.Equal(t, r.Interior, got.Interior)
	assert.True(t, got.Usable())
	assert.True(t, got.Contains(-90, 60))

	_, err = ParseGeoJSON([]byte(`{"type":`), l4clusters.RelationNone)
	assert.Error(t, err)
}

func TestBound(t *testing.T) {
	t.Parallel()

	b := Build(bandRelation(55, 65)).Bound()
	assert.Equal(t, orb.Point{-110, 40}, b.Min)
	assert.Equal(t, orb.Point{-70, 90}, b.Max)
}
