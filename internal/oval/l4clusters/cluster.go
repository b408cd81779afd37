package l4clusters

import (
	"math"
	"sort"

	"github.com/roti-lab/auroral.report/internal/oval/l3contour"
)

// Params configures boundary clustering and curve closure.
type Params struct {
	Eps            float64 // DBSCAN radius in degrees
	MinSamples     int     // DBSCAN core-point threshold
	MinClusterSize int     // smallest cluster, and smallest closed curve, kept
	// MaxLatitude is the pole-side closure edge.
	MaxLatitude float64
	// EquatorwardEdge is the closure edge for the poleward curve of a
	// top-bottom pair (the sector's minimum latitude).
	EquatorwardEdge float64
}

// DefaultParams returns the production clustering parameters.
func DefaultParams() Params {
	return Params{
		Eps:             DefaultDBSCANEps,
		MinSamples:      DefaultDBSCANMinSamples,
		MinClusterSize:  100,
		MaxLatitude:     90,
		EquatorwardEdge: 40,
	}
}

// Cluster groups isoline points into boundary curves and classifies their
// arrangement. It returns ErrNoClusters when nothing survives filtering and
// ErrClosureTooSmall when closure trims a curve below MinClusterSize.
func Cluster(points []l3contour.Point, p Params) (*Relation, error) {
	clusters := SurvivingClusters(points, p)
	switch len(clusters) {
	case 0:
		return nil, ErrNoClusters
	case 1:
		return closeSingle(clusters[0], p)
	default:
		return pairRelation(clusters[0], clusters[1], p)
	}
}

// SurvivingClusters runs DBSCAN and returns the clusters with at least
// MinClusterSize points, largest first. Ties keep discovery order.
func SurvivingClusters(points []l3contour.Point, p Params) []BoundaryCluster {
	all := DBSCAN(points, DBSCANParams{Eps: p.Eps, MinSamples: p.MinSamples})
	kept := all[:0]
	for _, c := range all {
		if c.Size() >= p.MinClusterSize {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Size() > kept[j].Size() })
	return kept
}

// ClassifyPair returns the relation kind of two clusters from their
// centroid separation. Longitude-dominant is left-right; otherwise,
// including a tie, top-bottom.
func ClassifyPair(a, b BoundaryCluster) RelationKind {
	ca, cb := a.Centroid(), b.Centroid()
	if math.Abs(ca.Lon-cb.Lon) > math.Abs(ca.Lat-cb.Lat) {
		return RelationLeftRight
	}
	return RelationTopBottom
}

func closeSingle(c BoundaryCluster, p Params) (*Relation, error) {
	curve := orientWestEast(c.Points)
	minLon, maxLon := lonRange(curve)

	closed := make([]l3contour.Point, 0, len(curve)+2)
	closed = append(closed, l3contour.Point{Lon: minLon, Lat: p.MaxLatitude})
	closed = append(closed, curve...)
	closed = append(closed, l3contour.Point{Lon: maxLon, Lat: p.MaxLatitude})

	closed = Decircularize(closed, p.MaxLatitude)
	if len(closed) < p.MinClusterSize {
		return nil, ErrClosureTooSmall
	}
	return &Relation{
		Kind: RelationSingle,
		Curves: []Curve{{
			Role:    RoleSingle,
			Points:  closed,
			Closed:  true,
			Closure: p.MaxLatitude,
		}},
	}, nil
}

func pairRelation(a, b BoundaryCluster, p Params) (*Relation, error) {
	if ClassifyPair(a, b) == RelationLeftRight {
		west, east := a, b
		if b.Centroid().Lon < a.Centroid().Lon {
			west, east = b, a
		}
		return &Relation{
			Kind: RelationLeftRight,
			Curves: []Curve{
				{Role: RoleWest, Points: west.Points},
				{Role: RoleEast, Points: east.Points},
			},
		}, nil
	}

	pole, eq := a, b
	if centroid(b.Points).Lat > centroid(a.Points).Lat {
		pole, eq = b, a
	}
	poleCurve := orientWestEast(pole.Points)
	eqCurve := orientWestEast(eq.Points)

	// Stretch the poleward curve horizontally to the equatorward span so
	// the band is bounded on both sides.
	eqMin, eqMax := lonRange(eqCurve)
	westPt, eastPt := lonExtremes(poleCurve)
	if eqMin < westPt.Lon {
		poleCurve = append([]l3contour.Point{{Lon: eqMin, Lat: westPt.Lat}}, poleCurve...)
	}
	if eqMax > eastPt.Lon {
		poleCurve = append(poleCurve, l3contour.Point{Lon: eqMax, Lat: eastPt.Lat})
	}

	poleClosed := closeAgainst(poleCurve, p.EquatorwardEdge)
	eqClosed := closeAgainst(eqCurve, p.MaxLatitude)

	poleClosed = Decircularize(poleClosed, p.EquatorwardEdge)
	eqClosed = Decircularize(eqClosed, p.MaxLatitude)
	if len(poleClosed) < p.MinClusterSize || len(eqClosed) < p.MinClusterSize {
		return nil, ErrClosureTooSmall
	}

	return &Relation{
		Kind: RelationTopBottom,
		Curves: []Curve{
			{Role: RolePoleward, Points: poleClosed, Closed: true, Closure: p.EquatorwardEdge},
			{Role: RoleEquatorward, Points: eqClosed, Closed: true, Closure: p.MaxLatitude},
		},
	}, nil
}

// closeAgainst brackets a west-to-east curve with points on the edge
// latitude below its western and above its eastern extremes.
func closeAgainst(curve []l3contour.Point, edge float64) []l3contour.Point {
	minLon, maxLon := lonRange(curve)
	out := make([]l3contour.Point, 0, len(curve)+2)
	out = append(out, l3contour.Point{Lon: minLon, Lat: edge})
	out = append(out, curve...)
	out = append(out, l3contour.Point{Lon: maxLon, Lat: edge})
	return out
}

// Decircularize trims a closed curve where it starts folding back on
// itself. The direction of |lon| between the first two distinct values
// decides whether the curve runs towards the first maximum or the first
// minimum of |lon|; points past that extremum are dropped unless they lie
// on the closure latitude.
func Decircularize(points []l3contour.Point, closure float64) []l3contour.Point {
	if len(points) < 2 {
		return points
	}
	first := math.Abs(points[0].Lon)
	k := 1
	for k < len(points) && math.Abs(points[k].Lon) == first {
		k++
	}
	if k == len(points) {
		return points
	}
	increasing := math.Abs(points[k].Lon) > first

	ext := 0
	for i := 1; i < len(points); i++ {
		v := math.Abs(points[i].Lon)
		best := math.Abs(points[ext].Lon)
		if (increasing && v > best) || (!increasing && v < best) {
			ext = i
		}
	}

	out := make([]l3contour.Point, 0, len(points))
	for i, pt := range points {
		if i <= ext || pt.Lat == closure {
			out = append(out, pt)
		}
	}
	return out
}

// orientWestEast returns the curve ordered so it starts at its western end.
func orientWestEast(points []l3contour.Point) []l3contour.Point {
	out := make([]l3contour.Point, len(points))
	copy(out, points)
	if len(out) > 1 && out[0].Lon > out[len(out)-1].Lon {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func lonRange(points []l3contour.Point) (float64, float64) {
	w, e := lonExtremes(points)
	return w.Lon, e.Lon
}

// lonExtremes returns the first westernmost and first easternmost points.
func lonExtremes(points []l3contour.Point) (west, east l3contour.Point) {
	if len(points) == 0 {
		return
	}
	west, east = points[0], points[0]
	for _, p := range points[1:] {
		if p.Lon < west.Lon {
			west = p
		}
		if p.Lon > east.Lon {
			east = p
		}
	}
	return west, east
}
