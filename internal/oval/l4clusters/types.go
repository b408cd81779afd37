package l4clusters

import (
	"errors"

	"github.com/roti-lab/auroral.report/internal/oval/l3contour"
)

// Sentinel errors for epochs without a usable boundary.
var (
	// ErrNoClusters means no cluster survived noise and size filtering.
	ErrNoClusters = errors.New("no boundary clusters")
	// ErrClosureTooSmall means a closed curve fell below the minimum
	// cluster size after de-circularization.
	ErrClosureTooSmall = errors.New("closed boundary curve below minimum size")
)

// BoundaryCluster is one density-connected group of isoline points.
type BoundaryCluster struct {
	ID     int
	Points []l3contour.Point
}

// Size returns the number of points in the cluster.
func (c BoundaryCluster) Size() int { return len(c.Points) }

// Centroid returns the mean position of the cluster's points.
func (c BoundaryCluster) Centroid() l3contour.Point {
	return centroid(c.Points)
}

func centroid(points []l3contour.Point) l3contour.Point {
	if len(points) == 0 {
		return l3contour.Point{}
	}
	var sumLon, sumLat float64
	for _, p := range points {
		sumLon += p.Lon
		sumLat += p.Lat
	}
	n := float64(len(points))
	return l3contour.Point{Lon: sumLon / n, Lat: sumLat / n}
}

// RelationKind tags the arrangement of the boundary curves in one epoch.
type RelationKind int

const (
	RelationNone RelationKind = iota
	RelationSingle
	RelationLeftRight
	RelationTopBottom
)

func (k RelationKind) String() string {
	switch k {
	case RelationSingle:
		return "single-cluster"
	case RelationLeftRight:
		return "left-right"
	case RelationTopBottom:
		return "top-bottom"
	default:
		return "none"
	}
}

// ParseRelationKind is the inverse of RelationKind.String.
func ParseRelationKind(s string) RelationKind {
	switch s {
	case "single-cluster":
		return RelationSingle
	case "left-right":
		return RelationLeftRight
	case "top-bottom":
		return RelationTopBottom
	default:
		return RelationNone
	}
}

// Role names a curve's position within its relation.
type Role int

const (
	RoleSingle Role = iota
	RolePoleward
	RoleEquatorward
	RoleWest
	RoleEast
)

func (r Role) String() string {
	switch r {
	case RolePoleward:
		return "poleward"
	case RoleEquatorward:
		return "equatorward"
	case RoleWest:
		return "west"
	case RoleEast:
		return "east"
	default:
		return "single"
	}
}

// Curve is one finished boundary curve.
type Curve struct {
	Role   Role
	Points []l3contour.Point
	// Closed curves begin and end on the Closure latitude edge.
	Closed  bool
	Closure float64
}

// Relation is the clustering outcome for one epoch. A single relation
// carries one closed curve; pair relations carry two curves with distinct
// roles. A nil *Relation means no boundary was detected.
type Relation struct {
	Kind   RelationKind
	Curves []Curve
}

// Curve returns the curve with the given role.
func (r *Relation) Curve(role Role) (Curve, bool) {
	if r == nil {
		return Curve{}, false
	}
	for _, c := range r.Curves {
		if c.Role == role {
			return c, true
		}
	}
	return Curve{}, false
}

// PointCount returns the total number of points across all curves.
func (r *Relation) PointCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Curves {
		n += len(c.Points)
	}
	return n
}
