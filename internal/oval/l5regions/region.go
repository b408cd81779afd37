package l5regions

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/roti-lab/auroral.report/internal/oval/l3contour"
	"github.com/roti-lab/auroral.report/internal/oval/l4clusters"
)

// Region is the oval interior for one epoch together with the polygons it
// was derived from.
type Region struct {
	Kind     l4clusters.RelationKind
	Polygons []orb.Polygon
	Roles    []l4clusters.Role // parallel to Polygons
	Interior orb.MultiPolygon
}

// Build turns a clustering relation into a region. Single relations give
// one polygon that is also the interior. Top-bottom relations give one
// polygon per curve and an interior equal to their overlap, the band
// between the curves. Left-right relations give a region without polygons
// that is never usable. A nil relation gives a nil region.
func Build(rel *l4clusters.Relation) *Region {
	if rel == nil {
		return nil
	}
	r := &Region{Kind: rel.Kind}

	switch rel.Kind {
	case l4clusters.RelationSingle:
		c, ok := rel.Curve(l4clusters.RoleSingle)
		if !ok {
			return r
		}
		poly := curvePolygon(c.Points)
		if poly == nil {
			return r
		}
		r.Polygons = []orb.Polygon{poly}
		r.Roles = []l4clusters.Role{l4clusters.RoleSingle}
		r.Interior = orb.MultiPolygon{poly}

	case l4clusters.RelationTopBottom:
		pole, okP := rel.Curve(l4clusters.RolePoleward)
		eq, okE := rel.Curve(l4clusters.RoleEquatorward)
		if !okP || !okE {
			return r
		}
		pp, ep := curvePolygon(pole.Points), curvePolygon(eq.Points)
		if pp == nil || ep == nil {
			return r
		}
		r.Polygons = []orb.Polygon{pp, ep}
		r.Roles = []l4clusters.Role{l4clusters.RolePoleward, l4clusters.RoleEquatorward}
		r.Interior = Intersect(pp[0], ep[0])
	}
	return r
}

// curvePolygon closes a curve into a single-ring polygon.
func curvePolygon(points []l3contour.Point) orb.Polygon {
	if len(points) < 3 {
		return nil
	}
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, p.Orb())
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

// Usable reports whether crossing tests can run against the region.
func (r *Region) Usable() bool {
	if r == nil || r.Kind == l4clusters.RelationLeftRight || len(r.Interior) == 0 {
		return false
	}
	return r.Area() > 0
}

// Contains reports whether (lon, lat) lies in the interior. Points on the
// boundary count as inside.
func (r *Region) Contains(lon, lat float64) bool {
	if r == nil || len(r.Interior) == 0 {
		return false
	}
	return planar.MultiPolygonContains(r.Interior, orb.Point{lon, lat})
}

// Area returns the planar interior area in square degrees.
func (r *Region) Area() float64 {
	if r == nil {
		return 0
	}
	var total float64
	for _, p := range r.Interior {
		total += math.Abs(planar.Area(p))
	}
	return total
}

// PolygonArea returns the planar area of the i-th source polygon.
func (r *Region) PolygonArea(i int) float64 {
	if r == nil || i < 0 || i >= len(r.Polygons) {
		return 0
	}
	return math.Abs(planar.Area(r.Polygons[i]))
}

// Bound returns the bounding box of all polygons.
func (r *Region) Bound() orb.Bound {
	var mp orb.MultiPolygon
	if r != nil {
		mp = append(mp, r.Polygons...)
	}
	return mp.Bound()
}

// Feature property keys used in the GeoJSON encoding.
const (
	PropKind = "relation"
	PropRole = "role"

	roleInterior = "interior"
)

// FeatureCollection encodes the region as GeoJSON: one Polygon feature per
// source polygon tagged with its role, and one MultiPolygon feature for the
// interior.
func (r *Region) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if r == nil {
		return fc
	}
	for i, p := range r.Polygons {
		f := geojson.NewFeature(p)
		f.Properties[PropKind] = r.Kind.String()
		f.Properties[PropRole] = r.Roles[i].String()
		fc.Append(f)
	}
	if len(r.Interior) > 0 {
		f := geojson.NewFeature(r.Interior)
		f.Properties[PropKind] = r.Kind.String()
		f.Properties[PropRole] = roleInterior
		fc.Append(f)
	}
	return fc
}

// MarshalGeoJSON returns the region's FeatureCollection as JSON bytes.
func (r *Region) MarshalGeoJSON() ([]byte, error) {
	return r.FeatureCollection().MarshalJSON()
}

// ParseGeoJSON rebuilds a region from MarshalGeoJSON output. kind is
// needed for regions that carry no features.
func ParseGeoJSON(data []byte, kind l4clusters.RelationKind) (*Region, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse region GeoJSON: %w", err)
	}
	r := &Region{Kind: kind}
	for _, f := range fc.Features {
		role := f.Properties.MustString(PropRole, "")
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			r.Polygons = append(r.Polygons, g)
			r.Roles = append(r.Roles, parseRole(role))
		case orb.MultiPolygon:
			if role != roleInterior {
				return nil, fmt.Errorf("unexpected multipolygon role %q", role)
			}
			r.Interior = g
		default:
			return nil, errors.New("unsupported region geometry " + f.Geometry.GeoJSONType())
		}
	}
	return r, nil
}

func parseRole(s string) l4clusters.Role {
	for _, r := range []l4clusters.Role{
		l4clusters.RolePoleward, l4clusters.RoleEquatorward,
		l4clusters.RoleWest, l4clusters.RoleEast,
	} {
		if r.String() == s {
			return r
		}
	}
	return l4clusters.RoleSingle
}
