package l5regions

import (
	"math"
	"sort"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// toContour drops the closing vertex and repeated vertices of r.
func toContour(r orb.Ring) polyclip.Contour {
	c := make(polyclip.Contour, 0, len(r))
	for i, p := range r {
		if i == len(r)-1 && len(r) > 1 && p == r[0] {
			break
		}
		if len(c) > 0 && c[len(c)-1].X == p[0] && c[len(c)-1].Y == p[1] {
			continue
		}
		c = append(c, polyclip.Point{X: p[0], Y: p[1]})
	}
	return c
}

// toRing closes a polyclip contour.
func toRing(c polyclip.Contour) orb.Ring {
	r := make(orb.Ring, 0, len(c)+1)
	for _, p := range c {
		r = append(r, orb.Point{p.X, p.Y})
	}
	return append(r, r[0])
}

// Intersect returns the intersection of two simple rings. The clipper
// returns a flat list of contours; a contour lying inside an odd number of
// larger ones is a hole of the smallest of them.
func Intersect(a, b orb.Ring) orb.MultiPolygon {
	ca, cb := toContour(a), toContour(b)
	if len(ca) < 3 || len(cb) < 3 {
		return nil
	}
	out := polyclip.Polygon{ca}.Construct(polyclip.INTERSECTION, polyclip.Polygon{cb})

	type piece struct {
		ring orb.Ring
		area float64
	}
	pieces := make([]piece, 0, len(out))
	for _, c := range out {
		if len(c) < 3 {
			continue
		}
		r := toRing(c)
		if area := math.Abs(planar.Area(r)); area > 0 {
			pieces = append(pieces, piece{ring: r, area: area})
		}
	}
	sort.SliceStable(pieces, func(i, j int) bool { return pieces[i].area > pieces[j].area })

	var mp orb.MultiPolygon
	owner := make([]int, len(pieces)) // index into mp, or -1 for holes
	for i, p := range pieces {
		depth, parent := 0, -1
		for j := 0; j < i; j++ {
			if planar.RingContains(pieces[j].ring, p.ring[0]) {
				depth++
				parent = j
			}
		}
		if depth%2 == 0 {
			owner[i] = len(mp)
			mp = append(mp, orb.Polygon{p.ring})
			continue
		}
		owner[i] = -1
		if k := owner[parent]; k >= 0 {
			mp[k] = append(mp[k], p.ring)
		}
	}
	return mp
}
