package l3contour

import (
	"github.com/fogleman/delaunay"
)

// triangulation holds a Delaunay triangulation of normalised cell
// positions. Triangles holds three vertex indices per triangle.
type triangulation struct {
	*delaunay.Triangulation
}

// triangulate builds the Delaunay triangulation of pts. Collinear input has
// no triangulation and reports ErrTooFewPoints.
func triangulate(pts []delaunay.Point) (*triangulation, error) {
	t, err := delaunay.Triangulate(pts)
	if err != nil || len(t.Triangles) == 0 {
		return nil, ErrTooFewPoints
	}
	return &triangulation{t}, nil
}

// count returns the number of triangles.
func (t *triangulation) count() int { return len(t.Triangles) / 3 }

// corners returns the vertex indices of triangle k.
func (t *triangulation) corners(k int) (int, int, int) {
	return t.Triangles[3*k], t.Triangles[3*k+1], t.Triangles[3*k+2]
}
