// Package l3contour owns Layer 3 (Contour) of the oval data model.
//
// Responsibilities: piecewise-linear interpolation of window cells over
// their Delaunay triangulation onto a regular lattice, and marching-squares
// extraction of the ROTI threshold isoline.
// Key types: Point, Grid.
//
// Lattice nodes outside the convex hull of the cells are undefined (NaN)
// and lattice cells touching them produce no isoline segments.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3contour
