// Package l5regions owns Layer 5 (Regions) of the oval data model.
//
// Responsibilities: building polygons from closed boundary curves and
// deriving the oval interior used for point-in-region tests.
// Key types: Region.
//
// For a top-bottom pair the poleward curve is closed towards the equator
// and the equatorward curve towards the pole, so the planar intersection of
// the two polygons is the band between the curves.
//
// Dependency rule: L5 may depend on L1-L4, but never on L6+.
package l5regions
