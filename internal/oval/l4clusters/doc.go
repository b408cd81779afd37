// Package l4clusters owns Layer 4 (Clusters) of the oval data model.
//
// Responsibilities: DBSCAN grouping of isoline points into boundary
// curves, classification of the two largest curves as left-right or
// top-bottom, and closure of each curve against a latitude edge.
// Key types: BoundaryCluster, Relation, Curve.
//
// The closure and de-circularization heuristics assume oval-shaped curves
// seen from one hemisphere inside a sector that does not wrap in
// longitude. They are not general polygon repair.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+.
package l4clusters
