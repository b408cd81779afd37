// Package l2windows owns Layer 2 (Windows) of the oval data model.
//
// Responsibilities: sliding-window aggregation of scattered ROTI samples
// into a regular lattice of median-valued cells.
// Key types: Cell, WindowSize, Step.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2windows
