// Package l1samples owns Layer 1 (Samples) of the oval data model.
//
// Responsibilities: decoding a day bundle of per-epoch ROTI samples and
// satellite ground tracks, validating coordinates, and gating samples to
// the geographic sector of interest. This layer produces the sample
// arrays consumed by L2 (Windows).
//
// Dependency rule: L1 has no inward dependencies on higher layers.
package l1samples
