// Package pipeline runs one day of oval processing.
//
// This package is the composition root: it imports from the layer packages
// (l1samples through l6crossings) and hands results to sinks, but none of
// those packages import pipeline/.
//
// A run has two phases. Phase 1 computes a region per epoch in parallel,
// each epoch writing only its own slot. Phase 2 starts after the barrier
// and runs crossing detection and cleanup over the finished region table.
package pipeline
