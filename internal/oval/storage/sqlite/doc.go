// Package sqlite persists oval pipeline runs.
//
// All database read/write operations for runs, per-epoch regions and
// crossing events belong here rather than in the layer packages (L1-L6).
// The schema is embedded and applied with golang-migrate on Open.
package sqlite
