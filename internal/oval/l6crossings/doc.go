// Package l6crossings owns Layer 6 (Crossings) of the oval data model.
//
// Responsibilities: detecting when satellite ground tracks enter or leave
// the oval interior between consecutive epochs, grouping the raw events
// into flybys, and cleaning each flyby's event sequence.
// Key types: Event, Crossings.
//
// Dependency rule: L6 may depend on L1-L5.
// No SQL/database code is allowed in this package.
package l6crossings
