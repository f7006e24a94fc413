// Package inserter persists rows with insert-or-ignore semantics.
//
// Timescale writes to TimescaleDB through a connection checked out of a shared
// pgxpool.Pool; Memory keeps rows in process for dry runs and tests. Both
// treat a row whose (time, symbol) key already exists as a no-op.
package inserter
