// Package database manages the TimescaleDB connection pool and the read-side
// queries the pipeline needs: latest persisted timestamp and staleness.
//
// All inserts go through internal/inserter; this package never writes rows.
package database
