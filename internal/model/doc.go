// Package model defines shared data types used across the ingestion pipeline.
//
// Conventions:
//   - Timestamps: time.Time, always UTC once a row has been cleaned
//   - Prices: float64 in quote currency (provider fixed-point is converted at fetch time)
//   - Volume: int64 contracts/shares
//   - Raw provider rows are schema-less Records; cleaned rows are Bars
package model
