// Package cleaner turns raw provider rows into sorted, typed, back-adjusted
// OHLCV bars.
//
// Clean runs three steps in order:
//
//	ValidateFields    rename timestamp aliases, require OHLCV columns
//	HandleMissingData apply the enabled null-handling strategies
//	TransformData     coerce types, sort by time, run data-quality checks, back-adjust
//
// Data-quality findings (duplicate timestamps, gaps) are logged as warnings and
// never fail a clean.
package cleaner
