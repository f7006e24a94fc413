// Package writer batches live bars into the database.
//
// A BarWriter drains a bar channel, accumulates rows, and flushes them
// through a stage.Inserter when the batch is full or the flush interval
// elapses. Inserts are upserts that skip existing (time, symbol) keys, so a
// replayed bar after a reconnect counts as a conflict rather than an error.
package writer
