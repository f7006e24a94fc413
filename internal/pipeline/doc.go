// Package pipeline runs one ingestion pass over an instrument catalog.
//
// Each instrument is processed independently and concurrently, bounded by
// pipeline.concurrency:
//
//	fetch (optionally windowed) -> insert raw -> clean -> insert clean
//
// A failure in one instrument is logged and counted against its stage; it
// never cancels other instruments. Only catalog loading and date-window
// resolution can fail a run.
package pipeline
