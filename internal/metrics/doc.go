// Package metrics provides Prometheus metrics for monitoring pipeline runs.
//
// Key metrics:
//   - Pipeline runs and last successful run time
//   - Per-stage execution time and error counts by error kind
//   - Records processed per dataset (raw, cleaned)
//   - Per-symbol completeness against an expected row count
//   - Streaming reconnect attempts
//
// A Sink owns its registry so tests and multiple pipelines never collide on
// the global default registerer.
package metrics
