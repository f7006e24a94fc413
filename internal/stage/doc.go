// Package stage defines the four pipeline stage contracts (loader, fetcher,
// cleaner, inserter) and the error taxonomy shared by every implementation.
//
// Stage implementations wrap one of the sentinel errors so the orchestrator
// can label failures without knowing the concrete stage type:
//
//	return fmt.Errorf("insert %s.%s: %w", schema, table, stage.ErrInsertion)
package stage
