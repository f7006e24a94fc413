package writer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

// WriterConfig holds batching settings.
type WriterConfig struct {
	Schema string
	Table  string

	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// flushTimeout bounds a single loop flush once it is detached from the
// writer's lifecycle.
const flushTimeout = 30 * time.Second

// DefaultWriterConfig returns the defaults used by the streamer.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Schema:        "public",
		Table:         "ohlcv",
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// BarWriter consumes bars from a channel and writes them in batches.
type BarWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input    <-chan model.Bar
	inserter stage.Inserter

	// Batching
	batch       []model.Record
	batchMu     sync.Mutex
	flushMu     sync.Mutex // One flush at a time: the inserter holds a single connection
	flushTicker *time.Ticker

	// Lifecycle. flushCtx outlives ctx so loop flushes finish after Stop.
	ctx      context.Context
	cancel   context.CancelFunc
	flushCtx context.Context
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewBarWriter creates a writer. The inserter is connected by Start and
// closed by Stop.
func NewBarWriter(cfg WriterConfig, input <-chan model.Bar, ins stage.Inserter, logger *slog.Logger) *BarWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	return &BarWriter{
		cfg:      cfg,
		input:    input,
		inserter: ins,
		logger:   logger,
		batch:    make([]model.Record, 0, cfg.BatchSize),
	}
}

// Start connects the inserter and begins consuming bars.
func (w *BarWriter) Start(ctx context.Context) error {
	if err := w.inserter.Connect(ctx); err != nil {
		return err
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushCtx = context.WithoutCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("bar writer started",
		"table", w.cfg.Schema+"."+w.cfg.Table,
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the loops, flushes what is left, and closes the inserter.
// The final flush runs under ctx.
func (w *BarWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping bar writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("bar writer stop timed out")
	}

	w.drainBuffered()
	w.flush(ctx)

	err := w.inserter.Close()
	stats := w.Stats()
	w.logger.Info("bar writer stopped",
		"inserts", stats.Inserts,
		"conflicts", stats.Conflicts,
		"errors", stats.Errors,
		"flushes", stats.Flushes,
	)
	return err
}

// Stats returns current metrics.
func (w *BarWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop drains the input until it closes or the writer stops.
func (w *BarWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case bar, ok := <-w.input:
			if !ok {
				w.loopFlush()
				return
			}
			w.handleBar(bar)
		}
	}
}

func (w *BarWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.loopFlush()
		}
	}
}

// drainBuffered moves bars already queued on the input into the batch
// without blocking.
func (w *BarWriter) drainBuffered() {
	for {
		select {
		case bar, ok := <-w.input:
			if !ok {
				return
			}
			w.batchMu.Lock()
			w.batch = append(w.batch, bar.Record())
			w.batchMu.Unlock()
		default:
			return
		}
	}
}

func (w *BarWriter) handleBar(bar model.Bar) {
	w.batchMu.Lock()
	w.batch = append(w.batch, bar.Record())
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.loopFlush()
	}
}

// loopFlush flushes from the consume and flush loops. It is not tied to
// w.ctx, so a shutdown does not abort an insert already in flight.
func (w *BarWriter) loopFlush() {
	ctx, cancel := context.WithTimeout(w.flushCtx, flushTimeout)
	defer cancel()
	w.flush(ctx)
}

// flush writes the current batch. A batch that fails because ctx ended is
// put back for the next flush; any other failure drops it.
func (w *BarWriter) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]model.Record, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	inserted, err := w.inserter.InsertRows(ctx, batch, w.cfg.Schema, w.cfg.Table)
	if err != nil {
		requeue := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		w.logger.Error("batch insert failed", "error", err, "count", len(batch), "requeued", requeue)
		w.batchMu.Lock()
		w.metrics.Errors++
		if requeue {
			w.batch = append(batch, w.batch...)
		}
		w.batchMu.Unlock()
		return
	}
	conflicts := len(batch) - inserted

	w.batchMu.Lock()
	w.metrics.Inserts += int64(inserted)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed bars",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}
