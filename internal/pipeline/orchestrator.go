package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/data-ngin/internal/config"
	"github.com/rickgao/data-ngin/internal/metrics"
	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
	"github.com/rickgao/data-ngin/internal/window"
)

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Start       time.Time // Date window start
	End         time.Time // Date window end
	Instruments int
	Succeeded   []string
	Failed      []string
	Duration    time.Duration
}

// Orchestrator drives the four stages over the catalog.
type Orchestrator struct {
	cfg    *config.Config
	stages *stage.Set
	latest LatestSource
	sink   *metrics.Sink
	logger *slog.Logger

	now func() time.Time
}

// New creates an orchestrator. latest may be nil when a start date is
// always configured.
func New(cfg *config.Config, stages *stage.Set, latest LatestSource, sink *metrics.Sink, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = metrics.NewSink(cfg.PipelineName)
	}
	return &Orchestrator{
		cfg:    cfg,
		stages: stages,
		latest: latest,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one pass over the catalog. The returned error is non-nil only
// when the run could not start: a catalog or date-window failure, or a
// canceled context.
func (o *Orchestrator) Run(ctx context.Context) (sum Summary, err error) {
	runStart := o.now()
	sum.RunID = uuid.NewString()
	logger := o.logger.With("run_id", sum.RunID, "pipeline", o.cfg.PipelineName)

	o.sink.RunStarted()
	defer func() {
		sum.Duration = o.now().Sub(runStart)
		o.sink.ObserveStage(string(stage.NameTotal), sum.Duration)
	}()

	loadStart := o.now()
	instruments, err := o.stages.Loader.Load(ctx)
	o.sink.ObserveStage(string(stage.NameLoader), o.now().Sub(loadStart))
	if err != nil {
		o.sink.StageError(string(stage.NameLoader), stage.Kind(err))
		return sum, fmt.Errorf("load catalog: %w", err)
	}
	sum.Instruments = len(instruments)

	sum.Start, sum.End, err = dateWindow(ctx, o.cfg, o.latest, runStart)
	if err != nil {
		return sum, err
	}

	logger.Info("run started",
		"instruments", len(instruments),
		"start", sum.Start.Format(time.RFC3339),
		"end", sum.End.Format(time.RFC3339),
		"concurrency", o.cfg.Pipeline.Concurrency,
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.Pipeline.Concurrency > 0 {
		g.SetLimit(o.cfg.Pipeline.Concurrency)
	}

	for _, inst := range instruments {
		g.Go(func() error {
			err := o.processInstrument(gctx, inst, sum.Start, sum.End, logger)
			mu.Lock()
			if err != nil {
				sum.Failed = append(sum.Failed, inst.Symbol)
			} else {
				sum.Succeeded = append(sum.Succeeded, inst.Symbol)
			}
			mu.Unlock()
			// Instrument failures are isolated; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(sum.Succeeded)
	sort.Strings(sum.Failed)

	if err := ctx.Err(); err != nil {
		logger.Warn("run canceled", "succeeded", len(sum.Succeeded), "failed", len(sum.Failed))
		return sum, err
	}

	o.sink.RunSucceeded(o.now())
	logger.Info("run complete",
		"instruments", sum.Instruments,
		"succeeded", len(sum.Succeeded),
		"failed", len(sum.Failed),
		"duration", o.now().Sub(runStart),
	)
	return sum, nil
}

// processInstrument runs all stages for one instrument. The error is returned
// only for bookkeeping; it has already been logged and counted.
func (o *Orchestrator) processInstrument(ctx context.Context, inst model.Instrument, start, end time.Time, logger *slog.Logger) error {
	if d := o.cfg.Pipeline.InstrumentTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	logger = logger.With("symbol", inst.Symbol, "type", inst.Type)

	fail := func(name stage.Name, err error) error {
		o.sink.StageError(string(name), stage.Kind(err))
		logger.Error("instrument failed", "stage", name, "error", err)
		return err
	}

	var raw []model.Record
	err := o.timed(stage.NameFetcher, func() error {
		var ferr error
		raw, ferr = o.fetch(ctx, inst, start, end, logger)
		return ferr
	})
	if err != nil {
		return fail(stage.NameFetcher, err)
	}
	if len(raw) == 0 {
		logger.Info("no rows fetched, skipping")
		return nil
	}
	o.sink.RecordsProcessed(metrics.DatasetRaw, len(raw))

	ins := o.stages.NewInserter()
	if err := ins.Connect(ctx); err != nil {
		return fail(stage.NameInserter, err)
	}
	defer func() {
		if err := ins.Close(); err != nil {
			logger.Warn("close inserter", "error", err)
		}
	}()

	db := o.cfg.Database
	var rawInserted int
	err = o.timed(stage.NameInserter, func() error {
		var ierr error
		rawInserted, ierr = ins.InsertRows(ctx, raw, db.TargetSchema, db.RawTable)
		return ierr
	})
	if err != nil {
		return fail(stage.NameInserter, err)
	}

	var bars []model.Bar
	err = o.timed(stage.NameCleaner, func() error {
		var cerr error
		bars, cerr = o.stages.Cleaner.Clean(ctx, raw)
		return cerr
	})
	if err != nil {
		return fail(stage.NameCleaner, err)
	}

	var inserted int
	err = o.timed(stage.NameInserter, func() error {
		var ierr error
		inserted, ierr = ins.InsertRows(ctx, model.BarsToRecords(bars), db.TargetSchema, db.Table)
		return ierr
	})
	if err != nil {
		return fail(stage.NameInserter, err)
	}

	// Recorded only once the clean rows are persisted.
	o.sink.RecordsProcessed(metrics.DatasetCleaned, len(bars))
	if want := o.cfg.Pipeline.ExpectedRowsPerAsset; want > 0 {
		o.sink.Completeness(inst.Symbol, float64(len(bars))/float64(want))
	}

	logger.Info("instrument complete",
		"fetched", len(raw),
		"raw_inserted", rawInserted,
		"cleaned", len(bars),
		"inserted", inserted,
	)
	return nil
}

// fetch retrieves [start, end), split into windows when batch downloading
// is enabled.
func (o *Orchestrator) fetch(ctx context.Context, inst model.Instrument, start, end time.Time, logger *slog.Logger) ([]model.Record, error) {
	if !start.Before(end) {
		logger.Debug("window empty, already current", "start", start, "end", end)
		return nil, nil
	}
	bd := o.cfg.BatchDownloading
	if !bd.Enabled {
		return o.stages.Fetcher.Fetch(ctx, inst.Symbol, inst.Type, start, end)
	}

	unit, err := window.ParseUnit(bd.Unit)
	if err != nil {
		return nil, fmt.Errorf("batch_downloading.unit: %w: %w", stage.ErrConfiguration, err)
	}
	windows, err := window.Plan(start, end, unit, bd.MaxUnits)
	if err != nil {
		return nil, fmt.Errorf("plan windows: %w: %w", stage.ErrConfiguration, err)
	}

	var out []model.Record
	for i, w := range windows {
		rows, err := o.stages.Fetcher.Fetch(ctx, inst.Symbol, inst.Type, w.Start, w.End)
		if err != nil {
			return nil, fmt.Errorf("window %d/%d %s: %w", i+1, len(windows), w, err)
		}
		logger.Debug("window fetched", "window", w.String(), "rows", len(rows))
		out = append(out, rows...)
	}
	return out, nil
}

func (o *Orchestrator) timed(name stage.Name, fn func() error) error {
	start := o.now()
	err := fn()
	o.sink.ObserveStage(string(name), o.now().Sub(start))
	return err
}
