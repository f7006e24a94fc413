package stage

import (
	"context"
	"time"

	"github.com/rickgao/data-ngin/internal/model"
)

// Name identifies a stage in logs and metric labels.
type Name string

const (
	NameLoader   Name = "loader"
	NameFetcher  Name = "fetcher"
	NameCleaner  Name = "cleaner"
	NameInserter Name = "inserter"
	NameTotal    Name = "total"
)

// Loader produces the instrument catalog for a run.
type Loader interface {
	Load(ctx context.Context) ([]model.Instrument, error)
}

// Fetcher retrieves raw rows for one instrument over [start, end).
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, typ model.InstrumentType, start, end time.Time) ([]model.Record, error)
}

// Cleaner validates and normalizes raw rows into sorted bars.
type Cleaner interface {
	Clean(ctx context.Context, rows []model.Record) ([]model.Bar, error)
}

// Inserter persists rows. One instance is owned by a single instrument task.
type Inserter interface {
	Connect(ctx context.Context) error
	InsertRows(ctx context.Context, rows []model.Record, schema, table string) (int, error)
	Close() error
}

// NewInserter builds a fresh inserter for one instrument task.
type NewInserter func() Inserter

// Set is the resolved stage composition for a run.
type Set struct {
	Loader      Loader
	Fetcher     Fetcher
	Cleaner     Cleaner
	NewInserter NewInserter
}
