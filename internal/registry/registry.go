// Package registry maps configured stage identifiers to implementations.
//
// Stages are resolved once at startup. An identifier is the binding name, or
// "module.name" when a module is given; built-ins are registered under both
// forms, e.g. "csv" and "loader.csv".
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/data-ngin/internal/config"
	"github.com/rickgao/data-ngin/internal/inserter"
	"github.com/rickgao/data-ngin/internal/stage"
)

// Deps are shared resources handed to factories.
type Deps struct {
	Pool   *pgxpool.Pool         // nil in dry runs
	Memory *inserter.MemoryStore // Backing store for the memory inserter
	Logger *slog.Logger
}

// Factory signatures per stage.
type (
	LoaderFactory   func(cfg *config.Config, deps Deps) (stage.Loader, error)
	FetcherFactory  func(cfg *config.Config, deps Deps) (stage.Fetcher, error)
	CleanerFactory  func(cfg *config.Config, deps Deps) (stage.Cleaner, error)
	InserterFactory func(cfg *config.Config, deps Deps) (stage.NewInserter, error)
)

// Registry holds factories by identifier.
type Registry struct {
	mu        sync.RWMutex
	loaders   map[string]LoaderFactory
	fetchers  map[string]FetcherFactory
	cleaners  map[string]CleanerFactory
	inserters map[string]InserterFactory
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		loaders:   make(map[string]LoaderFactory),
		fetchers:  make(map[string]FetcherFactory),
		cleaners:  make(map[string]CleanerFactory),
		inserters: make(map[string]InserterFactory),
	}
}

// RegisterLoader adds a loader factory under each id.
func (r *Registry) RegisterLoader(f LoaderFactory, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.loaders[id] = f
	}
}

// RegisterFetcher adds a fetcher factory under each id.
func (r *Registry) RegisterFetcher(f FetcherFactory, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.fetchers[id] = f
	}
}

// RegisterCleaner adds a cleaner factory under each id.
func (r *Registry) RegisterCleaner(f CleanerFactory, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.cleaners[id] = f
	}
}

// RegisterInserter adds an inserter factory under each id.
func (r *Registry) RegisterInserter(f InserterFactory, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.inserters[id] = f
	}
}

// Resolve builds all four stages from cfg. Any unknown identifier or factory
// failure is wrapped in stage.ErrConfiguration.
func (r *Registry) Resolve(cfg *config.Config, deps Deps) (*stage.Set, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var set stage.Set

	lf, err := lookup(r.loaders, stage.NameLoader, cfg.Stages.Loader)
	if err != nil {
		return nil, err
	}
	if set.Loader, err = lf(cfg, deps); err != nil {
		return nil, factoryError(stage.NameLoader, cfg.Stages.Loader, err)
	}

	ff, err := lookup(r.fetchers, stage.NameFetcher, cfg.Stages.Fetcher)
	if err != nil {
		return nil, err
	}
	if set.Fetcher, err = ff(cfg, deps); err != nil {
		return nil, factoryError(stage.NameFetcher, cfg.Stages.Fetcher, err)
	}

	cf, err := lookup(r.cleaners, stage.NameCleaner, cfg.Stages.Cleaner)
	if err != nil {
		return nil, err
	}
	if set.Cleaner, err = cf(cfg, deps); err != nil {
		return nil, factoryError(stage.NameCleaner, cfg.Stages.Cleaner, err)
	}

	inf, err := lookup(r.inserters, stage.NameInserter, cfg.Stages.Inserter)
	if err != nil {
		return nil, err
	}
	if set.NewInserter, err = inf(cfg, deps); err != nil {
		return nil, factoryError(stage.NameInserter, cfg.Stages.Inserter, err)
	}

	deps.Logger.Info("stages resolved",
		"loader", cfg.Stages.Loader.ID(),
		"fetcher", cfg.Stages.Fetcher.ID(),
		"cleaner", cfg.Stages.Cleaner.ID(),
		"inserter", cfg.Stages.Inserter.ID(),
	)
	return &set, nil
}

func lookup[F any](m map[string]F, name stage.Name, b config.Binding) (F, error) {
	var zero F
	id := b.ID()
	if id == "" {
		return zero, fmt.Errorf("no %s configured: %w", name, stage.ErrConfiguration)
	}
	f, ok := m[id]
	if !ok {
		return zero, fmt.Errorf("unknown %s %q (registered: %s): %w", name, id, strings.Join(keys(m), ", "), stage.ErrConfiguration)
	}
	return f, nil
}

func factoryError(name stage.Name, b config.Binding, err error) error {
	return fmt.Errorf("build %s %q: %w: %w", name, b.ID(), stage.ErrConfiguration, err)
}

func keys[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
