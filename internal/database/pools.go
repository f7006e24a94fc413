package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/data-ngin/internal/config"
)

// Idle ingest connections are recycled well before typical server-side idle limits.
const (
	healthCheckPeriod = 30 * time.Second
	maxConnIdleTime   = 5 * time.Minute
)

var errNoPool = errors.New("timescale pool not initialized")

// Pools holds the database connections a pipeline process writes through.
type Pools struct {
	// Timescale holds the raw and cleaned OHLCV hypertables.
	Timescale *pgxpool.Pool
}

// NewPools opens the TimescaleDB pool and verifies it with a ping.
func NewPools(ctx context.Context, cfg config.DatabaseConfig) (*Pools, error) {
	ts, err := Connect(ctx, cfg.DBConfig)
	if err != nil {
		return nil, fmt.Errorf("connect timescale: %w", err)
	}
	return &Pools{Timescale: ts}, nil
}

// poolConfig parses cfg into pool settings without dialing.
func poolConfig(cfg config.DBConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pc.MinConns = int32(cfg.MinConns)
	}
	pc.HealthCheckPeriod = healthCheckPeriod
	pc.MaxConnIdleTime = maxConnIdleTime
	return pc, nil
}

// Connect opens one pool for cfg. The pool is closed again if the first ping fails.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool for %s: %w", addr, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s/%s: %w", addr, cfg.Name, err)
	}
	return pool, nil
}

// Close releases the pool. Safe on a zero Pools.
func (p *Pools) Close() {
	if p.Timescale != nil {
		p.Timescale.Close()
	}
}

// Ping reports whether TimescaleDB is reachable. Used by the health check.
func (p *Pools) Ping(ctx context.Context) error {
	if p.Timescale == nil {
		return errNoPool
	}
	if err := p.Timescale.Ping(ctx); err != nil {
		return fmt.Errorf("ping timescale: %w", err)
	}
	return nil
}
