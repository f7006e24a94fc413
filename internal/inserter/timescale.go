package inserter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

// Timescale inserts rows into TimescaleDB. One instance belongs to a single
// instrument task; it is not safe for concurrent use.
type Timescale struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	conn *pgxpool.Conn
}

var _ stage.Inserter = (*Timescale)(nil)

// NewTimescale creates an inserter drawing from pool.
func NewTimescale(pool *pgxpool.Pool, logger *slog.Logger) *Timescale {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timescale{pool: pool, logger: logger}
}

// Connect checks out and verifies a pooled connection.
func (t *Timescale) Connect(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}
	if t.pool == nil {
		return fmt.Errorf("no database pool: %w", stage.ErrConnection)
	}

	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w: %w", stage.ErrConnection, err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Release()
		return fmt.Errorf("ping connection: %w: %w", stage.ErrConnection, err)
	}

	t.conn = conn
	return nil
}

// InsertRows inserts rows into schema.table in one transaction and returns
// the number of rows actually inserted. Columns come from the first row.
// Conflicting rows are skipped. Any failure rolls the whole batch back.
func (t *Timescale) InsertRows(ctx context.Context, rows []model.Record, schema, table string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if t.conn == nil {
		return 0, fmt.Errorf("insert into %s.%s: not connected: %w", schema, table, stage.ErrConnection)
	}

	if err := t.checkTarget(ctx, schema, table); err != nil {
		return 0, err
	}

	cols := rows[0].Columns()
	sql := buildInsert(schema, table, cols)

	tx, err := t.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w: %w", stage.ErrInsertion, err)
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = r[c]
		}
		batch.Queue(sql, args...)
	}

	br := tx.SendBatch(ctx, batch)
	var inserted, conflicts int
	for i := range rows {
		ct, err := br.Exec()
		if err != nil {
			br.Close()
			tx.Rollback(ctx)
			return 0, t.insertError(schema, table, i, err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		} else {
			inserted++
		}
	}
	if err := br.Close(); err != nil {
		tx.Rollback(ctx)
		return 0, t.insertError(schema, table, -1, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s.%s: %w: %w", schema, table, stage.ErrInsertion, err)
	}

	t.logger.Debug("inserted rows",
		"schema", schema,
		"table", table,
		"inserted", inserted,
		"conflicts", conflicts,
	)
	return inserted, nil
}

// Close releases the connection back to the pool. Safe to call repeatedly.
func (t *Timescale) Close() error {
	if t.conn != nil {
		t.conn.Release()
		t.conn = nil
	}
	return nil
}

// checkTarget verifies that schema and table exist.
func (t *Timescale) checkTarget(ctx context.Context, schema, table string) error {
	var exists bool
	err := t.conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		schema,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check schema %q: %w: %w", schema, stage.ErrInsertion, err)
	}
	if !exists {
		return fmt.Errorf("schema %q does not exist: %w", schema, stage.ErrInsertion)
	}

	err = t.conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)",
		schema, table,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check table %s.%s: %w: %w", schema, table, stage.ErrInsertion, err)
	}
	if !exists {
		return fmt.Errorf("table %s.%s does not exist: %w", schema, table, stage.ErrInsertion)
	}
	return nil
}

func (t *Timescale) insertError(schema, table string, row int, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		t.logger.Error("insert failed",
			"schema", schema,
			"table", table,
			"row", row,
			"code", pgErr.Code,
			"detail", pgErr.Detail,
			"constraint", pgErr.ConstraintName,
		)
	}
	return fmt.Errorf("insert into %s.%s: %w: %w", schema, table, stage.ErrInsertion, err)
}

// buildInsert returns an insert-or-ignore statement for cols.
func buildInsert(schema, table string, cols []string) string {
	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		pgx.Identifier{schema, table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(params, ", "),
	)
}
