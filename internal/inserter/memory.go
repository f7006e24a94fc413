package inserter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

type rowKey struct {
	time   int64
	symbol string
}

// MemoryStore holds rows in process, keyed by (schema, table, time, symbol).
// It is safe for concurrent use; each task gets its own Memory inserter.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[rowKey]model.Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[rowKey]model.Record)}
}

// NewInserter returns an inserter writing to the store.
func (s *MemoryStore) NewInserter() stage.Inserter {
	return &Memory{store: s}
}

// Rows returns a copy of schema.table ordered by time, then symbol.
func (s *MemoryStore) Rows(schema, table string) []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.tables[tableName(schema, table)]
	keys := make([]rowKey, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].time != keys[j].time {
			return keys[i].time < keys[j].time
		}
		return keys[i].symbol < keys[j].symbol
	})

	out := make([]model.Record, len(keys))
	for i, k := range keys {
		out[i] = t[k].Clone()
	}
	return out
}

// LatestTime returns the newest row time in schema.table.
func (s *MemoryStore) LatestTime(_ context.Context, schema, table string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	found := false
	for k := range s.tables[tableName(schema, table)] {
		if !found || k.time > latest {
			latest = k.time
			found = true
		}
	}
	if !found {
		return time.Time{}, false, nil
	}
	return time.Unix(0, latest).UTC(), true, nil
}

func (s *MemoryStore) insert(rows []model.Record, schema, table string) (int, error) {
	keys := make([]rowKey, len(rows))
	for i, r := range rows {
		k, err := keyOf(r)
		if err != nil {
			return 0, fmt.Errorf("insert into %s.%s row %d: %v: %w", schema, table, i, err, stage.ErrInsertion)
		}
		keys[i] = k
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := tableName(schema, table)
	t, ok := s.tables[name]
	if !ok {
		t = make(map[rowKey]model.Record)
		s.tables[name] = t
	}

	inserted := 0
	for i, k := range keys {
		if _, exists := t[k]; exists {
			continue
		}
		t[k] = rows[i].Clone()
		inserted++
	}
	return inserted, nil
}

func tableName(schema, table string) string {
	return schema + "." + table
}

// keyOf extracts the primary key. Raw rows carry ts_event instead of time.
func keyOf(r model.Record) (rowKey, error) {
	v, ok := r[model.ColTime]
	if !ok {
		v = r[model.ColEventTimestamp]
	}
	ts, ok := v.(time.Time)
	if !ok {
		return rowKey{}, fmt.Errorf("time key is %T, want time.Time", v)
	}
	sym, ok := r[model.ColSymbol].(string)
	if !ok {
		return rowKey{}, fmt.Errorf("symbol key is %T, want string", r[model.ColSymbol])
	}
	return rowKey{time: ts.UnixNano(), symbol: sym}, nil
}

// Memory is an inserter backed by a MemoryStore.
type Memory struct {
	store     *MemoryStore
	connected bool
}

var _ stage.Inserter = (*Memory)(nil)

// Connect marks the inserter usable.
func (m *Memory) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("connect: %w: %w", stage.ErrConnection, err)
	}
	m.connected = true
	return nil
}

// InsertRows stores rows not already present and returns how many were new.
func (m *Memory) InsertRows(ctx context.Context, rows []model.Record, schema, table string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if !m.connected {
		return 0, fmt.Errorf("insert into %s.%s: not connected: %w", schema, table, stage.ErrConnection)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.store.insert(rows, schema, table)
}

// Close is idempotent.
func (m *Memory) Close() error {
	m.connected = false
	return nil
}
