package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/data-ngin/internal/model"
	"github.com/rickgao/data-ngin/internal/stage"
)

// ErrRetriesExhausted is returned by Stream.Run after MaxRetries consecutive
// failed reconnects. It is always joined with stage.ErrConnection.
var ErrRetriesExhausted = errors.New("reconnect retries exhausted")

// State is a Stream lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateError
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StreamConfig configures a live stream.
type StreamConfig struct {
	URL         string
	APIKey      string
	Dataset     string
	Schema      string
	Symbols     []string
	SymbolRemap map[string]string

	RetryInterval time.Duration // Wait before reconnect n is RetryInterval * n
	MaxRetries    int           // Consecutive failed reconnects before giving up
	PingInterval  time.Duration
	ReadTimeout   time.Duration
	BufferSize    int
}

// Stream consumes a live feed and emits bars, reconnecting with linear
// backoff when the connection drops.
type Stream struct {
	cfg    StreamConfig
	logger *slog.Logger

	bars        chan model.Bar
	state       atomic.Int32
	reconnects  atomic.Int64
	onReconnect func()

	// Injected for tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	conn     *wsConn
	mappings map[int64]symbolMapping
}

type symbolMapping struct {
	in  string // Subscribed symbol, e.g., ES.FUT
	out string // Concrete contract, e.g., ESH4
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithReconnectHook registers fn to run before every reconnect attempt.
func WithReconnectHook(fn func()) StreamOption {
	return func(s *Stream) {
		s.onReconnect = fn
	}
}

// NewStream creates a live stream.
func NewStream(cfg StreamConfig, logger *slog.Logger, opts ...StreamOption) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stream{
		cfg:      cfg,
		logger:   logger,
		bars:     make(chan model.Bar, cfg.BufferSize),
		sleep:    sleepContext,
		mappings: make(map[int64]symbolMapping),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bars returns the output channel. It is closed when Run returns.
func (s *Stream) Bars() <-chan model.Bar {
	return s.bars
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Reconnects returns the number of reconnect attempts made.
func (s *Stream) Reconnects() int64 {
	return s.reconnects.Load()
}

func (s *Stream) setState(st State) {
	if prev := State(s.state.Swap(int32(st))); prev != st {
		s.logger.Debug("stream state", "from", prev, "to", st)
	}
}

// Run connects and streams until ctx is canceled or the reconnect budget is
// exhausted. A successful connect resets the budget.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.bars)
	defer s.setState(StateDisconnected)

	s.setState(StateConnecting)
	attempt := 0
	for {
		err := s.connect(ctx)
		if err == nil {
			attempt = 0
			s.setState(StateStreaming)
			err = s.consume(ctx)
		}

		s.closeConn()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.setState(StateError)
		s.logger.Warn("stream connection failed",
			"error", err,
			"attempt", attempt,
			"max_retries", s.cfg.MaxRetries,
		)

		if attempt >= s.cfg.MaxRetries {
			s.logger.Error("stream giving up", "retries", attempt, "error", err)
			return fmt.Errorf("%w after %d attempts: %w: %v", ErrRetriesExhausted, attempt, stage.ErrConnection, err)
		}

		attempt++
		s.setState(StateReconnecting)
		s.reconnects.Add(1)
		if s.onReconnect != nil {
			s.onReconnect()
		}

		wait := s.cfg.RetryInterval * time.Duration(attempt)
		s.logger.Info("reconnecting", "attempt", attempt, "wait", wait)
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Stream) connect(ctx context.Context) error {
	conn, err := dialWS(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}

	req := subscribeRequest{
		Action:  "subscribe",
		Dataset: s.cfg.Dataset,
		Schema:  s.cfg.Schema,
		StypeIn: stypeParent,
		Symbols: s.cfg.Symbols,
	}
	if err := conn.Send(req); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("stream connected", "url", s.cfg.URL, "symbols", s.cfg.Symbols)
	return nil
}

// closeConn closes and drops the live connection.
func (s *Stream) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (s *Stream) consume(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-conn.Messages():
			if !ok {
				if err := conn.Err(); err != nil {
					return err
				}
				return ErrNotConnected
			}
			bar, ok := s.handle(data)
			if !ok {
				continue
			}
			select {
			case s.bars <- bar:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// handle classifies one message. ok is false when it produces no bar.
func (s *Stream) handle(data []byte) (model.Bar, bool) {
	msg, err := decodeLive(data)
	if err != nil {
		s.logger.Warn("dropping malformed message", "error", err)
		return model.Bar{}, false
	}

	switch {
	case strings.HasPrefix(msg.RType, rtypeOHLCVPrefix):
		sym, contract := s.resolve(msg)
		return model.Bar{
			Time:     msg.TsEvent.Time(),
			Symbol:   sym,
			Contract: contract,
			Open:     msg.Open.Price(),
			High:     msg.High.Price(),
			Low:      msg.Low.Price(),
			Close:    msg.Close.Price(),
			Volume:   int64(msg.Volume),
		}, true

	case msg.RType == rtypeTrade:
		sym, contract := s.resolve(msg)
		px := msg.Price.Price()
		return model.Bar{
			Time:     msg.TsEvent.Time(),
			Symbol:   sym,
			Contract: contract,
			Open:     px,
			High:     px,
			Low:      px,
			Close:    px,
			Volume:   int64(msg.Size),
		}, true

	case msg.RType == rtypeSymbolMapping:
		s.mu.Lock()
		s.mappings[msg.InstrumentID] = symbolMapping{in: msg.StypeInSymbol, out: msg.StypeOutSymbol}
		s.mu.Unlock()
		s.logger.Info("symbol mapping",
			"instrument_id", msg.InstrumentID,
			"symbol", msg.StypeInSymbol,
			"contract", msg.StypeOutSymbol,
		)

	case msg.RType == rtypeError:
		s.logger.Error("provider error", "error", msg.Err)

	case msg.RType == rtypeSystem:
		s.logger.Debug("system message", "msg", msg.Msg)

	default:
		s.logger.Debug("ignoring message", "rtype", msg.RType)
	}
	return model.Bar{}, false
}

// resolve returns the stored symbol and contract for a data message.
func (s *Stream) resolve(msg liveMessage) (string, string) {
	s.mu.Lock()
	m, ok := s.mappings[msg.InstrumentID]
	s.mu.Unlock()

	sym := msg.Symbol
	contract := ""
	if ok {
		sym, contract = m.in, m.out
	}
	if sym == "" {
		sym = fmt.Sprint(msg.InstrumentID)
	}

	// Parent symbology: ES.FUT -> ES
	root := sym
	if i := strings.IndexByte(root, '.'); i > 0 {
		root = root[:i]
	}
	if mapped, ok := s.cfg.SymbolRemap[root]; ok {
		root = mapped
	}
	return root, contract
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
