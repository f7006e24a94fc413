package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/data-ngin/internal/stage"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func streamConfig(url string) StreamConfig {
	return StreamConfig{
		URL:           url,
		APIKey:        "db-test",
		Dataset:       "GLBX.MDP3",
		Schema:        "ohlcv-1m",
		Symbols:       []string{"ES.FUT"},
		SymbolRemap:   map[string]string{"ES": "MES"},
		RetryInterval: 10 * time.Millisecond,
		MaxRetries:    3,
		BufferSize:    16,
	}
}

// recordSleeps replaces the stream's sleep with one that records waits.
func recordSleeps(s *Stream) *[]time.Duration {
	var mu sync.Mutex
	waits := &[]time.Duration{}
	s.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*waits = append(*waits, d)
		mu.Unlock()
		return ctx.Err()
	}
	return waits
}

func TestStreamEmitsBars(t *testing.T) {
	subscribed := make(chan subscribeRequest, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		var req subscribeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subscribed <- req

		msgs := []string{
			`{"rtype":"system","msg":"Subscription request processed"}`,
			`{"rtype":"symbol_mapping","instrument_id":3403,"stype_in_symbol":"ES.FUT","stype_out_symbol":"ESH3"}`,
			`{"rtype":"ohlcv-1m","ts_event":"1672617600000000000","instrument_id":3403,"open":"3850250000000","high":"3851000000000","low":"3850000000000","close":"3850500000000","volume":"42"}`,
			`{"rtype":"error","err":"slow reader"}`,
			`{"rtype":"mbp-1","instrument_id":3403}`,
			`not json`,
			`{"rtype":"trade","ts_event":"1672617660000000000","instrument_id":3403,"price":"3851000000000","size":"3"}`,
		}
		for _, m := range msgs {
			conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	s := NewStream(streamConfig(wsURL(server)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case req := <-subscribed:
		if req.Action != "subscribe" || req.Dataset != "GLBX.MDP3" || len(req.Symbols) != 1 {
			t.Errorf("subscribe request = %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for subscribe")
	}

	var bars [2]struct {
		symbol, contract string
		open, close      float64
		volume           int64
	}
	for i := range bars {
		select {
		case b := <-s.Bars():
			bars[i].symbol, bars[i].contract = b.Symbol, b.Contract
			bars[i].open, bars[i].close, bars[i].volume = b.Open, b.Close, b.Volume
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for bar %d", i)
		}
	}

	if bars[0].symbol != "MES" || bars[0].contract != "ESH3" {
		t.Errorf("bar 0 symbol/contract = %q/%q, want MES/ESH3", bars[0].symbol, bars[0].contract)
	}
	if bars[0].open != 3850.25 || bars[0].volume != 42 {
		t.Errorf("bar 0 open/volume = %v/%d, want 3850.25/42", bars[0].open, bars[0].volume)
	}
	if bars[1].open != 3851 || bars[1].close != 3851 || bars[1].volume != 3 {
		t.Errorf("trade bar = %+v, want o=c=3851 v=3", bars[1])
	}
	if s.State() != StateStreaming {
		t.Errorf("State() = %v, want streaming", s.State())
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
	if _, ok := <-s.Bars(); ok {
		t.Error("Bars() should be closed after Run returns")
	}
}

func TestStreamRetriesExhausted(t *testing.T) {
	var dials atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var hooks atomic.Int32
	s := NewStream(streamConfig(wsURL(server)), nil, WithReconnectHook(func() { hooks.Add(1) }))
	waits := recordSleeps(s)

	err := s.Run(context.Background())
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("Run() error = %v, want ErrRetriesExhausted", err)
	}
	if !errors.Is(err, stage.ErrConnection) {
		t.Errorf("Run() error = %v, want ErrConnection", err)
	}

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, (*waits)[i], want[i])
		}
	}
	if dials.Load() != 4 {
		t.Errorf("dials = %d, want 4 (initial + 3 retries)", dials.Load())
	}
	if hooks.Load() != 3 || s.Reconnects() != 3 {
		t.Errorf("reconnects = %d/%d, want 3", hooks.Load(), s.Reconnects())
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
}

func TestStreamResetsRetriesAfterConnect(t *testing.T) {
	// Connections 1 and 3 succeed and drop immediately; all others are refused.
	var dials atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		if n != 1 && n != 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.ReadMessage() // subscribe
		conn.Close()
	}))
	defer server.Close()

	cfg := streamConfig(wsURL(server))
	cfg.MaxRetries = 2
	s := NewStream(cfg, nil)
	waits := recordSleeps(s)

	err := s.Run(context.Background())
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("Run() error = %v, want ErrRetriesExhausted", err)
	}

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, (*waits)[i], want[i])
		}
	}
	if dials.Load() != 5 {
		t.Errorf("dials = %d, want 5", dials.Load())
	}
}

func TestStreamCancelDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := streamConfig(wsURL(server))
	cfg.RetryInterval = time.Hour
	s := NewStream(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateStreaming:    "streaming",
		StateError:        "error",
		StateReconnecting: "reconnecting",
	}
	for st, want := range tests {
		if st.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", st, st.String(), want)
		}
	}
}

func TestDecodeLive(t *testing.T) {
	data, _ := json.Marshal(map[string]any{"rtype": "trade", "price": "1000000000", "size": 2})
	msg, err := decodeLive(data)
	if err != nil {
		t.Fatalf("decodeLive() error = %v", err)
	}
	if msg.Price.Price() != 1 || msg.Size != 2 {
		t.Errorf("decodeLive() = %+v", msg)
	}
}
