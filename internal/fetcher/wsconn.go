package fetcher

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// wsConn is one live WebSocket connection. Messages is closed when the read
// loop exits; Err then reports why.
type wsConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	pingInterval time.Duration
	readTimeout  time.Duration

	messages chan []byte
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu     sync.Mutex
	err    error
	closed bool
}

func dialWS(ctx context.Context, cfg StreamConfig, logger *slog.Logger) (*wsConn, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	if cfg.APIKey != "" {
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cfg.APIKey+":")))
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, err
	}

	c := &wsConn{
		conn:         conn,
		logger:       logger,
		pingInterval: cfg.PingInterval,
		readTimeout:  cfg.ReadTimeout,
		messages:     make(chan []byte, cfg.BufferSize),
		done:         make(chan struct{}),
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.extendDeadline()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})

	c.extendDeadline()
	go c.readLoop()
	if c.pingInterval > 0 {
		go c.heartbeatLoop()
	}

	logger.Debug("websocket connected", "url", cfg.URL)
	return c, nil
}

func (c *wsConn) extendDeadline() {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}

// Send writes a JSON message.
func (c *wsConn) Send(v any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

// Messages returns raw messages in arrival order.
func (c *wsConn) Messages() <-chan []byte {
	return c.messages
}

// Err returns the error that ended the read loop.
func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close gracefully closes the connection.
func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)

	c.writeMu.Lock()
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *wsConn) readLoop() {
	defer close(c.messages)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.closed {
				c.err = ErrAlreadyClosed
			} else {
				c.err = err
			}
			c.mu.Unlock()
			return
		}
		c.extendDeadline()

		select {
		case c.messages <- data:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) heartbeatLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}
