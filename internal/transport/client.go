package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/phaseline/lightcycle/pkg/streaming"
)

const (
	sendChSize   = 256
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
)

// ErrClosed is returned by Send and Join after Close.
var ErrClosed = errors.New("connection closed")

// Handler receives every message from the server except welcomes.
type Handler func(streaming.Envelope) error

// Client is a reconnecting connection to a match server with a single
// write goroutine. It implements match.Sender.
type Client struct {
	mu      sync.Mutex
	conn    *ws.Conn
	stop    chan struct{} // closed when conn is replaced
	sendCh  chan []byte
	welcome chan streaming.WelcomePayload
	done    chan struct{} // closed on shutdown
	closed  bool
	handler Handler

	wsURL   string
	codec   streaming.Codec
	frame   int
	backoff time.Duration

	// Cached join message for reconnect replay.
	cachedJoin []byte

	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithBackoff sets the first reconnect delay.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) { c.backoff = d }
}

// Dial connects to the server and starts the read and write loops.
func Dial(ctx context.Context, rawURL string, codec streaming.Codec, opts ...ClientOption) (*Client, error) {
	c := &Client{
		sendCh:  make(chan []byte, sendChSize),
		welcome: make(chan streaming.WelcomePayload, 1),
		done:    make(chan struct{}),
		wsURL:   rawURL,
		codec:   codec,
		frame:   ws.TextMessage,
		backoff: time.Second,
		logger:  slog.Default(),
	}
	if codec.Binary() {
		c.frame = ws.BinaryMessage
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := c.dialOnce(ctx)
	if err != nil {
		return nil, err
	}

	c.start(conn)
	return c, nil
}

func (c *Client) dialOnce(ctx context.Context) (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	conn, _, err := ws.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// SetHandler installs the receiver for server messages. Messages that
// arrive while no handler is set are dropped.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Join asks the server for a vehicle and waits for the welcome. The join
// is replayed after every reconnect; the resulting welcomes arrive on
// Welcomes.
func (c *Client) Join(ctx context.Context, name string, isBot bool) (streaming.WelcomePayload, error) {
	data, err := c.codec.Encode(streaming.TypeJoin, streaming.JoinPayload{Name: name, IsBot: isBot})
	if err != nil {
		return streaming.WelcomePayload{}, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return streaming.WelcomePayload{}, ErrClosed
	}
	c.cachedJoin = data
	c.mu.Unlock()

	c.send(data)

	select {
	case w := <-c.welcome:
		return w, nil
	case <-ctx.Done():
		return streaming.WelcomePayload{}, ctx.Err()
	case <-c.done:
		return streaming.WelcomePayload{}, ErrClosed
	}
}

// Welcomes delivers the welcome of each rejoin after a reconnect.
func (c *Client) Welcomes() <-chan streaming.WelcomePayload {
	return c.welcome
}

// Send encodes and queues a message. It never blocks.
func (c *Client) Send(msgType string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	data, err := c.codec.Encode(msgType, payload)
	if err != nil {
		return err
	}
	c.send(data)
	return nil
}

// start installs conn and runs its read and write loops.
func (c *Client) start(conn *ws.Conn) {
	stop := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.stop = stop
	c.mu.Unlock()

	go c.writeLoop(conn, stop)
	go c.readLoop(conn)
}

// writeLoop drains sendCh and writes messages to conn.
// Only one writeLoop runs at a time; it returns on error, on shutdown or
// when conn is replaced.
func (c *Client) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(c.frame, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop decodes server messages and routes them to the handler.
func (c *Client) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		env, err := c.codec.Decode(message)
		if err != nil {
			c.logger.Debug("dropping undecodable frame", "bytes", len(message), "error", err)
			continue
		}

		if env.Type == streaming.TypeWelcome {
			c.deliverWelcome(env)
			continue
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h == nil {
			continue
		}
		if err := h(env); err != nil {
			c.logger.Debug("handler rejected message", "type", env.Type, "error", err)
		}
	}
}

func (c *Client) deliverWelcome(env streaming.Envelope) {
	w, err := streaming.DecodePayload[streaming.WelcomePayload](c.codec, env)
	if err != nil {
		c.logger.Warn("malformed welcome", "error", err)
		return
	}
	select {
	case c.welcome <- w:
	default:
		c.logger.Warn("welcome not consumed, dropping", "vehicle", w.VehicleID)
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. On success it replays the cached join message and
// restarts the read/write loops. Failures of an already replaced
// connection are ignored.
func (c *Client) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	close(c.stop)
	c.mu.Unlock()

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce(context.Background())
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		closed := c.closed
		cached := c.cachedJoin
		c.mu.Unlock()
		if closed {
			_ = conn.Close()
			return
		}

		// Replay the join so the server assigns a vehicle again.
		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for join replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(c.frame, cached); err != nil {
				c.logger.Warn("Failed to replay join after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		c.start(conn)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *Client) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// Close sends a WebSocket close frame and shuts down all goroutines.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
