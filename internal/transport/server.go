package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/phaseline/lightcycle/internal/channel"
	"github.com/phaseline/lightcycle/internal/dispatcher"
	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/phaseline/lightcycle/pkg/streaming"
)

const (
	peerSendSize   = 1024
	maxMessageSize = 1 << 20
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
)

// Dispatcher routes decoded peer messages. *dispatcher.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Disconnector is told when a peer goes away. *worker.Manager satisfies it.
type Disconnector interface {
	Disconnect(source string)
}

// Hub accepts websocket peers, feeds their messages to a Dispatcher and
// fans session messages out to them. It implements match.Outbox.
type Hub struct {
	codec      streaming.Codec
	dispatch   Dispatcher
	disconnect Disconnector
	upgrader   ws.Upgrader
	logger     *slog.Logger

	nextID atomic.Uint64

	mu     sync.RWMutex
	peers  map[string]*peer
	closed bool
}

type peer struct {
	id      string
	conn    *ws.Conn
	send    channel.Channel[[]byte]
	done    chan struct{}
	once    sync.Once
	vehicle atomic.Int32 // -1 until the peer has joined
}

func (p *peer) stop() {
	p.once.Do(func() { close(p.done) })
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(f func(*http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = f }
}

// NewHub creates a hub. disconnect may be nil.
func NewHub(codec streaming.Codec, d Dispatcher, disconnect Disconnector, opts ...HubOption) *Hub {
	h := &Hub{
		codec:      codec,
		dispatch:   d,
		disconnect: disconnect,
		upgrader: ws.Upgrader{
			// Clients are game binaries, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: slog.Default(),
		peers:  make(map[string]*peer),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := &peer{
		id:   fmt.Sprintf("peer-%d", h.nextID.Add(1)),
		conn: conn,
		send: channel.New[[]byte](peerSendSize),
		done: make(chan struct{}),
	}
	p.vehicle.Store(-1)

	if !h.register(p) {
		_ = conn.Close()
		return
	}
	h.logger.Info("peer connected", "peer", p.id, "remote", r.RemoteAddr)

	go h.writePump(p)
	h.readPump(p)

	h.unregister(p)
	if h.disconnect != nil {
		h.disconnect.Disconnect(p.id)
	}
	h.logger.Info("peer disconnected", "peer", p.id)
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.peers[p.id] = p
	return true
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	delete(h.peers, p.id)
	h.mu.Unlock()
	p.stop()
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) readPump(p *peer) {
	defer p.stop()

	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				h.logger.Warn("websocket read error", "peer", p.id, "error", err)
			}
			return
		}
		h.handle(p, data)
	}
}

func (h *Hub) handle(p *peer, data []byte) {
	env, err := h.codec.Decode(data)
	if err != nil {
		h.logger.Debug("dropping undecodable frame", "peer", p.id, "bytes", len(data), "error", err)
		return
	}

	result, err := h.dispatch.Dispatch(dispatcher.Event{
		Type:      env.Type,
		Source:    p.id,
		Payload:   env.Payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Debug("message rejected", "peer", p.id, "type", env.Type, "error", err)
		return
	}

	if welcome, ok := result.(streaming.WelcomePayload); ok {
		p.vehicle.Store(int32(welcome.VehicleID))
		h.enqueue(p, streaming.TypeWelcome, welcome)
	}
}

func (h *Hub) writePump(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	frame := ws.TextMessage
	if h.codec.Binary() {
		frame = ws.BinaryMessage
	}

	for {
		select {
		case <-p.done:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = p.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			return
		case data := <-p.send.Receive():
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.logger.Warn("websocket SetWriteDeadline error", "peer", p.id, "error", err)
				return
			}
			if err := p.conn.WriteMessage(frame, data); err != nil {
				h.logger.Warn("websocket write error", "peer", p.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast encodes the message once and queues it for every peer.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := h.codec.Encode(msgType, payload)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "type", msgType, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range h.peers {
		h.push(p, msgType, data)
	}
}

// Send queues a message for the peer controlling a vehicle.
func (h *Hub) Send(to core.VehicleID, msgType string, payload any) {
	h.mu.RLock()
	var target *peer
	for _, p := range h.peers {
		if p.vehicle.Load() == int32(to) {
			target = p
			break
		}
	}
	h.mu.RUnlock()

	if target == nil {
		h.logger.Debug("no peer for vehicle", "vehicle", to, "type", msgType)
		return
	}
	h.enqueue(target, msgType, payload)
}

func (h *Hub) enqueue(p *peer, msgType string, payload any) {
	data, err := h.codec.Encode(msgType, payload)
	if err != nil {
		h.logger.Error("failed to encode message", "type", msgType, "peer", p.id, "error", err)
		return
	}
	h.push(p, msgType, data)
}

// push never blocks the session; a peer that falls this far behind loses messages.
func (h *Hub) push(p *peer, msgType string, data []byte) {
	select {
	case <-p.done:
		return
	default:
	}
	if !p.send.TrySend(data) {
		h.logger.Warn("peer send channel full, dropping message", "peer", p.id, "type", msgType)
	}
}

// Close disconnects every peer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.stop()
	}
}
