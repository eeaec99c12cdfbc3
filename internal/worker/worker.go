package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/phaseline/lightcycle/pkg/streaming"
)

var (
	// ErrNotJoined is returned for a message from a peer without a vehicle.
	ErrNotJoined = errors.New("peer has not joined")
	// ErrAlreadyJoined is returned when a peer joins twice.
	ErrAlreadyJoined = errors.New("peer already joined")
	// ErrWrongVehicle is returned when a peer sends input for another vehicle.
	ErrWrongVehicle = errors.New("input for a vehicle the peer does not own")
)

// Session is the part of the match session the handlers drive.
type Session interface {
	Join(ctx context.Context, name string, isBot bool) (streaming.WelcomePayload, error)
	Leave(id core.VehicleID) error
	SubmitInputs(id core.VehicleID, inputs []core.TickInput) (int, error)
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Session     Session
	Codec       streaming.Codec
	Logger      *slog.Logger
	JoinTimeout time.Duration
}

// Manager binds transport peers to vehicles and turns their messages
// into session calls.
type Manager struct {
	deps Dependencies

	mu       sync.RWMutex
	bindings map[string]core.VehicleID
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Codec == nil {
		deps.Codec = streaming.MsgpackCodec{}
	}
	if deps.JoinTimeout <= 0 {
		deps.JoinTimeout = 5 * time.Second
	}
	return &Manager{deps: deps, bindings: make(map[string]core.VehicleID)}
}

// Bound returns the vehicle a peer controls.
func (m *Manager) Bound(source string) (core.VehicleID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bindings[source]
	return id, ok
}

// Disconnect removes a peer's vehicle from the match.
func (m *Manager) Disconnect(source string) {
	m.mu.Lock()
	id, ok := m.bindings[source]
	delete(m.bindings, source)
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := m.deps.Session.Leave(id); err != nil {
		m.deps.Logger.Warn("failed to queue leave", "source", source, "vehicle", id, "error", err)
	}
}
