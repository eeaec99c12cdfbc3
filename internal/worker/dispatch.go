package worker

import (
	"context"
	"fmt"

	"github.com/phaseline/lightcycle/internal/dispatcher"
	"github.com/phaseline/lightcycle/pkg/streaming"
)

// RegisterHandlers registers all message handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Join and leave are sync: the peer waits for its welcome
	d.Register(streaming.TypeJoin, m.handleJoin, dispatcher.Logged())
	d.Register(streaming.TypeLeave, m.handleLeave, dispatcher.Logged())

	// Inputs arrive every client tick - buffered
	d.Register(streaming.TypeInput, m.handleInput, dispatcher.Buffered(4096))
}

// handleJoin returns the streaming.WelcomePayload for the transport to
// send back to the peer.
func (m *Manager) handleJoin(e dispatcher.Event) (any, error) {
	if _, ok := m.Bound(e.Source); ok {
		return nil, fmt.Errorf("join from %s: %w", e.Source, ErrAlreadyJoined)
	}
	join, err := streaming.DecodePayload[streaming.JoinPayload](m.deps.Codec, envelope(e))
	if err != nil {
		return nil, fmt.Errorf("failed to decode join from %s: %w", e.Source, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.deps.JoinTimeout)
	defer cancel()
	welcome, err := m.deps.Session.Join(ctx, join.Name, join.IsBot)
	if err != nil {
		return nil, fmt.Errorf("join %q: %w", join.Name, err)
	}

	m.mu.Lock()
	m.bindings[e.Source] = welcome.VehicleID
	m.mu.Unlock()
	return welcome, nil
}

func (m *Manager) handleInput(e dispatcher.Event) (any, error) {
	id, ok := m.Bound(e.Source)
	if !ok {
		return nil, fmt.Errorf("input from %s: %w", e.Source, ErrNotJoined)
	}
	in, err := streaming.DecodePayload[streaming.InputPayload](m.deps.Codec, envelope(e))
	if err != nil {
		// malformed input is treated as absent; the authority holds the last one
		m.deps.Logger.Debug("dropping malformed input", "source", e.Source, "error", err)
		return nil, nil
	}
	if in.VehicleID != id {
		return nil, fmt.Errorf("input from %s for vehicle %d: %w", e.Source, in.VehicleID, ErrWrongVehicle)
	}

	kept, err := m.deps.Session.SubmitInputs(id, in.Inputs)
	if err != nil {
		return nil, fmt.Errorf("input for vehicle %d: %w", id, err)
	}
	return kept, nil
}

func (m *Manager) handleLeave(e dispatcher.Event) (any, error) {
	if _, ok := m.Bound(e.Source); !ok {
		return nil, fmt.Errorf("leave from %s: %w", e.Source, ErrNotJoined)
	}
	m.Disconnect(e.Source)
	return nil, nil
}

func envelope(e dispatcher.Event) streaming.Envelope {
	return streaming.Envelope{Type: e.Type, Payload: e.Payload}
}
