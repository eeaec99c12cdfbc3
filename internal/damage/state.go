// Package damage holds per-vehicle life state, spawn immunity and the
// judge that turns overlaps into deaths on the authoritative peer.
package damage

import "sync"

// State is a vehicle's alive/dead flag. Death is one-way until Revive.
type State struct {
	mu     sync.RWMutex
	dead   bool
	diedAt uint64
}

// Die marks the vehicle dead at tick. Returns false if it was already dead.
func (s *State) Die(tick uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return false
	}
	s.dead, s.diedAt = true, tick
	return true
}

// Revive returns a dead vehicle to play. Returns false if it was alive.
func (s *State) Revive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dead {
		return false
	}
	s.dead = false
	return true
}

func (s *State) IsDead() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dead
}

// DiedAt returns the tick of the last death.
func (s *State) DiedAt() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diedAt
}

// Immunity is a tick countdown that suppresses collision deaths.
type Immunity struct {
	mu        sync.Mutex
	remaining uint64
}

// Grant sets the countdown, replacing any running one.
func (i *Immunity) Grant(ticks uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.remaining = ticks
}

// Tick advances the countdown. Returns true on the tick immunity ends.
func (i *Immunity) Tick() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.remaining == 0 {
		return false
	}
	i.remaining--
	return i.remaining == 0
}

func (i *Immunity) Active() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.remaining > 0
}

func (i *Immunity) Remaining() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.remaining
}

func (i *Immunity) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.remaining = 0
}

// Health bundles the damage state of one vehicle.
type Health struct {
	State    State
	Immunity Immunity
}
