// Package powerup runs the arena's pickups: boost raises a vehicle's
// speed multiplier for a while, shield grants collision immunity.
package powerup

import (
	"fmt"
	"sync"

	"github.com/phaseline/lightcycle/internal/damage"
	"github.com/phaseline/lightcycle/internal/scheduler"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/core"
)

// Target is a vehicle that can collect pickups.
type Target interface {
	ID() core.VehicleID
	Health() *damage.Health
	SetSpeedMultiplier(m float64)
}

// Config durations are in ticks.
type Config struct {
	BoostMultiplier float64 `mapstructure:"boostMultiplier"`
	BoostDuration   uint64  `mapstructure:"boostDuration"`
	ShieldDuration  uint64  `mapstructure:"shieldDuration"`
	RespawnDelay    uint64  `mapstructure:"respawnDelay"`
}

type site struct {
	world.PickupSite
	available bool
}

// Manager tracks pickup availability and active effects.
type Manager struct {
	cfg   Config
	sched *scheduler.Scheduler

	mu    sync.Mutex
	sites []*site
}

func NewManager(cfg Config, sites []world.PickupSite, sched *scheduler.Scheduler) *Manager {
	if cfg.BoostMultiplier <= 0 {
		cfg.BoostMultiplier = 1
	}
	m := &Manager{cfg: cfg, sched: sched}
	for _, s := range sites {
		m.sites = append(m.sites, &site{PickupSite: s, available: true})
	}
	return m
}

// Collect gives t every available pickup its hull overlaps and returns
// the resulting events.
func (m *Manager) Collect(tick uint64, t Target, hull world.Sphere) []core.PowerUpEvent {
	m.mu.Lock()
	var taken []*site
	for _, s := range m.sites {
		if !s.available {
			continue
		}
		if !hull.Overlaps(world.Sphere{Center: s.Position, Radius: s.Radius}) {
			continue
		}
		s.available = false
		taken = append(taken, s)
	}
	m.mu.Unlock()

	var events []core.PowerUpEvent
	for _, s := range taken {
		m.Apply(tick, t, core.PowerUpKind(s.Kind))
		m.scheduleRespawn(tick, s)
		events = append(events, core.PowerUpEvent{VehicleID: t.ID(), Tick: tick, Kind: core.PowerUpKind(s.Kind), PickupID: s.ID})
	}
	return events
}

// Apply starts kind's effect on t. Reapplying restarts the timer.
func (m *Manager) Apply(tick uint64, t Target, kind core.PowerUpKind) {
	switch kind {
	case core.PowerUpBoost:
		t.SetSpeedMultiplier(m.cfg.BoostMultiplier)
		m.sched.Schedule(boostKey(t.ID()), tick+m.cfg.BoostDuration, func(uint64) {
			t.SetSpeedMultiplier(1)
		})
	case core.PowerUpShield:
		t.Health().Immunity.Grant(m.cfg.ShieldDuration)
	}
}

// Cancel ends t's boost immediately.
func (m *Manager) Cancel(t Target) {
	if m.sched.Cancel(boostKey(t.ID())) {
		t.SetSpeedMultiplier(1)
	}
}

// Available reports whether the pickup with id can be collected.
func (m *Manager) Available(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sites {
		if s.ID == id {
			return s.available
		}
	}
	return false
}

func (m *Manager) scheduleRespawn(tick uint64, s *site) {
	m.sched.Schedule(fmt.Sprintf("pickup:%d", s.ID), tick+m.cfg.RespawnDelay, func(uint64) {
		m.mu.Lock()
		defer m.mu.Unlock()
		s.available = true
	})
}

func boostKey(id core.VehicleID) string { return fmt.Sprintf("boost:%d", id) }
