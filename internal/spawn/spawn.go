// Package spawn places vehicles on the arena's spawn points and brings
// dead vehicles back after a delay.
package spawn

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/internal/damage"
	"github.com/phaseline/lightcycle/internal/scheduler"
	"github.com/phaseline/lightcycle/internal/teleport"
	"github.com/phaseline/lightcycle/internal/trail"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/core"
)

// Vehicle is what the spawn manager needs from a match vehicle.
type Vehicle interface {
	ID() core.VehicleID
	Health() *damage.Health
	Trail() *trail.Ledger
	Pose() trail.Pose
	TeleportTarget(resumeTrail bool) teleport.Target
}

// Teleporter moves a vehicle.
type Teleporter interface {
	Teleport(t teleport.Target, pos mgl64.Vec3, rot mgl64.Quat, reason core.TeleportReason) (core.TeleportEvent, error)
}

// Listener is told about completed spawns.
type Listener interface {
	Spawned(v Vehicle, tick uint64, ev core.TeleportEvent)
	TrailResumed(v Vehicle, tick uint64)
}

// Config is in ticks.
type Config struct {
	RespawnDelay         uint64 `mapstructure:"respawnDelay"`
	Immunity             uint64 `mapstructure:"immunity"`
	HoldTrailWhileImmune bool   `mapstructure:"holdTrailWhileImmune"`
}

// Manager hands out spawn points round-robin and schedules respawns.
type Manager struct {
	cfg      Config
	points   []world.SpawnPoint
	sched    *scheduler.Scheduler
	tp       Teleporter
	listener Listener
	logger   *slog.Logger

	mu   sync.Mutex
	next int
}

func NewManager(cfg Config, points []world.SpawnPoint, sched *scheduler.Scheduler, tp Teleporter, listener Listener, logger *slog.Logger) (*Manager, error) {
	if len(points) == 0 {
		return nil, world.ErrNoSpawnPoints
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, points: points, sched: sched, tp: tp, listener: listener, logger: logger}, nil
}

// NextPoint returns the next spawn point in rotation.
func (m *Manager) NextPoint() world.SpawnPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.points[m.next%len(m.points)]
	m.next++
	return p
}

// Spawn puts v on the next spawn point now: clear trail, teleport, revive,
// resume trail, grant immunity.
func (m *Manager) Spawn(tick uint64, v Vehicle) (core.TeleportEvent, error) {
	p := m.NextPoint()
	v.Trail().Clear()
	ev, err := m.tp.Teleport(v.TeleportTarget(false), p.Position, p.Rotation, core.ReasonRespawn)
	if err != nil {
		return core.TeleportEvent{}, fmt.Errorf("spawn vehicle %d: %w", v.ID(), err)
	}
	h := v.Health()
	h.State.Revive()
	m.sched.Cancel(respawnKey(v.ID()))

	if m.cfg.Immunity > 0 {
		h.Immunity.Grant(m.cfg.Immunity)
	}
	if m.cfg.HoldTrailWhileImmune && m.cfg.Immunity > 0 {
		m.sched.Schedule(trailKey(v.ID()), tick+m.cfg.Immunity, func(at uint64) {
			m.resumeTrail(at, v)
		})
	} else {
		m.resumeTrail(tick, v)
	}

	if m.listener != nil {
		m.listener.Spawned(v, tick, ev)
	}
	return ev, nil
}

// ScheduleRespawn arranges for v to spawn RespawnDelay ticks after tick.
// Calling it again replaces the pending respawn.
func (m *Manager) ScheduleRespawn(tick uint64, v Vehicle) {
	m.sched.Cancel(trailKey(v.ID()))
	m.sched.Schedule(respawnKey(v.ID()), tick+m.cfg.RespawnDelay, func(at uint64) {
		if !v.Health().State.IsDead() {
			return
		}
		if _, err := m.Spawn(at, v); err != nil {
			m.logger.Error("respawn failed", "vehicle", v.ID(), "error", err)
		}
	})
}

// Forget drops any pending work for a vehicle leaving the match.
func (m *Manager) Forget(id core.VehicleID) {
	m.sched.Cancel(respawnKey(id))
	m.sched.Cancel(trailKey(id))
}

func (m *Manager) resumeTrail(tick uint64, v Vehicle) {
	if v.Health().State.IsDead() {
		return
	}
	v.Trail().ResumeEmission(v.Pose())
	if m.listener != nil {
		m.listener.TrailResumed(v, tick)
	}
}

func respawnKey(id core.VehicleID) string { return fmt.Sprintf("respawn:%d", id) }

func trailKey(id core.VehicleID) string { return fmt.Sprintf("trail:%d", id) }
