package spawn

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/internal/damage"
	"github.com/phaseline/lightcycle/internal/netcode"
	"github.com/phaseline/lightcycle/internal/scheduler"
	"github.com/phaseline/lightcycle/internal/teleport"
	"github.com/phaseline/lightcycle/internal/trail"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleStepper struct{}

func (idleStepper) Step(s core.VehicleState, _ core.TickInput, _ float64) core.VehicleState { return s }

type fakeVehicle struct {
	id     core.VehicleID
	lock   sync.Mutex
	auth   *netcode.Authority
	ledger *trail.Ledger
	health damage.Health
}

func newVehicle(id core.VehicleID) *fakeVehicle {
	return &fakeVehicle{
		id:     id,
		auth:   netcode.NewAuthority(id, idleStepper{}, 1.0/60, core.NewVehicleState(mgl64.Vec3{}, mgl64.QuatIdent()), 0, 16),
		ledger: trail.NewLedger(id, trail.DefaultConfig(), trail.Options{Authoritative: true}),
	}
}

func (v *fakeVehicle) ID() core.VehicleID { return v.id }
func (v *fakeVehicle) Health() *damage.Health { return &v.health }
func (v *fakeVehicle) Trail() *trail.Ledger { return v.ledger }
func (v *fakeVehicle) Pose() trail.Pose {
	s := v.auth.State()
	return trail.Pose{Position: s.Position, Rotation: s.Rotation}
}
func (v *fakeVehicle) TeleportTarget(resume bool) teleport.Target {
	return teleport.Target{ID: v.id, Lock: &v.lock, Authority: v.auth, Trail: v.ledger, ResumeTrail: resume}
}

type listener struct {
	spawned []core.VehicleID
	resumed []uint64
}

func (l *listener) Spawned(v Vehicle, _ uint64, _ core.TeleportEvent) { l.spawned = append(l.spawned, v.ID()) }
func (l *listener) TrailResumed(_ Vehicle, tick uint64) { l.resumed = append(l.resumed, tick) }

var points = []world.SpawnPoint{
	{Position: mgl64.Vec3{10, 0, 0}, Rotation: mgl64.QuatIdent()},
	{Position: mgl64.Vec3{-10, 0, 0}, Rotation: mgl64.QuatIdent()},
}

func newManager(t *testing.T, cfg Config) (*Manager, *scheduler.Scheduler, *listener) {
	t.Helper()
	sched := scheduler.New()
	l := &listener{}
	m, err := NewManager(cfg, points, sched, teleport.NewCoordinator(nil, nil), l, nil)
	require.NoError(t, err)
	return m, sched, l
}

func TestNewManager_NoPoints(t *testing.T) {
	_, err := NewManager(Config{}, nil, scheduler.New(), nil, nil, nil)
	assert.ErrorIs(t, err, world.ErrNoSpawnPoints)
}

func TestManager_RoundRobin(t *testing.T) {
	m, _, _ := newManager(t, Config{})
	assert.Equal(t, points[0], m.NextPoint())
	assert.Equal(t, points[1], m.NextPoint())
	assert.Equal(t, points[0], m.NextPoint())
}

func TestManager_SpawnSequence(t *testing.T) {
	m, _, l := newManager(t, Config{Immunity: 120})
	v := newVehicle(1)
	v.ledger.ResumeEmission(trail.Pose{Position: mgl64.Vec3{0, 0, 0}, Rotation: mgl64.QuatIdent()})
	v.ledger.OnTick(1, trail.Pose{Position: mgl64.Vec3{0, 0, 0.5}, Rotation: mgl64.QuatIdent()})
	v.health.State.Die(1)

	ev, err := m.Spawn(5, v)
	require.NoError(t, err)

	assert.Equal(t, core.ReasonRespawn, ev.Reason)
	assert.Equal(t, points[0].Position, v.auth.State().Position)
	assert.False(t, v.health.State.IsDead())
	assert.Equal(t, uint64(120), v.health.Immunity.Remaining())
	assert.Empty(t, v.ledger.Segments())

	pts := v.ledger.Points()
	require.Len(t, pts, 1)
	assert.Equal(t, points[0].Position, pts[0].Emitter)
	assert.True(t, v.ledger.Active())
	assert.Equal(t, []core.VehicleID{1}, l.spawned)
	assert.Equal(t, []uint64{5}, l.resumed)
}

func TestManager_HoldTrailWhileImmune(t *testing.T) {
	m, sched, l := newManager(t, Config{Immunity: 120, HoldTrailWhileImmune: true})
	v := newVehicle(1)

	_, err := m.Spawn(10, v)
	require.NoError(t, err)
	assert.False(t, v.ledger.Active())
	assert.Empty(t, l.resumed)

	sched.RunDue(129)
	assert.False(t, v.ledger.Active())
	sched.RunDue(130)
	assert.True(t, v.ledger.Active())
	assert.Equal(t, []uint64{130}, l.resumed)
}

func TestManager_RespawnReplacesPending(t *testing.T) {
	m, sched, l := newManager(t, Config{RespawnDelay: 75})
	v := newVehicle(1)
	v.health.State.Die(10)

	m.ScheduleRespawn(10, v)
	m.ScheduleRespawn(20, v)
	assert.Equal(t, 1, sched.Len())

	sched.RunDue(85)
	assert.True(t, v.health.State.IsDead())
	sched.RunDue(95)
	assert.False(t, v.health.State.IsDead())
	assert.Equal(t, []core.VehicleID{1}, l.spawned)
}

func TestManager_RespawnSkipsLiveVehicle(t *testing.T) {
	m, sched, l := newManager(t, Config{RespawnDelay: 5})
	v := newVehicle(1)
	m.ScheduleRespawn(0, v)
	sched.RunDue(5)
	assert.Empty(t, l.spawned)
}

func TestManager_Forget(t *testing.T) {
	m, sched, _ := newManager(t, Config{RespawnDelay: 5})
	v := newVehicle(1)
	v.health.State.Die(0)
	m.ScheduleRespawn(0, v)
	m.Forget(1)
	assert.Zero(t, sched.Len())
}
