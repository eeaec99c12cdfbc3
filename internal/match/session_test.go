package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/internal/input"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/phaseline/lightcycle/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to      core.VehicleID
	msgType string
	payload any
}

type recordingOutbox struct {
	mu   sync.Mutex
	msgs []sent
}

func (o *recordingOutbox) Broadcast(msgType string, payload any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, sent{msgType: msgType, payload: payload})
}

func (o *recordingOutbox) Send(to core.VehicleID, msgType string, payload any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, sent{to: to, msgType: msgType, payload: payload})
}

func (o *recordingOutbox) ofType(msgType string) []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []any
	for _, m := range o.msgs {
		if m.msgType == msgType {
			out = append(out, m.payload)
		}
	}
	return out
}

type countingRecorder struct {
	mu        sync.Mutex
	vehicles  int
	samples   int
	deaths    []core.DeathEvent
	teleports []core.TeleportEvent
	powerups  int
	runs      int
}

func (r *countingRecorder) AddVehicle(*core.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles++
	return nil
}

func (r *countingRecorder) RecordVehicleSample(*core.VehicleSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++
	return nil
}

func (r *countingRecorder) RecordDeath(e *core.DeathEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deaths = append(r.deaths, *e)
	return nil
}

func (r *countingRecorder) RecordTeleport(e *core.TeleportEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teleports = append(r.teleports, *e)
	return nil
}

func (r *countingRecorder) RecordPowerUp(*core.PowerUpEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.powerups++
	return nil
}

func (r *countingRecorder) RecordTrailRun(*core.TrailRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Spawn.Immunity = 0
	return cfg
}

func newTestSession(t *testing.T, cfg Config) (*Session, *recordingOutbox, *countingRecorder) {
	t.Helper()
	out := &recordingOutbox{}
	rec := &countingRecorder{}
	s, err := NewSession(cfg, world.DefaultArena(50), nil, WithOutbox(out), WithRecorder(rec))
	require.NoError(t, err)
	return s, out, rec
}

func steps(s *Session, n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

func place(t *testing.T, s *Session, v *Vehicle, pos mgl64.Vec3) {
	t.Helper()
	_, err := s.teleport(v.ID(), pos, mgl64.QuatIdent(), core.ReasonAdmin)
	require.NoError(t, err)
}

func TestNewSession_RequiresWorld(t *testing.T) {
	_, err := NewSession(DefaultConfig(), nil, nil)
	assert.Error(t, err)
}

func TestSession_AddVehicleSpawns(t *testing.T) {
	s, out, rec := newTestSession(t, DefaultConfig())

	v, err := s.AddVehicle("alpha", false, nil)
	require.NoError(t, err)

	first := s.World().SpawnPoints()[0]
	assert.Equal(t, core.VehicleID(1), v.ID())
	assert.InDelta(t, 0, v.Snapshot().Position.Sub(first.Position).Len(), 1e-9)
	assert.True(t, v.Trail().Active())
	assert.True(t, v.Health().Immunity.Active(), "spawn protection")
	assert.Equal(t, 1, rec.vehicles)

	assert.Len(t, out.ofType(streaming.TypeVehicleJoined), 1)
	assert.Len(t, out.ofType(streaming.TypeTeleport), 1)
	assert.Len(t, out.ofType(streaming.TypeTrailResume), 1)

	owner, ok := s.owners.HullOwner(v.Hull())
	require.True(t, ok)
	assert.Equal(t, v.ID(), owner)
}

func TestSession_MatchFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxVehicles = 1
	s, _, _ := newTestSession(t, cfg)

	_, err := s.AddVehicle("one", false, nil)
	require.NoError(t, err)
	_, err = s.AddVehicle("two", false, nil)
	assert.ErrorIs(t, err, ErrMatchFull)
}

func TestSession_SubmitInputsUnknownVehicle(t *testing.T) {
	s, _, _ := newTestSession(t, testConfig())
	_, err := s.SubmitInputs(9, []core.TickInput{{Tick: 1}})
	assert.ErrorIs(t, err, ErrUnknownVehicle)
}

func TestSession_SubmitInputsDropsStale(t *testing.T) {
	s, _, _ := newTestSession(t, testConfig())
	v, err := s.AddVehicle("alpha", false, nil)
	require.NoError(t, err)
	steps(s, 5)

	kept, err := s.SubmitInputs(v.ID(), []core.TickInput{{Tick: 3}, {Tick: 5}, {Tick: 6, Throttle: 1}, {Tick: 7, Throttle: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, kept)
}

func TestSession_StepDrivesAndEmitsTrail(t *testing.T) {
	s, out, rec := newTestSession(t, testConfig())
	v, err := s.AddVehicle("bot", true, input.Constant{Throttle: 1})
	require.NoError(t, err)
	start := v.Snapshot().Position

	var stats TickStats
	for i := 0; i < 60; i++ {
		stats = s.Step()
	}

	assert.Equal(t, uint64(60), stats.Tick)
	assert.Equal(t, 1, stats.Vehicles)
	assert.Equal(t, 1, stats.Alive)
	assert.Greater(t, v.Snapshot().Position.Sub(start).Len(), 5.0)
	assert.NotEmpty(t, v.Trail().Segments())
	assert.Equal(t, len(v.Trail().Segments()), stats.Segments)
	assert.Len(t, out.ofType(streaming.TypeSegmentSpawn), len(v.Trail().Segments()))
	assert.Len(t, out.ofType(streaming.TypeSnapshot), 60)
	assert.Equal(t, 10, rec.samples)
}

func TestSession_WallKillsThenRespawns(t *testing.T) {
	cfg := testConfig()
	s, out, rec := newTestSession(t, cfg)
	v, err := s.AddVehicle("alpha", false, nil)
	require.NoError(t, err)
	steps(s, 2)

	place(t, s, v, mgl64.Vec3{0, 1, 49.8})
	stats := s.Step()

	assert.Equal(t, 1, stats.Kills)
	assert.True(t, v.Health().State.IsDead())
	assert.False(t, v.Alive())
	assert.False(t, v.Trail().Active())
	require.Len(t, rec.deaths, 1)
	assert.Equal(t, core.CauseWall, rec.deaths[0].Cause)
	assert.Nil(t, rec.deaths[0].KillerID)
	assert.Len(t, out.ofType(streaming.TypeTrailClear), 1)

	steps(s, int(cfg.Spawn.RespawnDelay)-1)
	assert.True(t, v.Health().State.IsDead(), "respawn waits for the delay")

	s.Step()
	assert.False(t, v.Health().State.IsDead())
	second := s.World().SpawnPoints()[1].Position
	assert.Less(t, v.Snapshot().Position.Sub(second).Len(), 1.0)
	assert.True(t, v.Trail().Active())
}

func TestSession_TrailKillCreditsOwner(t *testing.T) {
	s, _, rec := newTestSession(t, testConfig())
	a, err := s.AddVehicle("a", true, input.Constant{Throttle: 1})
	require.NoError(t, err)
	b, err := s.AddVehicle("b", true, nil)
	require.NoError(t, err)
	steps(s, 60)

	segs := a.Trail().Segments()
	require.NotEmpty(t, segs)
	target := segs[0].Center.Sub(mgl64.Vec3{0, s.Config().HullHeight, 0})
	place(t, s, b, target)
	s.Step()

	assert.True(t, b.Health().State.IsDead())
	assert.False(t, a.Health().State.IsDead())
	require.Len(t, rec.deaths, 1)
	d := rec.deaths[0]
	assert.Equal(t, b.ID(), d.VehicleID)
	assert.Equal(t, core.CauseTrail, d.Cause)
	require.NotNil(t, d.KillerID)
	assert.Equal(t, a.ID(), *d.KillerID)
	require.NotNil(t, d.SegmentID)
}

func TestSession_HullContactKillsBoth(t *testing.T) {
	s, _, rec := newTestSession(t, testConfig())
	a, err := s.AddVehicle("a", true, nil)
	require.NoError(t, err)
	b, err := s.AddVehicle("b", true, nil)
	require.NoError(t, err)

	place(t, s, a, mgl64.Vec3{10, 1, 10})
	place(t, s, b, mgl64.Vec3{10, 1, 10.2})
	stats := s.Step()

	assert.Equal(t, 2, stats.Kills)
	assert.True(t, a.Health().State.IsDead())
	assert.True(t, b.Health().State.IsDead())
	for _, d := range rec.deaths {
		assert.Equal(t, core.CauseVehicle, d.Cause)
	}
}

func TestSession_ImmunityBlocksKill(t *testing.T) {
	s, _, rec := newTestSession(t, DefaultConfig())
	v, err := s.AddVehicle("alpha", false, nil)
	require.NoError(t, err)

	place(t, s, v, mgl64.Vec3{0, 1, 49.8})
	s.Step()

	assert.False(t, v.Health().State.IsDead())
	assert.Empty(t, rec.deaths)
}

func TestSession_PortalTeleportsWithCooldown(t *testing.T) {
	s, out, rec := newTestSession(t, testConfig())
	v, err := s.AddVehicle("alpha", false, nil)
	require.NoError(t, err)

	portal := s.World().Portals()[0]
	place(t, s, v, portal.Trigger.Center.Sub(mgl64.Vec3{0, 0.5, 0}))
	s.Step()

	assert.InDelta(t, 0, v.Snapshot().Position.Sub(portal.ExitPosition).Len(), 1e-9)
	assert.Equal(t, mgl64.Vec3{}, v.Snapshot().Velocity)
	assert.True(t, v.onCooldown())

	var reasons []core.TeleportReason
	for _, e := range rec.teleports {
		reasons = append(reasons, e.Reason)
	}
	assert.Contains(t, reasons, core.ReasonPortal)

	last := out.ofType(streaming.TypeTeleport)
	p, ok := last[len(last)-1].(streaming.TeleportPayload)
	require.True(t, ok)
	assert.True(t, p.Snapshot.Teleport)
	assert.True(t, p.ResumeTrail)
	assert.Equal(t, core.ReasonPortal, p.Reason)
}

func TestSession_BoostPickupExpires(t *testing.T) {
	cfg := testConfig()
	cfg.PowerUp.BoostDuration = 10
	s, out, rec := newTestSession(t, cfg)
	v, err := s.AddVehicle("alpha", false, nil)
	require.NoError(t, err)

	var boost world.PickupSite
	for _, p := range s.World().PickupSites() {
		if p.Kind == string(core.PowerUpBoost) {
			boost = p
		}
	}
	place(t, s, v, boost.Position)
	s.Step()
	require.Len(t, out.ofType(streaming.TypePowerUp), 1)
	assert.Equal(t, 1, rec.powerups)
	assert.False(t, s.powerups.Available(boost.ID))

	s.Step()
	assert.InDelta(t, 1.5, v.Snapshot().SpeedMultiplier, 1e-9)

	steps(s, 9)
	assert.InDelta(t, 1.0, v.Snapshot().SpeedMultiplier, 1e-9)
}

func TestSession_RemoveVehicleRetiresTrail(t *testing.T) {
	s, out, rec := newTestSession(t, testConfig())
	v, err := s.AddVehicle("bot", true, input.Constant{Throttle: 1})
	require.NoError(t, err)
	steps(s, 30)
	n := len(v.Trail().Segments())
	require.Positive(t, n)

	require.NoError(t, s.RemoveVehicle(v.ID()))

	_, ok := s.Vehicle(v.ID())
	assert.False(t, ok)
	assert.Zero(t, s.owners.SegmentCount())
	assert.Len(t, out.ofType(streaming.TypeSegmentRetire), n)
	assert.Len(t, out.ofType(streaming.TypeVehicleLeft), 1)
	assert.Equal(t, 1, rec.runs)
	assert.ErrorIs(t, s.RemoveVehicle(v.ID()), ErrUnknownVehicle)
}

func TestSession_RunJoinLeave(t *testing.T) {
	s, _, _ := newTestSession(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	joinCtx, joinCancel := context.WithTimeout(ctx, 2*time.Second)
	defer joinCancel()
	w, err := s.Join(joinCtx, "remote", false)
	require.NoError(t, err)
	assert.Equal(t, core.VehicleID(1), w.VehicleID)
	assert.Equal(t, 60, w.TickRate)
	assert.Equal(t, s.World().SpawnPoints()[0].Position, w.Spawn.Position)

	require.NoError(t, s.Leave(w.VehicleID))
	require.Eventually(t, func() bool { return len(s.Vehicles()) == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSession_AdminTeleport(t *testing.T) {
	s, _, _ := newTestSession(t, testConfig())
	v, err := s.AddVehicle("alpha", false, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(ctx, 2*time.Second)
	defer reqCancel()
	ev, err := s.Teleport(reqCtx, v.ID(), mgl64.Vec3{5, 1, 5}, mgl64.QuatIdent())
	require.NoError(t, err)
	assert.Equal(t, core.ReasonAdmin, ev.Reason)
	assert.Equal(t, mgl64.Vec3{5, 1, 5}, ev.To)

	_, err = s.Teleport(reqCtx, 42, mgl64.Vec3{}, mgl64.QuatIdent())
	assert.ErrorIs(t, err, ErrUnknownVehicle)
}

func TestContext_PlaceholderAndSet(t *testing.T) {
	c := NewContext()
	assert.Equal(t, "No match running", c.GetMatch().Name)

	c.SetMatch(&core.Match{Name: "final", WorldName: "default", TickRate: 60})
	assert.Equal(t, "final", c.GetMatch().Name)
}

func TestConfig_Ticks(t *testing.T) {
	tests := []struct {
		rate    int
		seconds float64
		want    uint64
	}{
		{60, 1.25, 75},
		{60, 2, 120},
		{30, 4, 120},
		{0, 1, 60},
		{60, -1, 0},
	}
	for _, tt := range tests {
		cfg := Config{TickRate: tt.rate}
		assert.Equal(t, tt.want, cfg.Ticks(tt.seconds), "rate=%d seconds=%v", tt.rate, tt.seconds)
	}
}

func TestOverlapTracker_BeginEdge(t *testing.T) {
	tr := newOverlapTracker()
	k := trailKey(1, 7)

	assert.True(t, tr.touch(k))
	tr.flush()
	assert.False(t, tr.touch(k), "continuing contact")
	tr.flush()
	tr.flush()
	assert.True(t, tr.touch(k), "separated for a tick")

	assert.Equal(t, hullKey(3, 2), hullKey(2, 3))
	tr.touch(hullKey(2, 3))
	tr.flush()
	tr.forget(3)
	assert.True(t, tr.touch(hullKey(3, 2)))
}
