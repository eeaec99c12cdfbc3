package teleport

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/internal/netcode"
	"github.com/phaseline/lightcycle/internal/trail"
	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forwardStepper moves the vehicle 0.25 along +Z per unit of throttle.
type forwardStepper struct{}

func (forwardStepper) Step(s core.VehicleState, in core.TickInput, _ float64) core.VehicleState {
	s.Position = s.Position.Add(mgl64.Vec3{0, 0, 0.25 * in.Throttle})
	s.Velocity = mgl64.Vec3{0, 0, 15 * in.Throttle}
	return s
}

type recorder struct {
	snaps   []core.ReconcileSnapshot
	events  []core.TeleportEvent
	resumes []bool
}

func (r *recorder) BroadcastTeleport(ev core.TeleportEvent, s core.ReconcileSnapshot, resume bool) {
	r.snaps = append(r.snaps, s)
	r.events = append(r.events, ev)
	r.resumes = append(r.resumes, resume)
}

type fixture struct {
	auth   *netcode.Authority
	pred   *netcode.Predictor
	ledger *trail.Ledger
	lock   sync.Mutex
	tick   uint64
}

func newFixture() *fixture {
	start := core.NewVehicleState(mgl64.Vec3{}, mgl64.QuatIdent())
	f := &fixture{
		auth:   netcode.NewAuthority(1, forwardStepper{}, 1.0/60, start, 0, 64),
		pred:   netcode.NewPredictor(1, forwardStepper{}, 1.0/60, core.SnapshotOf(1, 0, start), 0, 64),
		ledger: trail.NewLedger(1, trail.DefaultConfig(), trail.Options{Authoritative: true}),
	}
	f.ledger.ResumeEmission(trail.Pose{Position: start.Position, Rotation: start.Rotation})
	return f
}

func (f *fixture) run(ticks int) {
	for i := 0; i < ticks; i++ {
		f.lock.Lock()
		f.tick++
		in := core.TickInput{Tick: f.tick, Throttle: 1}
		f.auth.Tick(f.tick, &in)
		f.pred.Tick(in)
		s := f.auth.State()
		f.ledger.OnTick(f.tick, trail.Pose{Position: s.Position, Rotation: s.Rotation})
		f.lock.Unlock()
	}
}

func (f *fixture) target() Target {
	return Target{ID: 1, Lock: &f.lock, Authority: f.auth, Trail: f.ledger, Predictor: f.pred, ResumeTrail: true}
}

func TestTeleport_Sequence(t *testing.T) {
	f := newFixture()
	f.run(20)
	rec := &recorder{}
	c := NewCoordinator(rec, nil)

	dest := mgl64.Vec3{50, 0, 50}
	ev, err := c.Teleport(f.target(), dest, mgl64.QuatRotate(math.Pi/2, core.WorldUp), core.ReasonPortal)
	require.NoError(t, err)

	assert.Equal(t, uint64(20), ev.Tick)
	assert.Equal(t, core.ReasonPortal, ev.Reason)
	assert.InDelta(t, 5.0, ev.From.Z(), 1e-9)
	assert.Equal(t, dest, ev.To)

	s := f.auth.State()
	assert.Equal(t, dest, s.Position)
	assert.Equal(t, mgl64.Vec3{}, s.Velocity)
	assert.Equal(t, mgl64.Vec3{}, s.AngularVelocity)

	points := f.ledger.Points()
	require.GreaterOrEqual(t, len(points), 2)
	before, after := points[len(points)-2], points[len(points)-1]
	assert.True(t, before.Gap)
	assert.InDelta(t, 5.0, before.Emitter.Z(), 1e-9)
	assert.False(t, after.Gap)
	assert.Equal(t, dest, after.Emitter)
	assert.True(t, f.ledger.Active())

	assert.Equal(t, dest, f.pred.State().Position)
	assert.Equal(t, uint64(20), f.pred.LastApplied())

	require.Len(t, rec.snaps, 1)
	assert.True(t, rec.snaps[0].Teleport)
	assert.Equal(t, dest, rec.snaps[0].Position)
	assert.Equal(t, ev.To, rec.events[0].To)
	assert.True(t, rec.resumes[0])
}

func TestTeleport_NoPhantomSegment(t *testing.T) {
	f := newFixture()
	f.run(20)
	_, err := NewCoordinator(nil, nil).Teleport(f.target(), mgl64.Vec3{80, 0, -80}, mgl64.QuatIdent(), core.ReasonRespawn)
	require.NoError(t, err)
	f.run(20)

	for _, seg := range f.ledger.Segments() {
		assert.LessOrEqual(t, seg.End.Sub(seg.Start).Len(), 0.5+1e-9, "segment %d bridges the teleport", seg.ID)
	}
	assert.Len(t, f.ledger.Runs(), 2)
}

func TestTeleport_InvalidTargetHasNoEffect(t *testing.T) {
	tests := []struct {
		name string
		pos  mgl64.Vec3
		rot  mgl64.Quat
	}{
		{"nan position", mgl64.Vec3{math.NaN(), 0, 0}, mgl64.QuatIdent()},
		{"inf position", mgl64.Vec3{0, math.Inf(1), 0}, mgl64.QuatIdent()},
		{"zero rotation", mgl64.Vec3{1, 2, 3}, mgl64.Quat{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.run(10)
			rec := &recorder{}
			beforeState := f.auth.State()
			beforePoints := f.ledger.Points()

			_, err := NewCoordinator(rec, nil).Teleport(f.target(), tt.pos, tt.rot, core.ReasonAdmin)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTarget))

			assert.Equal(t, beforeState, f.auth.State())
			assert.Equal(t, beforePoints, f.ledger.Points())
			assert.True(t, f.ledger.Active())
			assert.Empty(t, rec.snaps)
		})
	}
}

func TestTeleport_KeepsTrailPausedWhenAsked(t *testing.T) {
	f := newFixture()
	f.run(4)
	target := f.target()
	target.ResumeTrail = false

	_, err := NewCoordinator(nil, nil).Teleport(target, mgl64.Vec3{10, 0, 10}, mgl64.QuatIdent(), core.ReasonRespawn)
	require.NoError(t, err)
	assert.False(t, f.ledger.Active())
	f.run(4)
	assert.True(t, f.ledger.Points()[len(f.ledger.Points())-1].Gap)
}

func TestTeleport_ConcurrentWithTicks(t *testing.T) {
	f := newFixture()
	c := NewCoordinator(nil, nil)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.run(200)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, err := c.Teleport(f.target(), mgl64.Vec3{float64(i), 0, 0}, mgl64.QuatIdent(), core.ReasonAdmin)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	for _, seg := range f.ledger.Segments() {
		assert.LessOrEqual(t, seg.End.Sub(seg.Start).Len(), 0.5+1e-9)
	}
}
