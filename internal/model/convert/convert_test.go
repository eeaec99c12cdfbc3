package convert

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phaseline/lightcycle/internal/match"
	"github.com/phaseline/lightcycle/internal/model"
	"github.com/phaseline/lightcycle/pkg/core"
)

func TestCoreToMatch(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := CoreToMatch(core.Match{ID: 7, Name: "Arena", WorldName: "grid", StartTime: start, TickRate: 60, Tag: "FFA"})

	assert.Equal(t, uint(7), m.ID)
	assert.Equal(t, "Arena", m.Name)
	assert.Equal(t, "grid", m.WorldName)
	assert.Equal(t, start, m.StartTime)
	assert.Equal(t, 60, m.TickRate)
	assert.Equal(t, "FFA", m.Tag)
	assert.Nil(t, m.EndTime)
}

func TestCoreToVehicle(t *testing.T) {
	v := CoreToVehicle(core.Vehicle{ID: 3, Name: "rider", IsBot: true, JoinTick: 120})

	assert.Equal(t, uint16(3), v.VehicleID)
	assert.Zero(t, v.ID, "row id is assigned by the database")
	assert.Equal(t, "rider", v.Name)
	assert.True(t, v.IsBot)
	assert.Equal(t, uint64(120), v.JoinTick)
}

func TestVehicleSample_StateSurvivesStorage(t *testing.T) {
	state := core.NewVehicleState(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(0.5, mgl64.Vec3{0, 1, 0}))
	state.Velocity = mgl64.Vec3{0, 0, 4}
	state.Grounded = true
	sample := core.VehicleSample{VehicleID: 2, Tick: 99, Time: time.Unix(100, 0).UTC(), State: state, IsAlive: true}

	row, err := CoreToVehicleSample(sample)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), row.VehicleID)
	assert.Equal(t, 1.0, row.PosX)
	assert.Equal(t, 2.0, row.PosY)
	assert.Equal(t, 3.0, row.PosZ)
	assert.InDelta(t, 4.0, row.Speed, 1e-9)
	assert.True(t, row.Grounded)

	back, err := VehicleSampleToCore(row)
	require.NoError(t, err)
	assert.Equal(t, sample, back)
}

func TestVehicleSampleToCore_BadJSON(t *testing.T) {
	_, err := VehicleSampleToCore(model.VehicleSample{State: []byte("{")})
	assert.Error(t, err)
}

func TestCoreToDeathEvent(t *testing.T) {
	killer := core.VehicleID(4)
	seg := core.SegmentID(77)

	tests := []struct {
		name    string
		in      core.DeathEvent
		killer  *uint16
		segment *uint32
	}{
		{
			name: "wall",
			in:   core.DeathEvent{VehicleID: 1, Cause: core.CauseWall, Position: mgl64.Vec3{5, 0, 6}},
		},
		{
			name:    "trail",
			in:      core.DeathEvent{VehicleID: 1, Cause: core.CauseTrail, KillerID: &killer, SegmentID: &seg},
			killer:  ptr(uint16(4)),
			segment: ptr(uint32(77)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoreToDeathEvent(tt.in)
			assert.Equal(t, string(tt.in.Cause), got.Cause)
			assert.Equal(t, tt.killer, got.KillerID)
			assert.Equal(t, tt.segment, got.SegmentID)
			assert.Equal(t, tt.in.Position[0], got.PosX)
			assert.Equal(t, tt.in.Position[2], got.PosZ)
		})
	}
}

func TestCoreToTeleportEvent(t *testing.T) {
	got := CoreToTeleportEvent(core.TeleportEvent{
		VehicleID: 9,
		Tick:      10,
		From:      mgl64.Vec3{1, 2, 3},
		To:        mgl64.Vec3{4, 5, 6},
		Reason:    core.ReasonPortal,
	})

	assert.Equal(t, "portal", got.Reason)
	assert.Equal(t, []float64{1, 2, 3}, []float64{got.FromX, got.FromY, got.FromZ})
	assert.Equal(t, []float64{4, 5, 6}, []float64{got.ToX, got.ToY, got.ToZ})
}

func TestCoreToPowerUpEvent(t *testing.T) {
	got := CoreToPowerUpEvent(core.PowerUpEvent{VehicleID: 1, Tick: 5, Kind: core.PowerUpShield, PickupID: 2})
	assert.Equal(t, "shield", got.Kind)
	assert.Equal(t, 2, got.PickupID)
}

func TestTrailRun_PathSurvivesStorage(t *testing.T) {
	run := core.TrailRun{VehicleID: 1, Tick: 30, Points: []mgl64.Vec3{{0, 0.5, 0}, {0, 0.5, 3}, {4, 0.5, 3}}}

	row, err := CoreToTrailRun(run)
	require.NoError(t, err)
	assert.Equal(t, 3, row.PointCount)
	assert.InDelta(t, 7.0, row.Length, 1e-9)
	assert.NotEmpty(t, row.Path)

	back, err := TrailRunToCore(row)
	require.NoError(t, err)
	assert.Equal(t, run, back)
}

func TestCoreToTrailRun_TooShort(t *testing.T) {
	_, err := CoreToTrailRun(core.TrailRun{Points: []mgl64.Vec3{{0, 0, 0}}})
	assert.Error(t, err)
}

func TestStatsToTickPerformance(t *testing.T) {
	got := StatsToTickPerformance(match.TickStats{
		Tick:     600,
		Duration: 1500 * time.Microsecond,
		Vehicles: 4,
		Alive:    3,
		Segments: 120,
		Kills:    1,
	}, 2)

	assert.Equal(t, uint(2), got.MatchID)
	assert.Equal(t, uint64(600), got.Tick)
	assert.InDelta(t, 1.5, got.DurationMs, 1e-9)
	assert.Equal(t, 120, got.Segments)
}

func ptr[T any](v T) *T { return &v }
