package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phaseline/lightcycle/internal/config"
	"github.com/phaseline/lightcycle/pkg/core"
)

func startedBackend(t *testing.T, compress bool) (*Backend, *core.Match) {
	t.Helper()
	b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: compress})
	require.NoError(t, b.Init())
	m := &core.Match{
		Name:      "Grid: Final",
		WorldName: "grid",
		StartTime: time.Date(2026, 5, 4, 20, 15, 0, 0, time.UTC),
		TickRate:  60,
		Tag:       "FFA",
	}
	require.NoError(t, b.StartMatch(m))
	return b, m
}

func sample(id core.VehicleID, tick uint64, pos mgl64.Vec3) *core.VehicleSample {
	return &core.VehicleSample{
		VehicleID: id,
		Tick:      tick,
		State:     core.NewVehicleState(pos, mgl64.QuatIdent()),
		IsAlive:   true,
	}
}

func TestStartMatch_AssignsIDAndResets(t *testing.T) {
	b, m := startedBackend(t, false)
	assert.Equal(t, uint(1), m.ID)

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "a"}))
	require.NoError(t, b.StartMatch(&core.Match{Name: "second"}))

	_, ok := b.Vehicle(1)
	assert.False(t, ok, "a new match starts empty")
}

func TestRecordingWithoutMatch(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	assert.ErrorIs(t, b.AddVehicle(&core.Vehicle{ID: 1}), ErrNoMatch)
	assert.ErrorIs(t, b.RecordDeath(&core.DeathEvent{}), ErrNoMatch)
	assert.ErrorIs(t, b.EndMatch(), ErrNoMatch)
}

func TestRecordVehicleHistory(t *testing.T) {
	b, _ := startedBackend(t, false)
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 2, Name: "rider"}))

	require.NoError(t, b.RecordVehicleSample(sample(2, 10, mgl64.Vec3{0, 0.5, 0})))
	require.NoError(t, b.RecordVehicleSample(sample(2, 20, mgl64.Vec3{0, 0.5, 5})))
	require.NoError(t, b.RecordVehicleSample(sample(9, 20, mgl64.Vec3{})), "unknown vehicles are ignored")

	points := []mgl64.Vec3{{0, 0.5, 0}, {0, 0.5, 5}}
	require.NoError(t, b.RecordTrailRun(&core.TrailRun{VehicleID: 2, Tick: 20, Points: points}))
	points[0] = mgl64.Vec3{99, 99, 99}

	rec, ok := b.Vehicle(2)
	require.True(t, ok)
	assert.Equal(t, "rider", rec.Vehicle.Name)
	assert.Len(t, rec.Samples, 2)
	require.Len(t, rec.Runs, 1)
	assert.Equal(t, mgl64.Vec3{0, 0.5, 0}, rec.Runs[0].Points[0], "runs are copied")

	_, ok = b.Vehicle(9)
	assert.False(t, ok)
}

func TestAddVehicle_RejoinKeepsHistory(t *testing.T) {
	b, _ := startedBackend(t, false)
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "old"}))
	require.NoError(t, b.RecordVehicleSample(sample(1, 1, mgl64.Vec3{})))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "new"}))

	rec, _ := b.Vehicle(1)
	assert.Equal(t, "new", rec.Vehicle.Name)
	assert.Len(t, rec.Samples, 1)
}

func TestEndMatch_ExportsJSON(t *testing.T) {
	b, _ := startedBackend(t, false)
	killer := core.VehicleID(2)

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 2, Name: "b", IsBot: true}))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "a"}))
	require.NoError(t, b.RecordVehicleSample(sample(1, 5, mgl64.Vec3{1, 0.5, 2})))
	require.NoError(t, b.RecordTrailRun(&core.TrailRun{VehicleID: 1, Tick: 6, Points: []mgl64.Vec3{{0, 0, 0}, {0, 0, 1}}}))
	require.NoError(t, b.RecordPowerUp(&core.PowerUpEvent{VehicleID: 1, Tick: 40, Kind: core.PowerUpBoost, PickupID: 3}))
	require.NoError(t, b.RecordDeath(&core.DeathEvent{VehicleID: 1, Tick: 50, Cause: core.CauseTrail, KillerID: &killer}))
	require.NoError(t, b.RecordTeleport(&core.TeleportEvent{VehicleID: 1, Tick: 30, Reason: core.ReasonPortal}))

	require.NoError(t, b.EndMatch())

	path := b.ExportedFilePath()
	assert.Equal(t, "Grid__Final_20260504_201500.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var export MatchExport
	require.NoError(t, json.Unmarshal(data, &export))

	assert.Equal(t, "Grid: Final", export.Name)
	assert.Equal(t, 60, export.TickRate)
	assert.Equal(t, uint64(50), export.EndTick)

	require.Len(t, export.Vehicles, 2)
	assert.Equal(t, uint16(1), export.Vehicles[0].ID, "vehicles are ordered by id")
	assert.Equal(t, 1, export.Vehicles[1].IsBot)
	require.Len(t, export.Vehicles[0].Positions, 1)
	assert.Equal(t, []any{5.0, []any{1.0, 0.5, 2.0}, 0.0, 1.0}, export.Vehicles[0].Positions[0])
	assert.Len(t, export.Vehicles[0].Trails, 1)

	require.Len(t, export.Events, 3)
	assert.Equal(t, "teleported", export.Events[0][1])
	assert.Equal(t, "powerup", export.Events[1][1])
	assert.Equal(t, "killed", export.Events[2][1])
	assert.Equal(t, 2.0, export.Events[2][3])
}

func TestEndMatch_Gzip(t *testing.T) {
	b, _ := startedBackend(t, true)
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "a"}))
	require.NoError(t, b.EndMatch())

	path := b.ExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export MatchExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Len(t, export.Vehicles, 1)
}
