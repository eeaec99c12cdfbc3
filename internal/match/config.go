package match

import (
	"github.com/phaseline/lightcycle/internal/input"
	"github.com/phaseline/lightcycle/internal/physics"
	"github.com/phaseline/lightcycle/internal/powerup"
	"github.com/phaseline/lightcycle/internal/spawn"
	"github.com/phaseline/lightcycle/internal/trail"
)

// Config tunes a session. Durations are in ticks.
type Config struct {
	TickRate       int     `mapstructure:"tickRate"`
	BroadcastEvery int     `mapstructure:"broadcastEvery"`
	SampleEvery    int     `mapstructure:"sampleEvery"`
	Workers        int     `mapstructure:"workers"`
	MaxVehicles    int     `mapstructure:"maxVehicles"`
	InboxLimit     int     `mapstructure:"inboxLimit"`
	InputCapacity  int     `mapstructure:"inputCapacity"`
	HullRadius     float64 `mapstructure:"hullRadius"`
	HullHeight     float64 `mapstructure:"hullHeight"`
	PortalCooldown uint64  `mapstructure:"portalCooldown"`
	PredictionLead uint64  `mapstructure:"predictionLead"`
	MinCrashSpeed  float64 `mapstructure:"minCrashSpeed"`

	Physics physics.Tuning `mapstructure:"physics"`
	Trail   trail.Config   `mapstructure:"trail"`
	Spawn   spawn.Config   `mapstructure:"spawn"`
	PowerUp powerup.Config `mapstructure:"powerup"`
	Input   input.Shaper   `mapstructure:"input"`
}

// DefaultConfig returns the stock 60 Hz match settings.
func DefaultConfig() Config {
	return Config{
		TickRate:       60,
		BroadcastEvery: 1,
		SampleEvery:    6,
		MaxVehicles:    16,
		InboxLimit:     4096,
		InputCapacity:  256,
		HullRadius:     0.5,
		HullHeight:     0.6,
		PortalCooldown: 30,
		PredictionLead: 4,
		Physics:        physics.DefaultTuning(),
		Trail:          trail.DefaultConfig(),
		Spawn:          spawn.Config{RespawnDelay: 75, Immunity: 120},
		PowerUp:        powerup.Config{BoostMultiplier: 1.5, BoostDuration: 240, ShieldDuration: 240, RespawnDelay: 600},
		Input:          input.DefaultShaper(),
	}
}

// Dt returns the fixed step length in seconds.
func (c Config) Dt() float64 {
	if c.TickRate <= 0 {
		return 1.0 / 60
	}
	return 1 / float64(c.TickRate)
}

// Ticks converts seconds to whole ticks at the configured rate.
func (c Config) Ticks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	rate := c.TickRate
	if rate <= 0 {
		rate = 60
	}
	return uint64(seconds*float64(rate) + 0.5)
}
