package physics

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// CurveKey is one (normalized speed, factor) key of the turn curve.
type CurveKey struct {
	Speed  float64 `mapstructure:"speed" json:"speed"`
	Factor float64 `mapstructure:"factor" json:"factor"`
}

// Tuning holds the handling constants of a vehicle. Forces are expressed
// as accelerations; the body has unit mass.
type Tuning struct {
	Acceleration    float64    `mapstructure:"acceleration"` // per-second gain on the forward speed gap
	MaxSpeed        float64    `mapstructure:"maxSpeed"`
	TurnStrength    float64    `mapstructure:"turnStrength"` // rad/s at curve factor 1
	TurnCurve       []CurveKey `mapstructure:"turnCurve"`
	SteerDeadzone   float64    `mapstructure:"steerDeadzone"`
	StickForce      float64    `mapstructure:"stickForce"`
	StickDistance   float64    `mapstructure:"stickDistance"`
	GroundOffset    float64    `mapstructure:"groundOffset"`
	RideHeight      float64    `mapstructure:"rideHeight"`
	UprightTorque   float64    `mapstructure:"uprightTorque"`
	SlopeAlignSpeed float64    `mapstructure:"slopeAlignSpeed"`
	AirAlignSpeed   float64    `mapstructure:"airAlignSpeed"`
	AngularDamping  float64    `mapstructure:"angularDamping"`
	DriftFactor     float64    `mapstructure:"driftFactor"` // lateral friction while drifting
	LateralFriction float64    `mapstructure:"lateralFriction"`
	JumpImpulse     float64    `mapstructure:"jumpImpulse"`
	Gravity         mgl64.Vec3 `mapstructure:"gravity"`
}

// DefaultTuning returns the stock light-cycle handling.
func DefaultTuning() Tuning {
	return Tuning{
		Acceleration:    60,
		MaxSpeed:        30,
		TurnStrength:    5,
		TurnCurve:       []CurveKey{{0, 0.6}, {0.5, 1}, {1, 0.7}},
		SteerDeadzone:   0.01,
		StickForce:      25,
		StickDistance:   2,
		GroundOffset:    1,
		RideHeight:      0.5,
		UprightTorque:   50,
		SlopeAlignSpeed: 10,
		AirAlignSpeed:   2,
		AngularDamping:  5,
		DriftFactor:     0.7,
		LateralFriction: 0.8,
		JumpImpulse:     8,
		Gravity:         mgl64.Vec3{0, -25, 0},
	}
}

// Validate checks that the tuning can produce a stable step.
func (t Tuning) Validate() error {
	var errs []error
	if t.MaxSpeed <= 0 {
		errs = append(errs, fmt.Errorf("maxSpeed must be positive, got %v", t.MaxSpeed))
	}
	if t.Acceleration < 0 {
		errs = append(errs, fmt.Errorf("acceleration must not be negative, got %v", t.Acceleration))
	}
	if t.StickDistance <= 0 {
		errs = append(errs, fmt.Errorf("stickDistance must be positive, got %v", t.StickDistance))
	}
	if t.GroundOffset <= 0 || t.GroundOffset > t.StickDistance {
		errs = append(errs, fmt.Errorf("groundOffset must be in (0, stickDistance], got %v", t.GroundOffset))
	}
	if t.RideHeight < 0 || t.RideHeight > t.GroundOffset {
		errs = append(errs, fmt.Errorf("rideHeight must be in [0, groundOffset], got %v", t.RideHeight))
	}
	if t.LateralFriction < 0 || t.LateralFriction > 1 {
		errs = append(errs, fmt.Errorf("lateralFriction must be in [0,1], got %v", t.LateralFriction))
	}
	if t.DriftFactor < 0 || t.DriftFactor > 1 {
		errs = append(errs, fmt.Errorf("driftFactor must be in [0,1], got %v", t.DriftFactor))
	}
	if len(t.TurnCurve) < 2 {
		errs = append(errs, errors.New("turnCurve needs at least two keys"))
	}
	return errors.Join(errs...)
}
