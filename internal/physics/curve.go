package physics

import (
	"fmt"

	"github.com/phaseline/lightcycle/internal/geo"
	"gonum.org/v1/gonum/interp"
)

// Curve maps normalized speed to a turn factor by linear interpolation.
type Curve struct {
	pl interp.PiecewiseLinear
}

// NewCurve fits a curve through keys, which must be sorted by strictly
// increasing speed.
func NewCurve(keys []CurveKey) (*Curve, error) {
	if len(keys) < 2 {
		return nil, fmt.Errorf("turn curve needs at least 2 keys, got %d", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i].Speed <= keys[i-1].Speed {
			return nil, fmt.Errorf("turn curve key %d is not after key %d", i, i-1)
		}
	}

	xs := make([]float64, len(keys))
	ys := make([]float64, len(keys))
	for i, k := range keys {
		xs[i], ys[i] = k.Speed, k.Factor
	}
	// Fit panics on malformed keys; they were checked above.
	c := &Curve{}
	if err := c.pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("failed to fit turn curve: %w", err)
	}
	return c, nil
}

// Eval evaluates the curve at x clamped to [0,1].
func (c *Curve) Eval(x float64) float64 {
	return c.pl.Predict(geo.Clamp01(x))
}
