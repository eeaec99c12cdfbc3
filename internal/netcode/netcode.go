// Package netcode ties executions of the physics step to a tick counter on
// the authority and on predicting peers, and reconciles the two.
package netcode

import (
	"errors"

	"github.com/phaseline/lightcycle/pkg/core"
)

// ErrStaleSnapshot is returned by Predictor.Apply for a snapshot at or
// before the last applied tick. Callers treat it as a silent no-op.
var ErrStaleSnapshot = errors.New("stale snapshot")

// Stepper is the deterministic per-tick physics step.
type Stepper interface {
	Step(state core.VehicleState, in core.TickInput, dt float64) core.VehicleState
}

// supersedes orders snapshots: a later tick wins, and a teleport wins over
// an ordinary snapshot of the same tick.
func supersedes(candidate, held core.ReconcileSnapshot) bool {
	if candidate.Tick != held.Tick {
		return candidate.Tick > held.Tick
	}
	return candidate.Teleport && !held.Teleport
}
