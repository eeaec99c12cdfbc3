// Package teleport relocates a vehicle in one step that is atomic with
// respect to its simulation tick: trail cut, state overwrite, trail
// resume, predictor reset and broadcast all happen under the vehicle's lock.
package teleport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/internal/geo"
	"github.com/phaseline/lightcycle/internal/trail"
	"github.com/phaseline/lightcycle/pkg/core"
)

// ErrInvalidTarget is returned for a missing or non-finite destination.
var ErrInvalidTarget = errors.New("invalid teleport target")

// Trail is the part of a trail ledger the coordinator drives.
type Trail interface {
	Cut(pose trail.Pose)
	ResumeEmission(pose trail.Pose)
}

// Authority holds the vehicle's authoritative state.
type Authority interface {
	State() core.VehicleState
	Overwrite(state core.VehicleState) core.ReconcileSnapshot
}

// Predictor is a local predicting copy of the vehicle.
type Predictor interface {
	ResetAt(s core.ReconcileSnapshot) error
}

// Broadcaster delivers the teleport snapshot to remote predictors.
// resumeTrail tells mirrors whether the trail reopens at the destination.
type Broadcaster interface {
	BroadcastTeleport(ev core.TeleportEvent, s core.ReconcileSnapshot, resumeTrail bool)
}

// Target is everything a teleport touches for one vehicle. Lock must be
// the same lock the vehicle's tick holds. Trail, Predictor may be nil.
type Target struct {
	ID        core.VehicleID
	Lock      sync.Locker
	Authority Authority
	Trail     Trail
	Predictor Predictor
	// ResumeTrail false leaves emission paused at the destination, for
	// callers that resume it later.
	ResumeTrail bool
}

// Coordinator performs teleports.
type Coordinator struct {
	broadcaster Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

func NewCoordinator(b Broadcaster, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{broadcaster: b, logger: logger, now: time.Now}
}

// Validate reports whether pos and rot form a usable destination.
func Validate(pos mgl64.Vec3, rot mgl64.Quat) error {
	if !core.IsFiniteVec(pos) {
		return fmt.Errorf("%w: position %v", ErrInvalidTarget, pos)
	}
	n := rot.Len()
	if n < geo.Epsilon || !geo.IsFinite(n) {
		return fmt.Errorf("%w: rotation %v", ErrInvalidTarget, rot)
	}
	return nil
}

// Teleport moves t to pos/rot with zero velocity. On error nothing changes.
func (c *Coordinator) Teleport(t Target, pos mgl64.Vec3, rot mgl64.Quat, reason core.TeleportReason) (core.TeleportEvent, error) {
	if err := Validate(pos, rot); err != nil {
		return core.TeleportEvent{}, err
	}
	if t.Authority == nil || t.Lock == nil {
		return core.TeleportEvent{}, fmt.Errorf("%w: vehicle %d has no authority", ErrInvalidTarget, t.ID)
	}
	rot = rot.Normalize()

	t.Lock.Lock()
	defer t.Lock.Unlock()

	prev := t.Authority.State()
	if t.Trail != nil {
		t.Trail.Cut(trail.Pose{Position: prev.Position, Rotation: prev.Rotation})
	}

	next := core.NewVehicleState(pos, rot)
	next.SpeedMultiplier = prev.SpeedMultiplier
	snap := t.Authority.Overwrite(next)

	if t.Trail != nil && t.ResumeTrail {
		t.Trail.ResumeEmission(trail.Pose{Position: pos, Rotation: rot})
	}
	if t.Predictor != nil {
		if err := t.Predictor.ResetAt(snap); err != nil {
			c.logger.Warn("predictor rejected teleport snapshot", "vehicle", t.ID, "tick", snap.Tick, "error", err)
		}
	}

	ev := core.TeleportEvent{
		VehicleID: t.ID,
		Tick:      snap.Tick,
		Time:      c.now(),
		From:      prev.Position,
		To:        pos,
		Reason:    reason,
	}
	if c.broadcaster != nil {
		c.broadcaster.BroadcastTeleport(ev, snap, t.Trail != nil && t.ResumeTrail)
	}
	c.logger.Debug("teleported", "vehicle", t.ID, "reason", reason, "from", prev.Position, "to", pos, "tick", snap.Tick)
	return ev, nil
}
