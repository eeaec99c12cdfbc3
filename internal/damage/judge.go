package damage

import (
	"github.com/phaseline/lightcycle/pkg/core"
)

// Outcome is the judge's decision for one contact.
type Outcome int

const (
	Killed Outcome = iota + 1
	IgnoredSelf
	IgnoredImmune
	IgnoredDead
	IgnoredUnknown
	IgnoredNotAuthority
	IgnoredSlow
)

func (o Outcome) String() string {
	switch o {
	case Killed:
		return "killed"
	case IgnoredSelf:
		return "ignored_self"
	case IgnoredImmune:
		return "ignored_immune"
	case IgnoredDead:
		return "ignored_dead"
	case IgnoredUnknown:
		return "ignored_unknown"
	case IgnoredNotAuthority:
		return "ignored_not_authority"
	case IgnoredSlow:
		return "ignored_slow"
	default:
		return "unknown"
	}
}

// Owners resolves colliders to their vehicles.
type Owners interface {
	SegmentOwner(id core.SegmentID) (core.VehicleID, bool)
	HullOwner(id core.HullID) (core.VehicleID, bool)
}

// Registry looks up a vehicle's health.
type Registry interface {
	Health(id core.VehicleID) (*Health, bool)
}

// Verdict is the result of judging one contact for one victim.
type Verdict struct {
	Outcome Outcome
	Victim  core.VehicleID
	Killer  *core.VehicleID
	Segment *core.SegmentID
	Cause   core.DeathCause
}

// Judge decides collision deaths. A non-authoritative judge never kills.
type Judge struct {
	Authoritative bool
	// MinRelativeSpeed gates vehicle-vehicle kills. Zero disables the gate.
	MinRelativeSpeed float64

	owners   Owners
	registry Registry
}

func NewJudge(authoritative bool, owners Owners, registry Registry) *Judge {
	return &Judge{Authoritative: authoritative, owners: owners, registry: registry}
}

// OnOverlapBegin judges a hull entering a trail segment.
func (j *Judge) OnOverlapBegin(tick uint64, segment core.SegmentID, hull core.HullID) Verdict {
	v := Verdict{Cause: core.CauseTrail, Segment: &segment}
	if !j.Authoritative {
		v.Outcome = IgnoredNotAuthority
		return v
	}
	victim, ok := j.owners.HullOwner(hull)
	if !ok {
		v.Outcome = IgnoredUnknown
		return v
	}
	v.Victim = victim
	owner, ok := j.owners.SegmentOwner(segment)
	if !ok {
		v.Outcome = IgnoredUnknown
		return v
	}
	if owner == victim {
		v.Outcome = IgnoredSelf
		return v
	}
	v.Killer = &owner
	v.Outcome = j.kill(tick, victim)
	return v
}

// OnWallContact judges a hull touching a lethal wall.
func (j *Judge) OnWallContact(tick uint64, hull core.HullID) Verdict {
	v := Verdict{Cause: core.CauseWall}
	if !j.Authoritative {
		v.Outcome = IgnoredNotAuthority
		return v
	}
	victim, ok := j.owners.HullOwner(hull)
	if !ok {
		v.Outcome = IgnoredUnknown
		return v
	}
	v.Victim = victim
	v.Outcome = j.kill(tick, victim)
	return v
}

// OnHullContact judges two vehicles colliding. Each side is judged on
// its own immunity, so a shielded vehicle survives while the other dies.
func (j *Judge) OnHullContact(tick uint64, a, b core.HullID, relativeSpeed float64) [2]Verdict {
	out := [2]Verdict{{Cause: core.CauseVehicle}, {Cause: core.CauseVehicle}}
	if !j.Authoritative {
		out[0].Outcome, out[1].Outcome = IgnoredNotAuthority, IgnoredNotAuthority
		return out
	}
	va, okA := j.owners.HullOwner(a)
	vb, okB := j.owners.HullOwner(b)
	if !okA || !okB || va == vb {
		out[0].Outcome, out[1].Outcome = IgnoredUnknown, IgnoredUnknown
		return out
	}
	out[0].Victim, out[0].Killer = va, &vb
	out[1].Victim, out[1].Killer = vb, &va
	if j.MinRelativeSpeed > 0 && relativeSpeed < j.MinRelativeSpeed {
		out[0].Outcome, out[1].Outcome = IgnoredSlow, IgnoredSlow
		return out
	}
	out[0].Outcome = j.kill(tick, va)
	out[1].Outcome = j.kill(tick, vb)
	return out
}

func (j *Judge) kill(tick uint64, victim core.VehicleID) Outcome {
	h, ok := j.registry.Health(victim)
	if !ok {
		return IgnoredUnknown
	}
	if h.State.IsDead() {
		return IgnoredDead
	}
	if h.Immunity.Active() {
		return IgnoredImmune
	}
	if !h.State.Die(tick) {
		return IgnoredDead
	}
	return Killed
}
