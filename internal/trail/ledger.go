// Package trail keeps the per-vehicle trail: the sampled cross-sections
// the mesh is built from and the bounded ring of collider segments that
// kill on contact.
package trail

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/internal/geo"
	"github.com/phaseline/lightcycle/pkg/core"
)

// Pose is the emitter transform sampled once per tick.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// EventKind tags a collider lifecycle event.
type EventKind uint8

const (
	EventSpawned EventKind = iota + 1
	EventRetired
)

// Event is a collider spawn or retirement produced by an authoritative ledger.
type Event struct {
	Kind    EventKind
	Segment core.TrailColliderSegment
}

// Options selects the ledger's role.
type Options struct {
	// Authoritative ledgers allocate segment ids and queue events.
	// Mirror ledgers only change colliders through ApplySpawn and ApplyRetire.
	Authoritative bool
	// NextID allocates match-unique segment ids. Must be safe for concurrent use
	// when ledgers tick in parallel. Defaults to a per-ledger counter.
	NextID func() core.SegmentID
}

// Ledger is one vehicle's trail. Safe for concurrent readers; OnTick and
// the emission controls are expected from the owning vehicle's tick.
type Ledger struct {
	owner core.VehicleID
	cfg   Config
	opts  Options

	mu       sync.RWMutex
	points   *ring[core.TrailPoint]
	segments *ring[core.TrailColliderSegment]
	events   []Event
	lastPos  mgl64.Vec3
	hasLast  bool
	active   bool
	tick     uint64
	counter  core.SegmentID
}

// NewLedger creates an inactive ledger. Emission starts at ResumeEmission.
func NewLedger(owner core.VehicleID, cfg Config, opts Options) *Ledger {
	cfg = cfg.withDefaults()
	l := &Ledger{
		owner:    owner,
		cfg:      cfg,
		opts:     opts,
		points:   newRing[core.TrailPoint](cfg.MaxMeshSegments + 1),
		segments: newRing[core.TrailColliderSegment](cfg.MaxSegments),
	}
	if l.opts.NextID == nil {
		l.opts.NextID = func() core.SegmentID {
			l.counter++
			return l.counter
		}
	}
	return l
}

func (l *Ledger) Owner() core.VehicleID { return l.owner }

func (l *Ledger) Config() Config { return l.cfg }

// Active reports whether emission is running.
func (l *Ledger) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// OnTick samples the emitter. A new cross-section is recorded once the
// emitter has moved at least SegmentLength since the previous one; an
// authoritative ledger also spawns a collider spanning the two. A jump
// farther than DesyncDistance closes the strip instead of bridging it.
func (l *Ledger) OnTick(tick uint64, pose Pose) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tick = tick
	l.expire(tick)
	if !l.active || !core.IsFiniteVec(pose.Position) {
		return
	}
	if !l.hasLast {
		l.anchor(pose)
		return
	}

	d := pose.Position.Sub(l.lastPos).Len()
	switch {
	case d > l.cfg.DesyncDistance:
		l.closeStrip()
		l.anchor(pose)
	case d >= l.cfg.SegmentLength:
		if l.opts.Authoritative {
			l.spawn(l.lastPos, pose)
		}
		l.addPoint(pose, false)
		l.lastPos = pose.Position
	}
}

// PauseEmission stops sampling and closes the current strip.
func (l *Ledger) PauseEmission() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
	l.closeStrip()
}

// ResumeEmission restarts sampling with a fresh anchor at pose.
func (l *Ledger) ResumeEmission(pose Pose) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeStrip()
	l.active = true
	l.anchor(pose)
}

// Cut records a gap cross-section at pose and pauses emission. Used right
// before a teleport so the strip ends where the vehicle left. A pose farther
// than DesyncDistance from the last sample only closes the strip.
func (l *Ledger) Cut(pose Pose) {
	l.mu.Lock()
	defer l.mu.Unlock()
	wasActive := l.active
	l.active = false
	if l.points.len() == 0 {
		return
	}
	if wasActive && core.IsFiniteVec(pose.Position) &&
		(!l.hasLast || pose.Position.Sub(l.lastPos).Len() <= l.cfg.DesyncDistance) {
		l.addPoint(pose, true)
		return
	}
	l.closeStrip()
}

// Clear stops emission, drops every cross-section and retires every collider.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
	l.hasLast = false
	l.points.clear()
	for l.segments.len() > 0 {
		l.retireFront()
	}
}

// ApplySpawn inserts a collider replicated from the authority.
func (l *Ledger) ApplySpawn(seg core.TrailColliderSegment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i < l.segments.len(); i++ {
		if l.segments.at(i).ID == seg.ID {
			return
		}
	}
	for l.segments.len() >= l.cfg.MaxSegments {
		l.segments.popFront()
	}
	l.segments.push(seg)
}

// ApplyRetire removes a replicated collider. Unknown ids are ignored.
func (l *Ledger) ApplyRetire(id core.SegmentID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 0; i < l.segments.len(); i++ {
		if l.segments.at(i).ID == id {
			l.segments.removeAt(i)
			return true
		}
	}
	return false
}

// Points returns a copy of the recorded cross-sections, oldest first.
func (l *Ledger) Points() []core.TrailPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.points.slice()
}

// Segments returns a copy of the live colliders, oldest first.
func (l *Ledger) Segments() []core.TrailColliderSegment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.segments.slice()
}

// TakeEvents returns and clears the queued collider events.
func (l *Ledger) TakeEvents() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev := l.events
	l.events = nil
	return ev
}

// Runs returns the emitter positions of each connected strip.
func (l *Ledger) Runs() [][]mgl64.Vec3 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var runs [][]mgl64.Vec3
	var cur []mgl64.Vec3
	for i := 0; i < l.points.len(); i++ {
		p := l.points.at(i)
		cur = append(cur, p.Emitter)
		if p.Gap {
			runs = append(runs, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

func (l *Ledger) anchor(pose Pose) {
	l.addPoint(pose, false)
	l.lastPos = pose.Position
	l.hasLast = true
}

func (l *Ledger) closeStrip() {
	if last := l.points.last(); last != nil {
		last.Gap = true
	}
}

func (l *Ledger) addPoint(pose Pose, gap bool) {
	p := CrossSection(pose, l.cfg.Width, l.cfg.Height)
	p.Gap = gap
	for l.points.len() > l.cfg.MaxMeshSegments {
		l.points.popFront()
	}
	l.points.push(p)
}

func (l *Ledger) spawn(from mgl64.Vec3, pose Pose) {
	for l.segments.len() >= l.cfg.MaxSegments {
		l.retireFront()
	}
	seg := Collider(from, pose, l.cfg)
	seg.ID = l.opts.NextID()
	seg.Owner = l.owner
	seg.SpawnTick = l.tick
	l.segments.push(seg)
	l.events = append(l.events, Event{Kind: EventSpawned, Segment: seg})
}

func (l *Ledger) retireFront() {
	seg := l.segments.popFront()
	if l.opts.Authoritative {
		l.events = append(l.events, Event{Kind: EventRetired, Segment: seg})
	}
}

func (l *Ledger) expire(tick uint64) {
	if l.cfg.SegmentLifetime == 0 || !l.opts.Authoritative {
		return
	}
	for l.segments.len() > 0 && l.segments.at(0).SpawnTick+l.cfg.SegmentLifetime <= tick {
		l.retireFront()
	}
}

// CrossSection computes the four anchors of a trail cross-section at the
// emitter pose: bottom corners straddle the emitter along the local right
// axis and the top corners sit height above them along the local up axis.
func CrossSection(pose Pose, width, height float64) core.TrailPoint {
	rot := pose.Rotation
	if rot.Len() < geo.Epsilon {
		rot = mgl64.QuatIdent()
	}
	right := rot.Rotate(core.LocalRight).Mul(width / 2)
	up := rot.Rotate(core.WorldUp).Mul(height)
	bl := pose.Position.Sub(right)
	br := pose.Position.Add(right)
	return core.TrailPoint{
		Emitter:     pose.Position,
		BottomLeft:  bl,
		BottomRight: br,
		TopLeft:     bl.Add(up),
		TopRight:    br.Add(up),
	}
}

// Collider builds the box spanning from to pose.Position, lifted half its
// height along the emitter's up axis and capped at 1.5 segment lengths.
func Collider(from mgl64.Vec3, pose Pose, cfg Config) core.TrailColliderSegment {
	rot := pose.Rotation
	if rot.Len() < geo.Epsilon {
		rot = mgl64.QuatIdent()
	}
	up := rot.Rotate(core.WorldUp)
	to := pose.Position
	delta := to.Sub(from)
	dist := delta.Len()
	length := math.Min(cfg.SegmentLength*1.5, dist)
	center := from.Add(to).Mul(0.5).Add(up.Mul(cfg.Height / 2))
	return core.TrailColliderSegment{
		Start:       from,
		End:         to,
		Center:      center,
		Rotation:    geo.LookRotation(geo.SafeNormalize(delta, rot.Rotate(core.LocalForward)), up),
		HalfExtents: mgl64.Vec3{cfg.ColliderWidth / 2, cfg.Height / 2, length / 2},
	}
}
