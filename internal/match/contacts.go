package match

import "github.com/phaseline/lightcycle/pkg/core"

type contactKind uint8

const (
	contactWall contactKind = iota
	contactTrail
	contactHull
)

// contactKey names one touching pair. For hull pairs a < b.
type contactKey struct {
	kind  contactKind
	hull  core.HullID
	other uint32
}

// overlapTracker turns per-tick overlap tests into begin events. A pair
// that touched on the previous tick does not begin again until it has
// separated for at least one tick.
type overlapTracker struct {
	prev map[contactKey]struct{}
	cur  map[contactKey]struct{}
}

func newOverlapTracker() *overlapTracker {
	return &overlapTracker{
		prev: make(map[contactKey]struct{}),
		cur:  make(map[contactKey]struct{}),
	}
}

// touch records k for this tick and reports whether it just began.
func (t *overlapTracker) touch(k contactKey) bool {
	t.cur[k] = struct{}{}
	_, was := t.prev[k]
	return !was
}

// flush ends the tick.
func (t *overlapTracker) flush() {
	t.prev, t.cur = t.cur, t.prev
	clear(t.cur)
}

// forget drops every pair involving hull.
func (t *overlapTracker) forget(hull core.HullID) {
	for k := range t.prev {
		if k.hull == hull || (k.kind == contactHull && core.HullID(k.other) == hull) {
			delete(t.prev, k)
		}
	}
}

func wallKey(hull core.HullID, box int) contactKey {
	return contactKey{kind: contactWall, hull: hull, other: uint32(box)}
}

func trailKey(hull core.HullID, seg core.SegmentID) contactKey {
	return contactKey{kind: contactTrail, hull: hull, other: uint32(seg)}
}

func hullKey(a, b core.HullID) contactKey {
	if b < a {
		a, b = b, a
	}
	return contactKey{kind: contactHull, hull: a, other: uint32(b)}
}
