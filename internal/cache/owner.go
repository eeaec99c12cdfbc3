package cache

import (
	"sync"

	"github.com/phaseline/lightcycle/pkg/core"
)

// OwnerIndex resolves trail segments and hulls to the vehicle that owns
// them. The judge reads it on every overlap, so lookups take a read lock.
type OwnerIndex struct {
	mu       sync.RWMutex
	segments map[core.SegmentID]core.VehicleID
	hulls    map[core.HullID]core.VehicleID
}

func NewOwnerIndex() *OwnerIndex {
	return &OwnerIndex{
		segments: make(map[core.SegmentID]core.VehicleID),
		hulls:    make(map[core.HullID]core.VehicleID),
	}
}

func (c *OwnerIndex) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segments = make(map[core.SegmentID]core.VehicleID)
	c.hulls = make(map[core.HullID]core.VehicleID)
}

func (c *OwnerIndex) AddSegment(id core.SegmentID, owner core.VehicleID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segments[id] = owner
}

func (c *OwnerIndex) RemoveSegment(id core.SegmentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.segments, id)
}

func (c *OwnerIndex) SegmentOwner(id core.SegmentID) (core.VehicleID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.segments[id]
	return v, ok
}

func (c *OwnerIndex) SetHull(id core.HullID, owner core.VehicleID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hulls[id] = owner
}

func (c *OwnerIndex) HullOwner(id core.HullID) (core.VehicleID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.hulls[id]
	return v, ok
}

// RemoveOwner drops the owner's hull and every segment it owns.
func (c *OwnerIndex) RemoveOwner(owner core.VehicleID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, o := range c.segments {
		if o == owner {
			delete(c.segments, id)
		}
	}
	for id, o := range c.hulls {
		if o == owner {
			delete(c.hulls, id)
		}
	}
}

// SegmentCount returns the number of indexed segments.
func (c *OwnerIndex) SegmentCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.segments)
}
