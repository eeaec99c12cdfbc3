package cache

import (
	"sync"
	"testing"

	"github.com/phaseline/lightcycle/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerIndex_Segments(t *testing.T) {
	idx := NewOwnerIndex()
	idx.AddSegment(10, 1)
	idx.AddSegment(11, 2)

	owner, ok := idx.SegmentOwner(10)
	require.True(t, ok)
	assert.Equal(t, core.VehicleID(1), owner)

	idx.RemoveSegment(10)
	_, ok = idx.SegmentOwner(10)
	assert.False(t, ok)
	assert.Equal(t, 1, idx.SegmentCount())
}

func TestOwnerIndex_RemoveOwner(t *testing.T) {
	idx := NewOwnerIndex()
	idx.SetHull(1, 1)
	idx.SetHull(2, 2)
	idx.AddSegment(10, 1)
	idx.AddSegment(11, 1)
	idx.AddSegment(12, 2)

	idx.RemoveOwner(1)

	_, ok := idx.HullOwner(1)
	assert.False(t, ok)
	owner, ok := idx.HullOwner(2)
	require.True(t, ok)
	assert.Equal(t, core.VehicleID(2), owner)
	assert.Equal(t, 1, idx.SegmentCount())
}

func TestOwnerIndex_Reset(t *testing.T) {
	idx := NewOwnerIndex()
	idx.SetHull(1, 1)
	idx.AddSegment(10, 1)
	idx.Reset()

	_, ok := idx.HullOwner(1)
	assert.False(t, ok)
	assert.Zero(t, idx.SegmentCount())
}

func TestOwnerIndex_ConcurrentAccess(t *testing.T) {
	idx := NewOwnerIndex()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			idx.AddSegment(core.SegmentID(id), core.VehicleID(id%4))
		}(i)
		go func(id int) {
			defer wg.Done()
			idx.SegmentOwner(core.SegmentID(id))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, idx.SegmentCount())
}
