package channel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stamped struct {
	Tick  uint64
	Value string
}

func byTick(c, h stamped) bool { return c.Tick > h.Tick }

func TestLatestWins_KeepsNewest(t *testing.T) {
	mb := NewLatestWins(byTick)

	assert.True(t, mb.Offer(stamped{Tick: 5, Value: "a"}))
	assert.False(t, mb.Offer(stamped{Tick: 3, Value: "old"}))
	assert.False(t, mb.Offer(stamped{Tick: 5, Value: "dup"}))
	assert.True(t, mb.Offer(stamped{Tick: 9, Value: "b"}))

	v, ok := mb.Take()
	require.True(t, ok)
	assert.Equal(t, "b", v.Value)

	_, ok = mb.Take()
	assert.False(t, ok, "take empties the slot")
}

func TestLatestWins_AcceptsAnythingWhenEmpty(t *testing.T) {
	mb := NewLatestWins(byTick)
	mb.Offer(stamped{Tick: 10})
	mb.Take()

	assert.True(t, mb.Offer(stamped{Tick: 2}))
	v, ok := mb.Peek()
	require.True(t, ok)
	assert.Equal(t, uint64(2), v.Tick)
}

func TestLatestWins_ReadySignals(t *testing.T) {
	mb := NewLatestWins(byTick)
	mb.Offer(stamped{Tick: 1})
	mb.Offer(stamped{Tick: 2})

	select {
	case <-mb.Ready():
	default:
		t.Fatal("expected ready signal")
	}
}

func TestLatestWins_Concurrent(t *testing.T) {
	mb := NewLatestWins(byTick)
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(tick uint64) {
			defer wg.Done()
			mb.Offer(stamped{Tick: tick})
		}(uint64(i))
	}
	wg.Wait()

	v, ok := mb.Take()
	require.True(t, ok)
	assert.Equal(t, uint64(100), v.Tick)
}

func TestBuffered_TrySendWhenFull(t *testing.T) {
	b := NewBuffered[int](1)
	assert.True(t, b.TrySend(1))
	assert.False(t, b.TrySend(2))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, <-b.Receive())
}

func TestUnbuffered_TrySendWithoutReceiver(t *testing.T) {
	u := NewUnbuffered[int]()
	assert.False(t, u.TrySend(1))
	assert.Equal(t, 0, u.Len())
}
