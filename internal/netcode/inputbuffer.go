package netcode

import "github.com/phaseline/lightcycle/pkg/core"

// DefaultInputCapacity covers a little over four seconds at 60 Hz.
const DefaultInputCapacity = 256

type inputSlot struct {
	input core.TickInput
	valid bool
}

// InputBuffer is a fixed-size ring of inputs keyed by tick. Recording a
// tick evicts whatever occupied its slot capacity ticks earlier.
type InputBuffer struct {
	slots []inputSlot
}

// NewInputBuffer creates a buffer holding up to capacity ticks.
func NewInputBuffer(capacity int) *InputBuffer {
	if capacity <= 0 {
		capacity = DefaultInputCapacity
	}
	return &InputBuffer{slots: make([]inputSlot, capacity)}
}

func (b *InputBuffer) slot(tick uint64) *inputSlot {
	return &b.slots[tick%uint64(len(b.slots))]
}

// Record stores in under its own tick.
func (b *InputBuffer) Record(in core.TickInput) {
	*b.slot(in.Tick) = inputSlot{input: in, valid: true}
}

// Get returns the input recorded for tick, if still held.
func (b *InputBuffer) Get(tick uint64) (core.TickInput, bool) {
	s := b.slot(tick)
	if !s.valid || s.input.Tick != tick {
		return core.TickInput{}, false
	}
	return s.input, true
}

// DropThrough forgets every input at or before tick.
func (b *InputBuffer) DropThrough(tick uint64) {
	for i := range b.slots {
		if b.slots[i].valid && b.slots[i].input.Tick <= tick {
			b.slots[i] = inputSlot{}
		}
	}
}

// Reset forgets everything.
func (b *InputBuffer) Reset() {
	clear(b.slots)
}

// Len returns the number of held inputs.
func (b *InputBuffer) Len() int {
	n := 0
	for _, s := range b.slots {
		if s.valid {
			n++
		}
	}
	return n
}

// Capacity returns the number of slots.
func (b *InputBuffer) Capacity() int { return len(b.slots) }
