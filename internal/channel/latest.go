package channel

import "sync"

// LatestWins is a single-slot mailbox for unreliable-but-timely delivery.
// Offering a value replaces the held one only when newer reports it
// supersedes it; Take empties the slot.
type LatestWins[T any] struct {
	mu    sync.Mutex
	val   T
	full  bool
	newer func(candidate, held T) bool
	ready chan struct{}
}

// NewLatestWins creates an empty mailbox ordered by newer.
func NewLatestWins[T any](newer func(candidate, held T) bool) *LatestWins[T] {
	return &LatestWins[T]{newer: newer, ready: make(chan struct{}, 1)}
}

// Offer stores v if the slot is empty or v supersedes the held value.
// It reports whether v was kept. Offer never blocks.
func (l *LatestWins[T]) Offer(v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full && !l.newer(v, l.val) {
		return false
	}
	l.val, l.full = v, true
	select {
	case l.ready <- struct{}{}:
	default:
	}
	return true
}

// Take removes and returns the held value.
func (l *LatestWins[T]) Take() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.val, l.full
	var zero T
	l.val, l.full = zero, false
	return v, ok
}

// Peek returns the held value without removing it.
func (l *LatestWins[T]) Peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.val, l.full
}

// Ready is signalled after a successful Offer. It may fire spuriously.
func (l *LatestWins[T]) Ready() <-chan struct{} {
	return l.ready
}
