//go:build !debug

package channel

// New returns the mailbox used for per-peer outbound frames: a buffered
// channel holding up to size frames.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
