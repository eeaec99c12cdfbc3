//go:build debug

package channel

// New ignores size in debug builds. With an unbuffered mailbox TrySend
// only succeeds while the receiver is waiting, which surfaces slow
// consumers immediately.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
