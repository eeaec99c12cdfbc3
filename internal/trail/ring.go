package trail

// ring is a growable FIFO with O(1) push and pop at the ends.
type ring[T any] struct {
	buf  []T
	head int
	n    int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) len() int { return r.n }

func (r *ring[T]) at(i int) T { return r.buf[(r.head+i)%len(r.buf)] }

func (r *ring[T]) ptr(i int) *T { return &r.buf[(r.head+i)%len(r.buf)] }

func (r *ring[T]) push(v T) {
	if r.n == len(r.buf) {
		r.grow()
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
}

func (r *ring[T]) popFront() T {
	var zero T
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	return v
}

// removeAt deletes element i, shifting later elements forward.
func (r *ring[T]) removeAt(i int) T {
	if i == 0 {
		return r.popFront()
	}
	v := r.at(i)
	for j := i; j < r.n-1; j++ {
		*r.ptr(j) = r.at(j + 1)
	}
	var zero T
	*r.ptr(r.n - 1) = zero
	r.n--
	return v
}

func (r *ring[T]) last() *T {
	if r.n == 0 {
		return nil
	}
	return r.ptr(r.n - 1)
}

func (r *ring[T]) clear() {
	clear(r.buf)
	r.head, r.n = 0, 0
}

func (r *ring[T]) slice() []T {
	out := make([]T, r.n)
	for i := range out {
		out[i] = r.at(i)
	}
	return out
}

func (r *ring[T]) grow() {
	next := make([]T, len(r.buf)*2)
	for i := 0; i < r.n; i++ {
		next[i] = r.at(i)
	}
	r.buf, r.head = next, 0
}
