// Package scheduler runs deferred actions on simulation ticks. Each task
// has a key; scheduling a key that is already pending replaces it, so a
// re-triggered respawn or buff expiry never stacks.
package scheduler

import (
	"container/heap"
	"sync"
)

// Task runs on the tick it was scheduled for.
type Task func(tick uint64)

type entry struct {
	key   string
	due   uint64
	seq   uint64
	task  Task
	index int
}

type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Scheduler is safe for concurrent use. Tasks run on the goroutine
// calling RunDue, without the scheduler's lock held, so a task may
// schedule or cancel other tasks.
type Scheduler struct {
	mu      sync.Mutex
	pending queue
	byKey   map[string]*entry
	seq     uint64
}

func New() *Scheduler {
	return &Scheduler{byKey: make(map[string]*entry)}
}

// Schedule runs task at tick due, replacing any pending task with the same key.
func (s *Scheduler) Schedule(key string, due uint64, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if e, ok := s.byKey[key]; ok {
		e.due, e.seq, e.task = due, s.seq, task
		heap.Fix(&s.pending, e.index)
		return
	}
	e := &entry{key: key, due: due, seq: s.seq, task: task}
	heap.Push(&s.pending, e)
	s.byKey[key] = e
}

// Cancel drops the pending task for key. Returns false if none was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byKey[key]
	if !ok {
		return false
	}
	heap.Remove(&s.pending, e.index)
	delete(s.byKey, key)
	return true
}

// Pending reports whether key has a task waiting and when it is due.
func (s *Scheduler) Pending(key string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byKey[key]
	if !ok {
		return 0, false
	}
	return e.due, true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// RunDue runs every task due at or before tick in due order and returns
// how many ran.
func (s *Scheduler) RunDue(tick uint64) int {
	ran := 0
	for {
		e := s.popDue(tick)
		if e == nil {
			return ran
		}
		e.task(tick)
		ran++
	}
}

func (s *Scheduler) popDue(tick uint64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 || s.pending[0].due > tick {
		return nil
	}
	e := heap.Pop(&s.pending).(*entry)
	delete(s.byKey, e.key)
	return e
}
