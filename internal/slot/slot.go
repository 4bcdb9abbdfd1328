package slot

import (
	"sync"
	"sync/atomic"
	"time"
)

// Slot is a single-slot, latest-wins frame buffer.
// A Push always overwrites any frame that has not been taken yet; nothing is queued.
// Frames are referenced, not copied: the caller keeps ownership of the memory.
//
// The push time and the counters are atomics so they can be read while a
// send holds the lock.
type Slot struct {
	mu      sync.Mutex
	cond    *sync.Cond
	frame   []byte
	pending atomic.Bool // written under mu

	base     time.Time    // carries the monotonic reading push times are measured against
	lastPush atomic.Int64 // nanos since base plus one, 0 before the first push
	pushed   atomic.Uint64
	dropped  atomic.Uint64 // pushes that replaced an untaken frame
	taken    atomic.Uint64
}

// Stats is a snapshot of slot counters.
type Stats struct {
	Pushed   uint64    `json:"pushed"`
	Dropped  uint64    `json:"dropped"`
	Taken    uint64    `json:"taken"`
	Pending  bool      `json:"pending"`
	LastPush time.Time `json:"lastPush"`
}

// New creates an empty slot with no push recorded.
func New() *Slot {
	s := &Slot{base: time.Now()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Push replaces the pending frame, records the push time and wakes a waiting consumer.
// It reports whether an untaken frame was overwritten.
func (s *Slot) Push(frame []byte) bool {
	s.mu.Lock()
	dropped := s.pending.Load()
	if dropped {
		s.dropped.Add(1)
	}
	s.frame = frame
	s.pending.Store(true)
	s.lastPush.Store(int64(time.Since(s.base)) + 1)
	s.pushed.Add(1)
	s.mu.Unlock()

	s.cond.Signal()
	return dropped
}

// Deliver blocks until a frame is pending or stopped reports true, then moves the
// frame out of the slot and passes it to fn.
//
// With hold set, fn runs before the slot lock is released, so a concurrent Push
// waits until fn returns. Without it the lock is dropped first.
//
// stopped is evaluated with the slot lock held; callers flipping the condition
// must call Wake afterwards. Deliver returns false if it gave up because of stopped.
func (s *Slot) Deliver(stopped func() bool, hold bool, fn func(frame []byte) error) (bool, error) {
	s.mu.Lock()
	for !s.pending.Load() && !stopped() {
		s.cond.Wait()
	}
	if stopped() {
		s.mu.Unlock()
		return false, nil
	}

	frame := s.frame
	s.frame = nil
	s.pending.Store(false)
	s.taken.Add(1)

	if hold {
		defer s.mu.Unlock()
		return true, fn(frame)
	}
	s.mu.Unlock()
	return true, fn(frame)
}

// Wake unblocks every goroutine waiting in Deliver so it re-evaluates its stop condition.
func (s *Slot) Wake() {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Clear drops the pending frame reference without counting it as taken.
// The last push time is kept.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.frame = nil
	s.pending.Store(false)
	s.mu.Unlock()
}

// LastPush returns the time of the most recent push, or the zero time if there was none.
// The result carries a monotonic clock reading, so durations measured from it
// are unaffected by wall clock steps.
func (s *Slot) LastPush() time.Time {
	n := s.lastPush.Load()
	if n == 0 {
		return time.Time{}
	}
	return s.base.Add(time.Duration(n - 1))
}

// Stats returns a snapshot of the slot counters.
// The fields are read individually and may be mutually inconsistent by one push.
func (s *Slot) Stats() Stats {
	return Stats{
		Pushed:   s.pushed.Load(),
		Dropped:  s.dropped.Load(),
		Taken:    s.taken.Load(),
		Pending:  s.pending.Load(),
		LastPush: s.LastPush(),
	}
}
