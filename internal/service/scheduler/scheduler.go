// Package scheduler is the cooperative, single-threaded timer wheel a scene runs on.
// Nothing here is safe for concurrent use; the owning loop is the only caller.
package scheduler

import (
	"sort"
	"time"
)

// Timer is a cancellable deferred callback.
type Timer struct {
	due       time.Duration
	seq       uint64
	fn        func()
	cancelled bool
	fired     bool
}

// Cancel prevents the callback from running. It reports whether the timer was
// still pending.
func (t *Timer) Cancel() bool {
	if t == nil || t.cancelled || t.fired {
		return false
	}
	t.cancelled = true
	return true
}

// Pending reports whether the timer will still fire.
func (t *Timer) Pending() bool {
	return t != nil && !t.cancelled && !t.fired
}

// Scheduler advances a virtual clock and fires due timers in due order.
type Scheduler struct {
	now    time.Duration
	seq    uint64
	timers []*Timer
}

// New returns a scheduler whose clock starts at zero.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the total time advanced so far.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// After schedules fn to run once delay has elapsed. Negative delays count as zero.
func (s *Scheduler) After(delay time.Duration, fn func()) *Timer {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	t := &Timer{due: s.now + delay, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward by dt, running every timer that falls due,
// including timers scheduled by callbacks within the same window.
func (s *Scheduler) Advance(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	end := s.now + dt
	for {
		t := s.popDue(end)
		if t == nil {
			break
		}
		if t.due > s.now {
			s.now = t.due
		}
		t.fired = true
		t.fn()
	}
	s.now = end
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	s.compact()
	return len(s.timers)
}

func (s *Scheduler) popDue(end time.Duration) *Timer {
	s.compact()
	if len(s.timers) == 0 {
		return nil
	}
	sort.SliceStable(s.timers, func(i, j int) bool {
		if s.timers[i].due == s.timers[j].due {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].due < s.timers[j].due
	})
	head := s.timers[0]
	if head.due > end {
		return nil
	}
	s.timers = s.timers[1:]
	return head
}

func (s *Scheduler) compact() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.cancelled && !t.fired {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.timers); i++ {
		s.timers[i] = nil
	}
	s.timers = live
}
