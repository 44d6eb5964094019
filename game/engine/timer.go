package engine

// Timer is a cancellable one-shot callback on simulation time
type Timer struct {
	due      float64
	seq      uint64
	fn       func()
	canceled bool
	fired    bool
}

// Cancel prevents the timer from firing. Safe to call more than once.
func (t *Timer) Cancel() {
	if t != nil {
		t.canceled = true
	}
}

// Pending reports whether the timer will still fire
func (t *Timer) Pending() bool {
	return t != nil && !t.canceled && !t.fired
}

// Scheduler runs one-shot timers against simulation time. Time only moves
// when the loop advances it, so paused simulations do not fire timers and
// callbacks always run on the loop's goroutine.
type Scheduler struct {
	now    float64
	seq    uint64
	timers []*Timer
}

// NewScheduler creates a scheduler at time zero
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the current simulation time in seconds
func (s *Scheduler) Now() float64 { return s.now }

// After schedules fn to run once, delay seconds from now
func (s *Scheduler) After(delay float64, fn func()) *Timer {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	t := &Timer{due: s.now + delay, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves time forward and fires every due timer in due order.
// Timers scheduled by a callback for a time already reached fire in the same call.
func (s *Scheduler) Advance(dt float64) int {
	if dt > 0 {
		s.now += dt
	}
	fired := 0
	for {
		next := s.nextDue()
		if next == nil {
			break
		}
		next.fired = true
		next.fn()
		fired++
	}
	s.compact()
	return fired
}

func (s *Scheduler) nextDue() *Timer {
	var best *Timer
	for _, t := range s.timers {
		if !t.Pending() || t.due > s.now {
			continue
		}
		if best == nil || t.due < best.due || (t.due == best.due && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (s *Scheduler) compact() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if t.Pending() {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.timers); i++ {
		s.timers[i] = nil
	}
	s.timers = live
}

// CancelAll cancels every pending timer
func (s *Scheduler) CancelAll() {
	for _, t := range s.timers {
		t.Cancel()
	}
	s.timers = nil
}

// PendingCount returns the number of timers still waiting to fire
func (s *Scheduler) PendingCount() int {
	n := 0
	for _, t := range s.timers {
		if t.Pending() {
			n++
		}
	}
	return n
}
