// Package scheduler is the single-threaded cooperative tick source the
// proximity ticker and the converge animator share. Every callback runs on the
// goroutine that drives the scheduler (Run, or Advance for a manual clock), so
// callbacks never need locks between themselves.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrManualClock is returned by Run on a scheduler created with NewManual
var ErrManualClock = errors.New("scheduler: manual clock must be driven with Advance")

// ErrRunning is returned when Run is called twice concurrently
var ErrRunning = errors.New("scheduler: already running")

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Scheduler multiplexes timers and posted closures onto one goroutine
type Scheduler struct {
	clock   clock
	manual  *manualClock
	mu      sync.Mutex
	queue   timerQueue
	seq     uint64
	posted  []func()
	wake    chan struct{}
	running atomic.Bool
}

// New returns a scheduler on the wall clock. Callbacks run inside Run.
func New() *Scheduler {
	return &Scheduler{
		clock: realClock{},
		wake:  make(chan struct{}, 1),
	}
}

// NewManual returns a scheduler on a virtual clock starting at start.
// Callbacks run inside Advance.
func NewManual(start time.Time) *Scheduler {
	mc := &manualClock{now: start}
	return &Scheduler{
		clock:  mc,
		manual: mc,
		wake:   make(chan struct{}, 1),
	}
}

// Now returns the scheduler's current time
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Every calls fn every d, first at Now()+d. d must be positive.
func (s *Scheduler) Every(d time.Duration, fn func()) *Timer {
	if d <= 0 {
		panic("scheduler: non-positive interval for Every")
	}
	return s.schedule(d, d, fn)
}

// After calls fn once, d from now
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	return s.schedule(d, 0, fn)
}

func (s *Scheduler) schedule(delay, period time.Duration, fn func()) *Timer {
	t := &Timer{s: s, period: period, fn: fn, index: -1}
	s.mu.Lock()
	s.seq++
	t.seq = s.seq
	t.when = s.clock.Now().Add(delay)
	heap.Push(&s.queue, t)
	s.mu.Unlock()
	s.notify()
	return t
}

// Post queues fn to run on the scheduler goroutine. Safe from any goroutine.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
	s.notify()
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued timers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run executes callbacks until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	if s.manual != nil {
		return ErrManualClock
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)

	wait := time.NewTimer(time.Hour)
	defer wait.Stop()

	for {
		s.runPosted()
		s.fireDue(s.clock.Now())

		delay := time.Hour
		s.mu.Lock()
		if len(s.posted) > 0 {
			delay = 0
		} else if len(s.queue) > 0 {
			delay = s.queue[0].when.Sub(s.clock.Now())
		}
		s.mu.Unlock()

		if delay <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}

		wait.Reset(delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		case <-wait.C:
		}
	}
}

// Advance moves a manual clock forward by d, firing every timer that comes
// due on the way at its own deadline. Posted closures run first.
func (s *Scheduler) Advance(d time.Duration) {
	if s.manual == nil {
		panic("scheduler: Advance on a wall-clock scheduler")
	}
	target := s.manual.Now().Add(d)
	for {
		s.runPosted()

		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].when.After(target) {
			s.mu.Unlock()
			break
		}
		next := s.queue[0].when
		s.mu.Unlock()

		if next.After(s.manual.Now()) {
			s.manual.set(next)
		}
		s.fireDue(s.manual.Now())
	}
	s.manual.set(target)
	s.runPosted()
}

func (s *Scheduler) runPosted() {
	for {
		s.mu.Lock()
		if len(s.posted) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.posted
		s.posted = nil
		s.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}

// fireDue runs every timer due at or before now, earliest first. Periodic
// timers are requeued before their callback runs so the callback may stop
// or retune them.
func (s *Scheduler) fireDue(now time.Time) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].when.After(now) {
			s.mu.Unlock()
			return
		}
		t := heap.Pop(&s.queue).(*Timer)
		if t.period > 0 {
			next := t.when.Add(t.period)
			if !next.After(now) {
				missed := now.Sub(t.when) / t.period
				next = t.when.Add((missed + 1) * t.period)
			}
			t.when = next
			heap.Push(&s.queue, t)
		} else {
			t.done = true
		}
		t.fires++
		fn := t.fn
		s.mu.Unlock()

		fn()
	}
}

// Timer is a scheduled callback
type Timer struct {
	s      *Scheduler
	when   time.Time
	period time.Duration
	fn     func()
	seq    uint64
	index  int
	fires  int
	done   bool
}

// Stop cancels the timer. Stopping twice is a no-op.
func (t *Timer) Stop() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.index >= 0 {
		heap.Remove(&t.s.queue, t.index)
	}
	t.done = true
}

// Active reports whether the timer is still queued
func (t *Timer) Active() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return !t.done
}

// SetInterval changes a periodic timer's period. The already scheduled fire
// keeps its deadline; the new period applies from the one after it.
func (t *Timer) SetInterval(d time.Duration) {
	if d <= 0 {
		panic("scheduler: non-positive interval")
	}
	t.s.mu.Lock()
	t.period = d
	t.s.mu.Unlock()
}

// Interval returns the timer's period (0 for one-shot timers)
func (t *Timer) Interval() time.Duration {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.period
}

// Next returns the next deadline
func (t *Timer) Next() time.Time {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.when
}

// Fires returns how many times the callback has been invoked
func (t *Timer) Fires() int {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.fires
}

type timerQueue []*Timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*Timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
