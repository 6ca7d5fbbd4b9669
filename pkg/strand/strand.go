// Package strand implements the single-threaded cooperative execution
// context spec §5 requires: every manager state mutation — cursor,
// registry, client construction, timer arming, worker commands — runs
// here, in FIFO order, so no mutex is needed to guard manager state (the
// strand itself establishes total order). See DESIGN.md for why this is
// standard-library-only: no actor/strand library appears anywhere in the
// example pack.
package strand

import (
	"sync"
	"time"
)

// Strand serializes posted work onto a single goroutine.
type Strand struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	closed chan struct{}
}

// New starts a Strand's background goroutine. Callers must call Close
// when finished to release it.
func New() *Strand {
	s := &Strand{
		tasks:  make(chan func(), 64),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Strand) run() {
	defer close(s.closed)
	for {
		select {
		case fn := <-s.tasks:
			fn()
		case <-s.done:
			// Drain anything already queued before exiting, so a Post
			// immediately followed by Close doesn't silently drop work.
			for {
				select {
				case fn := <-s.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post enqueues fn to run on the strand, in FIFO order relative to every
// other Post/PostAndWait call. It does not block for fn to run.
func (s *Strand) Post(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.closed:
	}
}

// PostAndWait enqueues fn and blocks until it has run.
func (s *Strand) PostAndWait(fn func()) {
	wait := make(chan struct{})
	s.Post(func() {
		defer close(wait)
		fn()
	})
	select {
	case <-wait:
	case <-s.closed:
	}
}

// Close stops accepting new work once the queue drains and waits for the
// background goroutine to exit.
func (s *Strand) Close() {
	s.once.Do(func() { close(s.done) })
	<-s.closed
}

// Timer is a cancellable deadline scheduled onto a Strand: when it fires,
// its callback runs on the strand like any other posted task, so timer
// callbacks never race manager state mutations (spec §4.2 "All timer
// callbacks check the error result and bail if cancelled").
type Timer struct {
	s *Strand

	mu      sync.Mutex
	timer   *time.Timer
	armedID uint64
}

// NewTimer returns an unarmed Timer bound to s.
func NewTimer(s *Strand) *Timer {
	return &Timer{s: s}
}

// Arm schedules cb to run on the strand after d, cancelling any
// previously armed deadline on this Timer first.
func (t *Timer) Arm(d time.Duration, cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.armedID++
	id := t.armedID
	t.timer = time.AfterFunc(d, func() {
		t.s.Post(func() {
			t.mu.Lock()
			stillArmed := id == t.armedID
			t.mu.Unlock()
			if stillArmed {
				cb()
			}
			// A cancellation-before-fire path must simply do nothing
			// (spec §4.2): if stillArmed is false, we already did that.
		})
	})
}

// Cancel disarms the timer. A callback already posted to the strand but
// not yet observed as "stillArmed" above will no-op.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Timer) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.armedID++
}
