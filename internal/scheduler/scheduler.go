// Package scheduler drives code regeneration. One shared timer per distinct
// step length fires at wall-clock step boundaries; a separate higher-rate
// tick advances countdown indicators between boundaries without ever
// touching code values.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlukins/keyfob/internal/logging"
)

// Firing tells the consumer to regenerate codes for IDs at time At.
type Firing struct {
	Step uint
	IDs  []uuid.UUID
	At   time.Time
}

// Scheduler fans timer firings out to subscribed entries. Subscriptions
// live exactly as long as their entry is present: removing the entry or
// locking the vault unsubscribes it, no separate cancellation signal exists.
type Scheduler struct {
	frame time.Duration
	log   logging.Logger

	firings chan Firing
	ticks   chan time.Time
	done    chan struct{}

	mu       sync.Mutex
	subs     map[uint]map[uuid.UUID]struct{}
	stops    map[uint]chan struct{}
	tickStop chan struct{}
	closed   bool

	wg  sync.WaitGroup
	now func() time.Time // test seam
}

func New(frame time.Duration, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewDiscard()
	}
	return &Scheduler{
		frame:   frame,
		log:     log.With("component", "scheduler"),
		firings: make(chan Firing, 16),
		ticks:   make(chan time.Time, 4),
		done:    make(chan struct{}),
		subs:    make(map[uint]map[uuid.UUID]struct{}),
		stops:   make(map[uint]chan struct{}),
		now:     time.Now,
	}
}

// Firings delivers boundary firings plus one synthetic immediate firing per
// new subscription.
func (s *Scheduler) Firings() <-chan Firing { return s.firings }

// Ticks delivers animation frames while at least one subscription exists.
// Frames are dropped, never queued, when the consumer lags.
func (s *Scheduler) Ticks() <-chan time.Time { return s.ticks }

// Subscribe registers id against the shared timer for step, starting the
// timer if this is the first subscriber for that step length. A synthetic
// firing carrying the current time is emitted immediately so the entry is
// never displayed with an uninitialized code.
func (s *Scheduler) Subscribe(id uuid.UUID, step uint) {
	if step == 0 {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	set, ok := s.subs[step]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.subs[step] = set
		stop := make(chan struct{})
		s.stops[step] = stop
		s.wg.Add(1)
		go s.runStep(step, stop)
	}
	set[id] = struct{}{}

	if s.tickStop == nil {
		s.tickStop = make(chan struct{})
		s.wg.Add(1)
		go s.runTick(s.tickStop)
	}

	at := s.now()
	// Counted while still holding mu: a concurrent Close cannot reach
	// wg.Wait between the unlock and the Add.
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.emit(Firing{Step: step, IDs: []uuid.UUID{id}, At: at})
	}()
}

// Unsubscribe removes id from every step timer, stopping timers that lose
// their last subscriber.
func (s *Scheduler) Unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for step, set := range s.subs {
		if _, ok := set[id]; !ok {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			close(s.stops[step])
			delete(s.stops, step)
			delete(s.subs, step)
		}
	}
	s.stopTickIfIdleLocked()
}

// UnsubscribeAll drops every subscription, e.g. when the vault locks.
func (s *Scheduler) UnsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for step := range s.stops {
		close(s.stops[step])
	}
	s.stops = make(map[uint]chan struct{})
	s.subs = make(map[uint]map[uuid.UUID]struct{})
	s.stopTickIfIdleLocked()
}

// Close stops all timers and goroutines. The scheduler cannot be reused.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for step := range s.stops {
		close(s.stops[step])
	}
	s.stops = make(map[uint]chan struct{})
	s.subs = make(map[uint]map[uuid.UUID]struct{})
	s.stopTickIfIdleLocked()
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

func (s *Scheduler) stopTickIfIdleLocked() {
	if len(s.subs) == 0 && s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}

func (s *Scheduler) emit(f Firing) {
	select {
	case s.firings <- f:
	case <-s.done:
	}
}

// runStep fires at wall-clock boundaries of the step window. The delay is
// recomputed from the clock after every firing, so jitter in timer delivery
// cannot accumulate into drift.
func (s *Scheduler) runStep(step uint, stop chan struct{}) {
	defer s.wg.Done()
	for {
		timer := time.NewTimer(boundaryDelay(s.now(), step))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-s.done:
			timer.Stop()
			return
		case at := <-timer.C:
			s.mu.Lock()
			ids := make([]uuid.UUID, 0, len(s.subs[step]))
			for id := range s.subs[step] {
				ids = append(ids, id)
			}
			s.mu.Unlock()

			if len(ids) > 0 {
				s.log.Debug(context.Background(), "step boundary", "step", step, "entries", len(ids))
				s.emit(Firing{Step: step, IDs: ids, At: at})
			}
		}
	}
}

func (s *Scheduler) runTick(stop chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.frame)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-s.done:
			return
		case at := <-ticker.C:
			select {
			case s.ticks <- at:
			default:
			}
		}
	}
}

// boundaryDelay returns the time until the next unix step boundary strictly
// after now. Boundaries are anchored to unix time, matching the counter the
// generator uses.
func boundaryDelay(now time.Time, step uint) time.Duration {
	window := time.Duration(step) * time.Second
	elapsed := time.Duration(now.UnixNano()) % window
	return window - elapsed
}
