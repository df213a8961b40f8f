package query

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/liveQ/lib/stream"
	"github.com/google/uuid"
)

// Subscription is a live, caller-facing handle bound to one operation and
// one result shape.
//
// A fresh subscription has no result yet; it becomes active on the first
// outcome it observes and from then on Latest returns the most recently
// observed outcome. Outcomes are consumed from the channel returned by C.
//
// The subscription holds one reference on the shared operation state for
// its whole lifetime; Close releases it. Close is safe to call multiple
// times and must be called to avoid leaking the reference.
type Subscription struct {
	ID uuid.UUID

	state   *queryState
	shape   IShape
	sub     *stream.Subscriber[Outcome]
	release func()

	out       chan *Outcome
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	last *Outcome

	reloadDirty  atomic.Bool
	reloadActive atomic.Bool
}

func newSubscription(state *queryState, shape IShape, release func()) *Subscription {
	s := &Subscription{
		ID:      uuid.New(),
		state:   state,
		shape:   shape,
		sub:     state.subscribe(shape),
		release: release,
		out:     make(chan *Outcome),
		done:    make(chan struct{}),
	}

	go s.pump()
	return s
}

// pump forwards outcomes from the binding stream to the caller, recording
// each observed outcome as the latest. The binding side never blocks on
// this loop (its queue buffers), so a slow caller only delays itself.
func (s *Subscription) pump() {
	defer close(s.out)

	for outcome := range s.sub.C() {
		s.mu.Lock()
		s.last = outcome
		s.mu.Unlock()

		select {
		case s.out <- outcome:
		case <-s.done:
			return
		}
	}
}

// C returns the channel outcomes are received on. It is closed after Close.
func (s *Subscription) C() <-chan *Outcome {
	return s.out
}

// Latest returns the most recently observed outcome, or nil if the
// subscription has not observed one yet.
func (s *Subscription) Latest() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Reload schedules a fresh execution of the bound operation. It is
// fire-and-forget: the result arrives through the subscription's normal
// stream (and every other observer's), never as a direct return value, so
// there is no ambiguity about which of several concurrent reloads a result
// answers.
//
// Reload may be called arbitrarily often and concurrently. Triggers are
// coalesced: at most one reload worker runs per subscription, and triggers
// that arrive while it is busy collapse into its next round, which itself
// coalesces with whatever execution is already in flight.
func (s *Subscription) Reload() {
	s.reloadDirty.Store(true)
	if s.reloadActive.CompareAndSwap(false, true) {
		go s.reloadWorker()
	}
}

func (s *Subscription) reloadWorker() {
	for s.reloadDirty.CompareAndSwap(true, false) {
		if s.isClosed() {
			break
		}
		if _, err := s.state.run(context.Background(), s.shape); err != nil {
			// the error also reached the outcome stream; log only
			Logger.Debugf("Reload of %s (subscription %s) failed: %v", s.state.key, s.ID, err)
		}
	}

	s.reloadActive.Store(false)

	// a trigger may have landed between the last dirty check and the
	// flag reset; pick it up instead of dropping it
	if s.reloadDirty.Load() && s.reloadActive.CompareAndSwap(false, true) {
		go s.reloadWorker()
	}
}

// Close detaches the subscription and releases its reference on the shared
// operation state. Buffered outcomes are discarded. Safe to call multiple
// times.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sub.Cancel()
		s.release()
	})
}

func (s *Subscription) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
