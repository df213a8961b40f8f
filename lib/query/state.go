package query

import (
	"context"
	"errors"
	"sync"

	"github.com/ValentinKolb/liveQ/lib/stream"
)

// execution is one remote round trip shared by all callers that joined it.
// The result fields are written exactly once, before done is closed.
type execution struct {
	done chan struct{}
	raw  []byte
	err  error
}

// queryState coordinates all concurrent callers of one (operation,
// variables) pair. It runs at most one remote call at a time, shares that
// call among every caller that arrives while it is running, and fans the
// outcome out to all registered shape bindings.
//
// States are owned by the coordinator's registry: they are created when the
// first caller acquires the key and torn down when the last one releases it.
type queryState struct {
	key      Key
	payload  []byte
	executor IExecutor
	metrics  *coordinatorMetrics

	mu       sync.Mutex
	inflight *execution
	bindings map[string]*shapeBinding
}

func newQueryState(key Key, payload []byte, executor IExecutor, m *coordinatorMetrics) *queryState {
	return &queryState{
		key:      key,
		payload:  payload,
		executor: executor,
		metrics:  m,
		bindings: make(map[string]*shapeBinding),
	}
}

// run executes the operation once for the calling goroutine, coalescing with
// other concurrent callers, and decodes the outcome with the caller's shape.
//
// The coalescing is two-phase:
//
//  1. If an execution is already in flight, wait for it to finish and
//     discard its outcome. It may have started before this caller and its
//     result could be stale from this caller's point of view.
//
//  2. Re-enter the critical section and look again. If another caller has
//     already started the next execution, join it; otherwise start it
//     ourselves. Either way, every caller of a given execution awaits the
//     same handle and decodes the shared raw result with its own shape.
//
// This guarantees that a caller arriving while a call runs joins it (one
// round trip, not two), and a caller arriving after a call completed gets a
// fresh one (never a stale result).
func (s *queryState) run(ctx context.Context, shape IShape) (any, error) {
	// phase 1: wait out the current execution, discarding its outcome
	s.mu.Lock()
	prior := s.inflight
	s.mu.Unlock()

	if prior != nil {
		select {
		case <-prior.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// phase 2: register the binding, then compete to start the next
	// execution. The inflight handle is cleared before done is closed, so
	// at this point it is either nil or an execution newer than prior -
	// a completed execution is never rejoined.
	s.mu.Lock()
	binding := s.bindingLocked(shape)
	cur := s.inflight
	if cur == nil {
		cur = &execution{done: make(chan struct{})}
		s.inflight = cur
		s.metrics.execStarted()
		go s.perform(cur)
	} else {
		s.metrics.execJoined()
	}
	s.mu.Unlock()

	select {
	case <-cur.done:
	case <-ctx.Done():
		// detach this caller only; the execution keeps running for the
		// others and its outcome still reaches the bindings
		return nil, ctx.Err()
	}

	if cur.err != nil {
		return nil, cur.err
	}
	return binding.decodeFor(s.key, cur.raw)
}

// perform runs the remote call for e and distributes the outcome. It runs
// detached from any caller context: a caller cancelling its await must not
// cancel the round trip other callers are still waiting for.
func (s *queryState) perform(e *execution) {
	raw, err := s.executor.PerformOperation(context.Background(), s.key.Name, s.payload)
	if err != nil {
		s.metrics.transportFailed()
		Logger.Warningf("Execution of %s failed: %v", s.key, err)

		// ensure the error carries the transport kind, unless the executor
		// already classified it
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Operation: s.key.Name, Err: err}
		}
	}

	s.mu.Lock()
	e.raw = raw
	e.err = err

	// clear the handle first so late arrivals start a fresh execution
	// instead of reading this (now stale) one
	if s.inflight == e {
		s.inflight = nil
	}

	// publish to every registered binding; emission never blocks, so
	// holding the lock here is what serializes delivery order per binding
	for _, b := range s.bindings {
		b.publish(s.key, raw, err, s.metrics)
	}
	s.mu.Unlock()

	close(e.done)
}

// subscribe registers the shape's binding (if new) and subscribes to its
// outcome stream. The subscriber sees every execution that completes after
// this call.
func (s *queryState) subscribe(shape IShape) *stream.Subscriber[Outcome] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindingLocked(shape).stream.Subscribe()
}

// bindingLocked returns the binding for the shape's tag, creating it on
// first request. Must be called with s.mu held.
func (s *queryState) bindingLocked(shape IShape) *shapeBinding {
	b, ok := s.bindings[shape.Tag()]
	if !ok {
		b = newShapeBinding(shape)
		s.bindings[shape.Tag()] = b
	}
	return b
}

// close tears down all binding streams. Called by the registry teardown
// hook when the last reference is released.
func (s *queryState) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bindings {
		b.stream.Close()
	}
}
