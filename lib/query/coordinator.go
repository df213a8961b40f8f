package query

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/liveQ/lib/registry"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("query")
)

// --------------------------------------------------------------------------
// Coordinator Factory
// --------------------------------------------------------------------------

// NewCoordinator creates a coordinator executing operations through the
// given executor. If codec is nil the default JSON codec is used.
//
// The coordinator owns a registry of per-operation state: state for a given
// (name, variables) pair exists exactly while at least one Execute, Collect
// or Subscription is using it. Close tears the registry down; the
// coordinator never outlives its owning session.
func NewCoordinator(executor IExecutor, codec ICodec) ICoordinator {
	if codec == nil {
		codec = NewJSONCodec()
	}

	m := newCoordinatorMetrics()

	c := &coordinator{
		executor: executor,
		codec:    codec,
		metrics:  m,
	}
	c.states = registry.New[Key, *queryState](func(key Key, state *queryState) {
		m.stateEvicted()
		Logger.Debugf("Evicted state for %s", key)
		state.close()
	})

	return c
}

type coordinator struct {
	executor IExecutor
	codec    ICodec
	states   *registry.Registry[Key, *queryState]
	metrics  *coordinatorMetrics
}

// --------------------------------------------------------------------------
// Interface Methods (docu see query.ICoordinator)
// --------------------------------------------------------------------------

func (c *coordinator) Execute(ctx context.Context, name string, vars any, shape IShape) (any, error) {
	key, state, err := c.acquire(name, vars)
	if err != nil {
		return nil, err
	}
	// release must run on every exit path, including caller cancellation
	defer c.states.Release(key, state)

	return state.run(ctx, shape)
}

func (c *coordinator) Subscribe(name string, vars any, shape IShape) (*Subscription, error) {
	key, state, err := c.acquire(name, vars)
	if err != nil {
		return nil, err
	}

	// the subscription takes over the acquired reference and releases it
	// on Close
	return newSubscription(state, shape, func() {
		c.states.Release(key, state)
	}), nil
}

func (c *coordinator) Collect(ctx context.Context, name string, vars any, shape IShape, sink func(Outcome) bool) error {
	key, state, err := c.acquire(name, vars)
	if err != nil {
		return err
	}
	defer c.states.Release(key, state)

	sub := state.subscribe(shape)
	defer sub.Cancel()

	for {
		select {
		case outcome, ok := <-sub.C():
			if !ok {
				// stream closed by coordinator shutdown
				return nil
			}
			if !sink(*outcome) {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *coordinator) Close() error {
	c.states.Clear()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acquire computes the operation key and acquires its shared state. Every
// successful acquire must be paired with exactly one release.
func (c *coordinator) acquire(name string, vars any) (Key, *queryState, error) {
	payload, err := c.codec.Encode(vars)
	if err != nil {
		return Key{}, nil, fmt.Errorf("invalid variables for operation %q: %v", name, err)
	}

	key := Key{Name: name, Fingerprint: c.codec.Fingerprint(payload)}

	state := c.states.Acquire(key, func() *queryState {
		c.metrics.stateCreated()
		Logger.Debugf("Created state for %s", key)
		return newQueryState(key, payload, c.executor, c.metrics)
	})

	return key, state, nil
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// coordinatorMetrics bundles the coordinator's counters. A nil receiver is
// valid and counts nothing, which keeps the hot paths free of nil checks at
// the call sites.
type coordinatorMetrics struct {
	executions      *metrics.Counter
	joins           *metrics.Counter
	transportErrors *metrics.Counter
	decodeErrors    *metrics.Counter
	statesCreated   *metrics.Counter
	statesEvicted   *metrics.Counter
}

func newCoordinatorMetrics() *coordinatorMetrics {
	return &coordinatorMetrics{
		executions:      metrics.GetOrCreateCounter(`liveq_executions_started_total`),
		joins:           metrics.GetOrCreateCounter(`liveq_executions_joined_total`),
		transportErrors: metrics.GetOrCreateCounter(`liveq_transport_errors_total`),
		decodeErrors:    metrics.GetOrCreateCounter(`liveq_decode_errors_total`),
		statesCreated:   metrics.GetOrCreateCounter(`liveq_query_states_created_total`),
		statesEvicted:   metrics.GetOrCreateCounter(`liveq_query_states_evicted_total`),
	}
}

func (m *coordinatorMetrics) execStarted() {
	if m != nil {
		m.executions.Inc()
	}
}

func (m *coordinatorMetrics) execJoined() {
	if m != nil {
		m.joins.Inc()
	}
}

func (m *coordinatorMetrics) transportFailed() {
	if m != nil {
		m.transportErrors.Inc()
	}
}

func (m *coordinatorMetrics) decodeFailed() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *coordinatorMetrics) stateCreated() {
	if m != nil {
		m.statesCreated.Inc()
	}
}

func (m *coordinatorMetrics) stateEvicted() {
	if m != nil {
		m.statesEvicted.Inc()
	}
}
