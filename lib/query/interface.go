package query

import (
	"context"
)

// --------------------------------------------------------------------------
// Collaborator Interfaces
// --------------------------------------------------------------------------

// IExecutor performs one remote operation round trip. It is the transport
// collaborator of the coordination layer; the rpc/client package provides
// the wire implementation.
type IExecutor interface {
	// PerformOperation sends the named operation with its encoded variables
	// payload to the remote service and returns the raw structured result.
	// A network or server failure is returned as an error.
	PerformOperation(ctx context.Context, name string, payload []byte) ([]byte, error)
}

// ICodec encodes operation variables into their canonical payload and
// computes the payload fingerprint used for operation identity. The encoding
// must be deterministic: equal variables must produce byte-equal payloads.
type ICodec interface {
	// Encode serializes the variables into the canonical payload
	Encode(vars any) ([]byte, error)
	// Fingerprint computes the collision-resistant digest of a payload
	Fingerprint(payload []byte) Fingerprint
}

// IShape describes one result-decoding target. Bindings are looked up by
// Tag, so the tag must be a stable identifier for the decoded type: two
// shapes with the same tag share one binding and must decode identically.
type IShape interface {
	// Tag returns the stable identifier of this shape
	Tag() string
	// Decode decodes a raw result into the shape's type
	Decode(raw []byte) (any, error)
}

// --------------------------------------------------------------------------
// Coordinator Interface
// --------------------------------------------------------------------------

// Outcome is one delivered result: either a decoded value or an error
// (transport or decode). Errors travel through the same streams as values
// and are never silently dropped.
type Outcome struct {
	Value any
	Err   error
}

// ICoordinator is the public entry point of the coordination layer.
//
// All three methods identify the operation by (name, variables, shape).
// Internally the coordinator acquires the shared per-operation state for the
// duration of the call and releases it on every exit path, including caller
// cancellation; callers never manage that lifetime themselves.
type ICoordinator interface {
	// Execute runs the operation once and returns the decoded result.
	// Concurrent Execute calls for the same (name, variables) share one
	// remote round trip; a call arriving after a previous execution
	// completed triggers a fresh one. Cancelling ctx detaches this caller
	// without cancelling an execution other callers may still be awaiting.
	Execute(ctx context.Context, name string, vars any, shape IShape) (any, error)

	// Subscribe returns a live subscription bound to the operation and
	// shape. The subscription does not trigger an execution by itself; it
	// observes executions triggered by Execute, Collect sinks of the same
	// operation, or its own Reload. Close the subscription to release it.
	Subscribe(name string, vars any, shape IShape) (*Subscription, error)

	// Collect subscribes the sink to the operation's result stream for the
	// lifetime of the call. The sink returns false to stop collecting.
	// Collect returns when the sink stops, ctx is cancelled, or the
	// coordinator shuts down.
	Collect(ctx context.Context, name string, vars any, shape IShape, sink func(Outcome) bool) error

	// Close tears down the coordinator and all remaining per-operation
	// state. The coordinator must not be used afterwards.
	Close() error
}

// --------------------------------------------------------------------------
// Typed Helpers
// --------------------------------------------------------------------------

// Execute runs an operation through the coordinator and decodes the result
// into T using T's default shape.
func Execute[T any](ctx context.Context, c ICoordinator, name string, vars any) (T, error) {
	var zero T
	v, err := c.Execute(ctx, name, vars, ShapeOf[T]())
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Subscribe returns a live subscription decoding results into T.
func Subscribe[T any](c ICoordinator, name string, vars any) (*Subscription, error) {
	return c.Subscribe(name, vars, ShapeOf[T]())
}
