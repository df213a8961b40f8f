package query

import (
	"fmt"
)

// TransportError wraps a failure of the remote round trip (network or server
// failure). It is surfaced to every caller and subscriber of the execution
// that failed; the operation itself stays usable, the next Execute starts
// fresh.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error executing %q: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError wraps a failure to decode a raw result into one binding's
// requested shape. It is surfaced only on that binding; other shapes of the
// same operation decode independently.
type DecodeError struct {
	Operation string
	Shape     string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode result of %q into shape %q: %v", e.Operation, e.Shape, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
