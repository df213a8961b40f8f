package query

import (
	"errors"

	"github.com/ValentinKolb/liveQ/lib/stream"
)

// shapeBinding is the per-result-shape fan-out point of a queryState. It
// holds the shape descriptor and a replay-1 multicast stream of outcomes:
// new subscribers immediately see the most recent outcome, then every later
// one in completion order.
//
// Bindings are created lazily on first request for a shape and live as long
// as their owning state; they are not reference counted on their own.
type shapeBinding struct {
	shape  IShape
	stream *stream.Stream[Outcome]
}

func newShapeBinding(shape IShape) *shapeBinding {
	return &shapeBinding{
		shape:  shape,
		stream: stream.New[Outcome](),
	}
}

// publish delivers one completed execution attempt to this binding's
// subscribers. Each binding decodes the raw result independently, so a
// decode failure for this shape surfaces here and nowhere else.
func (b *shapeBinding) publish(key Key, raw []byte, execErr error, m *coordinatorMetrics) {
	if execErr != nil {
		b.stream.Emit(Outcome{Err: execErr})
		return
	}

	value, err := b.shape.Decode(raw)
	if err != nil {
		m.decodeFailed()
		b.stream.Emit(Outcome{Err: &DecodeError{Operation: key.Name, Shape: b.shape.Tag(), Err: err}})
		return
	}
	b.stream.Emit(Outcome{Value: value})
}

// decodeFor decodes a raw result for a direct caller of Execute, wrapping
// failures the same way the stream path does.
func (b *shapeBinding) decodeFor(key Key, raw []byte) (any, error) {
	value, err := b.shape.Decode(raw)
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			err = &DecodeError{Operation: key.Name, Shape: b.shape.Tag(), Err: err}
		}
		return nil, err
	}
	return value, nil
}
