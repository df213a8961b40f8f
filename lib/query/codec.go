package query

import (
	"crypto/sha512"
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Default Codec (canonical JSON + SHA-512)
// --------------------------------------------------------------------------

// NewJSONCodec creates the default codec. Variables are encoded as JSON,
// which is canonical for this purpose: map keys are emitted in sorted order
// and struct fields in declaration order, so equal variables always produce
// byte-equal payloads. The fingerprint is the SHA-512 digest of the payload.
func NewJSONCodec() ICodec {
	return &jsonCodec{}
}

type jsonCodec struct{}

func (c *jsonCodec) Encode(vars any) ([]byte, error) {
	payload, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("failed to encode variables: %v", err)
	}
	return payload, nil
}

func (c *jsonCodec) Fingerprint(payload []byte) Fingerprint {
	return sha512.Sum512(payload)
}

// --------------------------------------------------------------------------
// JSON Shapes
// --------------------------------------------------------------------------

// jsonShape decodes raw JSON results into T
type jsonShape[T any] struct {
	tag string
}

func (s *jsonShape[T]) Tag() string {
	return s.tag
}

func (s *jsonShape[T]) Decode(raw []byte) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ShapeOf returns the default JSON shape for T, tagged with T's type name.
// The tag is derived once from the static type, so all callers requesting
// the same T share one binding.
func ShapeOf[T any]() IShape {
	var zero T
	return &jsonShape[T]{tag: fmt.Sprintf("%T", zero)}
}

// NamedShape returns a JSON shape for T with an explicit tag. Use this when
// two distinct types would collide on their default tag, or when the tag
// must stay stable across refactors.
func NamedShape[T any](tag string) IShape {
	return &jsonShape[T]{tag: tag}
}

// RawShape is a shape that performs no decoding and yields the raw result
// bytes. Useful for callers that forward results verbatim.
func RawShape() IShape {
	return &rawShape{}
}

type rawShape struct{}

func (s *rawShape) Tag() string {
	return "raw"
}

func (s *rawShape) Decode(raw []byte) (any, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}
