// Package event defines the immutable event envelope that aggregates
// produce and the field-level JSON codec payload types use to guarantee a
// round-trip bijection between Go values and their wire representation.
package event

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
)

// EncodeString encodes a string field. Strings are already a JSON
// primitive, so this exists for symmetry with the other field encoders.
func EncodeString(v string) (json.RawMessage, error) {
	return json.Marshal(v)
}

// DecodeString decodes a string field, rejecting non-string shapes.
func DecodeString(raw json.RawMessage) (string, error) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("event: decoding string field: %w", err)
	}
	return v, nil
}

// EncodeFloat encodes a finite float64. Non-finite values (NaN, +-Inf)
// have no JSON representation and are rejected at encode time so the
// codec's bijection guarantee never has to special-case them on decode.
func EncodeFloat(v float64) (json.RawMessage, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("event: float field %v is not finite", v)
	}
	return json.Marshal(v)
}

// DecodeFloat decodes a finite float64 field, rejecting non-numeric shapes
// and (defensively) non-finite values that should never appear in valid
// JSON but could arrive from a malformed upstream encoder.
func DecodeFloat(raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("event: decoding float field: %w", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("event: float field %v is not finite", v)
	}
	return v, nil
}

// EncodeBytes encodes an octet sequence as a base64url JSON string.
func EncodeBytes(v []byte) (json.RawMessage, error) {
	return json.Marshal(base64.URLEncoding.EncodeToString(v))
}

// DecodeBytes decodes a base64url JSON string into an octet sequence.
func DecodeBytes(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("event: decoding bytes field: %w", err)
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("event: invalid base64url bytes field: %w", err)
	}
	return b, nil
}

// EncodeBigInt encodes an arbitrary-precision integer as a string-encoded
// JSON value, preserving precision JavaScript's float64 numbers cannot.
func EncodeBigInt(v *big.Int) (json.RawMessage, error) {
	if v == nil {
		return nil, fmt.Errorf("event: big integer field is nil")
	}
	return json.Marshal(v.String())
}

// DecodeBigInt decodes a string-encoded arbitrary-precision integer.
func DecodeBigInt(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("event: decoding big integer field: %w", err)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("event: invalid big integer field %q", s)
	}
	return n, nil
}

// Nullable represents a field that may be present-with-value or explicitly
// null, as distinct from a field that is missing entirely.
type Nullable[T any] struct {
	Valid bool
	Value T
}

// Some wraps a present value.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Valid: true, Value: v}
}

// None represents an explicit null.
func None[T any]() Nullable[T] {
	return Nullable[T]{}
}

// EncodeNullable encodes a Nullable field using the element encoder,
// producing JSON null when the field is not present.
func EncodeNullable[T any](v Nullable[T], encode func(T) (json.RawMessage, error)) (json.RawMessage, error) {
	if !v.Valid {
		return json.Marshal(nil)
	}
	return encode(v.Value)
}

// DecodeNullable decodes a Nullable field using the element decoder,
// treating JSON null (or a missing/empty raw message) as an absent value.
func DecodeNullable[T any](raw json.RawMessage, decode func(json.RawMessage) (T, error)) (Nullable[T], error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Nullable[T]{}, nil
	}
	v, err := decode(raw)
	if err != nil {
		return Nullable[T]{}, err
	}
	return Nullable[T]{Valid: true, Value: v}, nil
}

// RequireField extracts the raw JSON for a required field from a decoded
// object, failing if the field is absent -- the codec rejects decoding
// when a field is missing rather than silently defaulting it.
func RequireField(obj map[string]json.RawMessage, name string) (json.RawMessage, error) {
	raw, ok := obj[name]
	if !ok {
		return nil, fmt.Errorf("event: missing required field %q", name)
	}
	return raw, nil
}
