package event

import "encoding/json"

// Payload is implemented by every event's typed data. Concrete payload
// types implement their own field-by-field Encode using the helpers in
// codec.go, guaranteeing Decode(Encode(p)) == p for any registered spec.
type Payload interface {
	// EventType returns the type tag this payload encodes under, e.g.
	// "goal.Created" or "scope.MemberAdded".
	EventType() string

	// Encode serializes the payload to a JSON object per its field specs.
	Encode() (json.RawMessage, error)
}

// Decoder decodes a previously-encoded payload back into a typed value.
type Decoder func(raw json.RawMessage) (Payload, error)
