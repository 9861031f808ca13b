package event

import (
	"encoding/base64"
	"fmt"

	"github.com/localfirst/eventcore/ids"
)

// Metadata carries the contextual fields attached to every event besides
// its payload.
type Metadata struct {
	ActorID       string
	CausationID   Nullable[string]
	CorrelationID Nullable[string]

	// Epoch is set only by keyring events (scope/grant) to record the
	// scope epoch the event was produced under.
	Epoch Nullable[ids.Epoch]

	// KeyringUpdate carries an opaque, already-wrapped key update
	// alongside an event whose payload itself is not key material
	// (e.g. a resource event co-published with a rewrap).
	KeyringUpdate Nullable[[]byte]
}

// Envelope is the immutable, in-memory representation of a single event:
// append-only, durable, and never mutated once constructed.
type Envelope struct {
	EventID       ids.EventID
	AggregateID   ids.AggregateID
	AggregateType string
	EventType     string
	Version       int64
	OccurredAt    ids.Timestamp
	Metadata      Metadata
	Payload       Payload
}

// New constructs an Envelope. version must be the 1-based version this
// event assigns to the aggregate; callers (the aggregate runtime) are
// responsible for version monotonicity and density.
func New(aggregateID ids.AggregateID, aggregateType string, version int64, actorID string, payload Payload) Envelope {
	return Envelope{
		EventID:       ids.NewEventID(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     payload.EventType(),
		Version:       version,
		OccurredAt:    ids.Now(),
		Metadata:      Metadata{ActorID: actorID},
		Payload:       payload,
	}
}

// Record is the cross-boundary JSON representation of an event: payload
// and keyringUpdate travel as base64url strings, causationId/correlationId
// are string-or-null, and epoch is an optional decimal string.
type Record struct {
	ID              string  `json:"id"`
	AggregateType   string  `json:"aggregateType"`
	AggregateID     string  `json:"aggregateId"`
	EventType       string  `json:"eventType"`
	Payload         string  `json:"payload"`
	Version         int64   `json:"version"`
	OccurredAt      int64   `json:"occurredAt"`
	ActorID         string  `json:"actorId"`
	CausationID     *string `json:"causationId"`
	CorrelationID   *string `json:"correlationId"`
	Epoch           *string `json:"epoch"`
	KeyringUpdate   *string `json:"keyringUpdate"`
}

// ToRecord encodes an Envelope into its wire Record form.
func ToRecord(e Envelope) (Record, error) {
	payloadJSON, err := e.Payload.Encode()
	if err != nil {
		return Record{}, fmt.Errorf("event: encoding payload: %w", err)
	}

	rec := Record{
		ID:            e.EventID.String(),
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID.String(),
		EventType:     e.EventType,
		Payload:       encodeBase64URL(payloadJSON),
		Version:       e.Version,
		OccurredAt:    int64(e.OccurredAt),
		ActorID:       e.Metadata.ActorID,
	}
	if e.Metadata.CausationID.Valid {
		v := e.Metadata.CausationID.Value
		rec.CausationID = &v
	}
	if e.Metadata.CorrelationID.Valid {
		v := e.Metadata.CorrelationID.Value
		rec.CorrelationID = &v
	}
	if e.Metadata.Epoch.Valid {
		v := e.Metadata.Epoch.Value.String()
		rec.Epoch = &v
	}
	if e.Metadata.KeyringUpdate.Valid {
		v := encodeBase64URL(e.Metadata.KeyringUpdate.Value)
		rec.KeyringUpdate = &v
	}
	return rec, nil
}

// FromRecord decodes a wire Record back into an Envelope, using reg to
// resolve the payload's type tag.
func FromRecord(rec Record, reg *Registry) (Envelope, error) {
	aggID, err := ids.ParseAggregateID(rec.AggregateID)
	if err != nil {
		return Envelope{}, err
	}
	eventID, err := ids.ParseEventID(rec.ID)
	if err != nil {
		return Envelope{}, err
	}
	occurredAt := ids.Timestamp(rec.OccurredAt)
	if !occurredAt.Valid() {
		return Envelope{}, fmt.Errorf("event: occurredAt must be >= 0, got %d", rec.OccurredAt)
	}

	payloadJSON, err := decodeBase64URL(rec.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("event: decoding payload envelope: %w", err)
	}
	payload, err := reg.Decode(rec.EventType, payloadJSON)
	if err != nil {
		return Envelope{}, err
	}

	e := Envelope{
		EventID:       eventID,
		AggregateID:   aggID,
		AggregateType: rec.AggregateType,
		EventType:     rec.EventType,
		Version:       rec.Version,
		OccurredAt:    occurredAt,
		Payload:       payload,
		Metadata: Metadata{
			ActorID: rec.ActorID,
		},
	}
	if rec.CausationID != nil {
		e.Metadata.CausationID = Some(*rec.CausationID)
	}
	if rec.CorrelationID != nil {
		e.Metadata.CorrelationID = Some(*rec.CorrelationID)
	}
	if rec.Epoch != nil {
		ep, err := ids.ParseEpoch(*rec.Epoch)
		if err != nil {
			return Envelope{}, err
		}
		e.Metadata.Epoch = Some(ep)
	}
	if rec.KeyringUpdate != nil {
		kr, err := decodeBase64URL(*rec.KeyringUpdate)
		if err != nil {
			return Envelope{}, fmt.Errorf("event: decoding keyringUpdate: %w", err)
		}
		e.Metadata.KeyringUpdate = Some(kr)
	}
	return e, nil
}

func encodeBase64URL(b []byte) string {
	return base64.URLEncoding.EncodeToString(b)
}

func decodeBase64URL(s string) ([]byte, error) {
	return base64.URLEncoding.DecodeString(s)
}
