// Package ids provides the identifier and value primitives shared across
// the event log, sync, and keyring subsystems: UUIDv4 store identifiers,
// UUIDv7 time-ordered aggregate/event identifiers, millisecond timestamps,
// and ordered year-month values.
package ids

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// storeIDPattern matches a UUID v4, used for per-user store identifiers.
var storeIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// aggregateIDPattern matches a UUID v7, used for in-payload identifiers.
var aggregateIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// StoreID is a UUIDv4 uniquely naming a per-user event log.
type StoreID string

// NewStoreID generates a fresh UUIDv4 store identifier.
func NewStoreID() StoreID {
	return StoreID(uuid.New().String())
}

// ParseStoreID validates s as a UUIDv4 store identifier.
func ParseStoreID(s string) (StoreID, error) {
	if !storeIDPattern.MatchString(s) {
		return "", fmt.Errorf("ids: %q is not a valid v4 store identifier", s)
	}
	return StoreID(s), nil
}

func (s StoreID) String() string { return string(s) }

// AggregateID is a UUIDv7 time-ordered identifier for an aggregate instance.
type AggregateID string

// NewAggregateID generates a fresh UUIDv7 aggregate identifier.
func NewAggregateID() AggregateID {
	id, err := uuid.NewV7()
	if err != nil {
		// Entropy source failure; the stdlib crypto/rand source backing
		// uuid.NewV7 does not fail in practice.
		panic(fmt.Errorf("ids: generating aggregate id: %w", err))
	}
	return AggregateID(id.String())
}

// ParseAggregateID validates s as a UUIDv7 aggregate identifier.
func ParseAggregateID(s string) (AggregateID, error) {
	if !aggregateIDPattern.MatchString(s) {
		return "", fmt.Errorf("ids: %q is not a valid v7 aggregate identifier", s)
	}
	return AggregateID(s), nil
}

func (a AggregateID) String() string { return string(a) }

// EventID is a UUIDv7 time-ordered identifier unique across a store's log.
type EventID string

// NewEventID generates a fresh UUIDv7 event identifier.
func NewEventID() EventID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Errorf("ids: generating event id: %w", err))
	}
	return EventID(id.String())
}

// ParseEventID validates s as a UUIDv7 event identifier.
func ParseEventID(s string) (EventID, error) {
	if !aggregateIDPattern.MatchString(s) {
		return "", fmt.Errorf("ids: %q is not a valid v7 event identifier", s)
	}
	return EventID(s), nil
}

func (e EventID) String() string { return string(e) }

// Timestamp is an epoch-millisecond instant. It marshals to JSON as a bare
// non-negative integer, matching the wire shape of occurred_at/timestamp
// fields across the event envelope and sync record JSON.
type Timestamp int64

// nowFunc is overridable for deterministic tests.
var nowFunc = time.Now

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp(nowFunc().UnixMilli())
}

// FromTime converts a time.Time to a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time converts the Timestamp back to a time.Time (UTC).
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// Valid reports whether the timestamp satisfies occurred_at >= 0.
func (t Timestamp) Valid() bool {
	return t >= 0
}
