// Package aggregate provides the event-sourced aggregate runtime: replay
// dispatch, uncommitted-event buffering, version counting, and snapshot
// hydration shared by every aggregate (Scope, ResourceGrant, and any
// business aggregate built on top of this substrate).
package aggregate

import (
	"fmt"

	"github.com/localfirst/eventcore/apperr"
	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
)

// ErrInvalidEventForAggregate is returned by an EventApplier when asked to
// apply a payload type its exhaustive switch does not recognize. This is
// a fatal bug signal (the log and the aggregate registry have drifted),
// not a recoverable domain error.
type ErrInvalidEventForAggregate struct {
	AggregateType string
	EventType     string
}

func (e *ErrInvalidEventForAggregate) Error() string {
	return fmt.Sprintf("aggregate: %s cannot apply event of type %q (registry/log drift)", e.AggregateType, e.EventType)
}

// EventApplier mutates an aggregate's projected state for one payload. It
// must be an exhaustive switch over the aggregate's closed set of event
// payload types (design note 9.1) -- never a reflection/string-suffix
// method lookup -- and it performs state mutation only: version counting
// and uncommitted-event buffering are Root's job, not the applier's.
type EventApplier interface {
	ApplyEvent(payload event.Payload) error
}

// Aggregate is the contract every aggregate implementation satisfies. The
// LoadFromHistory method is promoted from an embedded *Root, so concrete
// aggregate types get it for free.
type Aggregate interface {
	ID() ids.AggregateID
	Type() string
	Version() int64
	IsArchived() bool
	UncommittedEvents() []event.Envelope
	ClearUncommittedEvents()
	LoadFromHistory(envs []event.Envelope) error
}

// Root provides the base functionality every aggregate embeds. *Root has
// every method of Aggregate but no ApplyEvent of its own, so each concrete
// aggregate type must call Init with its own EventApplier implementation
// (usually itself) before use.
type Root struct {
	id            ids.AggregateID
	aggregateType string
	version       int64
	archivedAt    event.Nullable[ids.Timestamp]
	uncommitted   []event.Envelope
	applier       EventApplier
}

// Init wires the Root to its owning aggregate's id, type tag, and event
// applier. Concrete aggregate constructors call this first.
func (r *Root) Init(id ids.AggregateID, aggregateType string, applier EventApplier) {
	r.id = id
	r.aggregateType = aggregateType
	r.applier = applier
}

func (r *Root) ID() ids.AggregateID { return r.id }
func (r *Root) Type() string        { return r.aggregateType }
func (r *Root) Version() int64      { return r.version }
func (r *Root) IsArchived() bool    { return r.archivedAt.Valid }

// ArchivedAt returns the sticky archival timestamp, if any.
func (r *Root) ArchivedAt() (ids.Timestamp, bool) {
	return r.archivedAt.Value, r.archivedAt.Valid
}

func (r *Root) UncommittedEvents() []event.Envelope {
	return r.uncommitted
}

func (r *Root) ClearUncommittedEvents() {
	r.uncommitted = nil
}

// Archive marks the aggregate as terminally archived. Concrete aggregates
// call this from within their EventApplier when applying the terminal
// event type; once set it is sticky and Emit refuses further commands.
func (r *Root) Archive(at ids.Timestamp) {
	r.archivedAt = event.Some(at)
}

// Emit is the only way a command method produces a new event: it runs the
// payload through the aggregate's own applier to mutate state, and only
// on success appends the resulting envelope to the uncommitted buffer and
// increments the version. Preconditions (archived, unchanged value,
// disallowed transition) must be checked by the caller before Emit; Emit
// itself only enforces the one precondition every aggregate shares
// (not-archived).
func (r *Root) Emit(actorID string, payload event.Payload) error {
	if r.archivedAt.Valid {
		return apperr.New(apperr.CodeDomain, "%s %s is archived and accepts no further events", r.aggregateType, r.id)
	}
	if err := r.applier.ApplyEvent(payload); err != nil {
		return err
	}
	env := event.New(r.id, r.aggregateType, r.version+1, actorID, payload)
	r.uncommitted = append(r.uncommitted, env)
	r.version++
	return nil
}

// LoadFromHistory replays envs against the applier without buffering
// them as uncommitted, advancing version as each is applied. envs must
// be dense and strictly ordered starting at the Root's current
// version+1; any gap or reordering is a replay-time error.
func (r *Root) LoadFromHistory(envs []event.Envelope) error {
	for _, env := range envs {
		if env.Version != r.version+1 {
			return fmt.Errorf("aggregate: %s %s replay expected version %d, got %d (event %s)",
				r.aggregateType, r.id, r.version+1, env.Version, env.EventID)
		}
		if err := r.applier.ApplyEvent(env.Payload); err != nil {
			return err
		}
		r.version = env.Version
	}
	return nil
}

// ReconstituteFromSnapshot sets the Root's version directly from a
// snapshot (state itself must already have been restored by the caller
// via Snapshotable.UnmarshalSnapshot) and then replays the tail events
// that occurred after the snapshot was taken.
func (r *Root) ReconstituteFromSnapshot(snapshotVersion int64, tail []event.Envelope) error {
	r.version = snapshotVersion
	return r.LoadFromHistory(tail)
}
