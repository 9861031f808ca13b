package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/localfirst/eventcore/apperr"
	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
	"github.com/localfirst/eventcore/telemetry"
)

// EventLog is the append-only storage surface a Repository needs. It is
// duck-typed against store/sqlite's Engine/EventLog so this package never
// imports the storage engine directly.
type EventLog interface {
	AppendEvents(aggregateID ids.AggregateID, expectedVersion int64, envs []event.Envelope) error
	LoadEvents(aggregateID ids.AggregateID, afterVersion int64) ([]event.Envelope, error)
	GetAggregateVersion(aggregateID ids.AggregateID) (int64, error)
}

// Factory constructs a zero-value aggregate of type T, already Init'd with
// id and its own applier (usually itself), ready for LoadFromHistory.
type Factory[T Aggregate] func(id ids.AggregateID) T

// Repository loads and saves aggregates of type T against an EventLog:
// Load replays history from version 0, Save appends the aggregate's
// uncommitted events under an optimistic-concurrency expected-version check.
type Repository[T Aggregate] struct {
	log     EventLog
	factory Factory[T]

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// RepositoryOption configures a Repository at construction time.
type RepositoryOption[T Aggregate] func(*Repository[T])

// WithRepositoryLogger overrides the repository's *slog.Logger.
func WithRepositoryLogger[T Aggregate](logger *slog.Logger) RepositoryOption[T] {
	return func(r *Repository[T]) { r.logger = logger }
}

// WithRepositoryMetrics attaches OpenTelemetry instruments recording
// loads and appended event counts.
func WithRepositoryMetrics[T Aggregate](m *telemetry.Metrics) RepositoryOption[T] {
	return func(r *Repository[T]) { r.metrics = m }
}

// NewRepository builds a Repository for aggregate type T.
func NewRepository[T Aggregate](log EventLog, factory Factory[T], opts ...RepositoryOption[T]) *Repository[T] {
	r := &Repository[T]{log: log, factory: factory, logger: slog.Default(), metrics: telemetry.Noop().Metrics}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reconstructs the aggregate identified by id by replaying its full
// event history. A zero-version result (no events found) is returned
// without error; callers distinguish "does not exist" by checking
// Version() == 0.
func (r *Repository[T]) Load(id ids.AggregateID) (T, error) {
	r.metrics.AggregateLoads.Add(context.Background(), 1)

	agg := r.factory(id)
	envs, err := r.log.LoadEvents(id, 0)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("aggregate: load %s: %w", id, err)
	}
	if err := agg.LoadFromHistory(envs); err != nil {
		var zero T
		return zero, fmt.Errorf("aggregate: replay %s: %w", id, err)
	}
	return agg, nil
}

// Save appends agg's uncommitted events to the log under an optimistic
// concurrency check: expectedVersion is the aggregate's version before
// these events were applied. On success the uncommitted buffer is cleared.
func (r *Repository[T]) Save(agg T) error {
	events := agg.UncommittedEvents()
	if len(events) == 0 {
		return nil
	}
	expectedVersion := agg.Version() - int64(len(events))
	if err := r.log.AppendEvents(agg.ID(), expectedVersion, events); err != nil {
		return apperr.Wrap(apperr.CodeTransactionAborted, err, "append %d event(s) for %s %s", len(events), agg.Type(), agg.ID())
	}
	agg.ClearUncommittedEvents()
	r.metrics.EventsAppended.Add(context.Background(), int64(len(events)))
	return nil
}
