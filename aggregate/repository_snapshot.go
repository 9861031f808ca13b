package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
	"github.com/localfirst/eventcore/telemetry"
)

// SnapshotAggregate is an Aggregate that additionally knows how to
// serialize and restore its own state, the precondition for
// SnapshotRepository to skip full replay.
type SnapshotAggregate interface {
	Aggregate
	Snapshotable
	ReconstituteFromSnapshot(snapshotVersion int64, tail []event.Envelope) error
}

// SnapshotRepository wraps Repository with snapshot-aware Load: it
// restores the latest snapshot (if any) and replays only the tail of
// events recorded since, instead of the full history from version 0.
// Save writes a new snapshot whenever strategy says to, mirroring the
// teacher's AccountRepositoryWithSnapshots.
type SnapshotRepository[T SnapshotAggregate] struct {
	log       EventLog
	snapshots SnapshotStore
	strategy  SnapshotStrategy
	factory   Factory[T]

	lastSnapshotVersion map[ids.AggregateID]int64

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// SnapshotRepositoryOption configures a SnapshotRepository at construction.
type SnapshotRepositoryOption[T SnapshotAggregate] func(*SnapshotRepository[T])

// WithSnapshotRepositoryLogger overrides the repository's *slog.Logger.
func WithSnapshotRepositoryLogger[T SnapshotAggregate](logger *slog.Logger) SnapshotRepositoryOption[T] {
	return func(r *SnapshotRepository[T]) { r.logger = logger }
}

// WithSnapshotRepositoryMetrics attaches OpenTelemetry instruments
// recording loads, snapshot hits, and snapshot misses.
func WithSnapshotRepositoryMetrics[T SnapshotAggregate](m *telemetry.Metrics) SnapshotRepositoryOption[T] {
	return func(r *SnapshotRepository[T]) { r.metrics = m }
}

// NewSnapshotRepository builds a SnapshotRepository for aggregate type T.
func NewSnapshotRepository[T SnapshotAggregate](log EventLog, snapshots SnapshotStore, strategy SnapshotStrategy, factory Factory[T], opts ...SnapshotRepositoryOption[T]) *SnapshotRepository[T] {
	r := &SnapshotRepository[T]{
		log:                 log,
		snapshots:           snapshots,
		strategy:            strategy,
		factory:             factory,
		lastSnapshotVersion: make(map[ids.AggregateID]int64),
		logger:              slog.Default(),
		metrics:             telemetry.Noop().Metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load restores id from its latest snapshot (if one exists) and replays
// only the events recorded after it; with no snapshot it falls back to a
// full replay from version 0, same as Repository.Load.
func (r *SnapshotRepository[T]) Load(id ids.AggregateID) (T, error) {
	ctx := context.Background()
	r.metrics.AggregateLoads.Add(ctx, 1)

	agg := r.factory(id)
	fromVersion := int64(0)

	snap, err := r.snapshots.GetLatestSnapshot(id)
	switch {
	case err == nil:
		if uerr := agg.UnmarshalSnapshot(snap.Data); uerr != nil {
			var zero T
			return zero, fmt.Errorf("aggregate: unmarshal snapshot for %s: %w", id, uerr)
		}
		fromVersion = snap.Version
		r.lastSnapshotVersion[id] = snap.Version
		r.metrics.SnapshotHits.Add(ctx, 1)
	case errors.Is(err, ErrSnapshotNotFound):
		r.metrics.SnapshotMisses.Add(ctx, 1)
	default:
		var zero T
		return zero, fmt.Errorf("aggregate: load snapshot for %s: %w", id, err)
	}

	tail, err := r.log.LoadEvents(id, fromVersion)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("aggregate: load tail events for %s: %w", id, err)
	}
	if err := agg.ReconstituteFromSnapshot(fromVersion, tail); err != nil {
		var zero T
		return zero, fmt.Errorf("aggregate: reconstitute %s: %w", id, err)
	}
	return agg, nil
}

// Save appends agg's uncommitted events, then snapshots agg if strategy
// says enough events have accumulated since the last one.
func (r *SnapshotRepository[T]) Save(agg T) error {
	events := agg.UncommittedEvents()
	if len(events) == 0 {
		return nil
	}
	expectedVersion := agg.Version() - int64(len(events))
	if err := r.log.AppendEvents(agg.ID(), expectedVersion, events); err != nil {
		return fmt.Errorf("aggregate: append %d event(s) for %s %s: %w", len(events), agg.Type(), agg.ID(), err)
	}
	agg.ClearUncommittedEvents()
	r.metrics.EventsAppended.Add(context.Background(), int64(len(events)))

	last := r.lastSnapshotVersion[agg.ID()]
	if !r.strategy.ShouldSnapshot(agg.Version(), agg.Version()-last) {
		return nil
	}

	data, err := agg.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("aggregate: marshal snapshot for %s: %w", agg.ID(), err)
	}
	snap := Snapshot{
		AggregateID:   agg.ID(),
		AggregateType: agg.Type(),
		Version:       agg.Version(),
		Data:          data,
		CreatedAt:     ids.Now().Time(),
	}
	if err := r.snapshots.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("aggregate: save snapshot for %s: %w", agg.ID(), err)
	}
	r.lastSnapshotVersion[agg.ID()] = agg.Version()
	return nil
}
