package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds every instrument the core substrate records against: the
// owner's storage engine (C5), the arbitration protocol (C6), the sync
// engine (C7), and the aggregate runtime (C3).
type Metrics struct {
	// Owner storage engine.
	ExecuteTotal       metric.Int64Counter
	BatchTotal         metric.Int64Counter
	BatchRollbackTotal metric.Int64Counter
	TableNotifications metric.Int64Counter

	// Aggregate runtime.
	AggregateLoads metric.Int64Counter
	EventsAppended metric.Int64Counter
	SnapshotHits   metric.Int64Counter
	SnapshotMisses metric.Int64Counter

	// Sync engine.
	PushTotal       metric.Int64Counter
	PushConflicts   metric.Int64Counter
	PullTotal       metric.Int64Counter
	RebaseRetries   metric.Int64Counter
	PushEventsCount metric.Int64Histogram

	// Arbitration protocol.
	HelloTotal          metric.Int64Counter
	OwnershipViolations metric.Int64Counter
	RequestsDispatched  metric.Int64Counter
	RequestsCancelled   metric.Int64Counter
}

// NewMetrics creates every instrument against meter. A failure creating
// any one instrument is fatal.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.ExecuteTotal, err = meter.Int64Counter("eventcore.owner.execute.total",
		metric.WithDescription("Total Execute calls against the owner's storage engine")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.BatchTotal, err = meter.Int64Counter("eventcore.owner.batch.total",
		metric.WithDescription("Total Batch calls against the owner's storage engine")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.BatchRollbackTotal, err = meter.Int64Counter("eventcore.owner.batch.rollback",
		metric.WithDescription("Total Batch calls that rolled back")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.TableNotifications, err = meter.Int64Counter("eventcore.owner.notifications",
		metric.WithDescription("TablesChanged notifications delivered to subscribers")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if m.AggregateLoads, err = meter.Int64Counter("eventcore.aggregate.loads",
		metric.WithDescription("Aggregate Repository.Load calls")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.EventsAppended, err = meter.Int64Counter("eventcore.aggregate.events_appended",
		metric.WithDescription("Events appended across all aggregates")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.SnapshotHits, err = meter.Int64Counter("eventcore.aggregate.snapshot_hits",
		metric.WithDescription("Aggregate loads that restored from a snapshot")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.SnapshotMisses, err = meter.Int64Counter("eventcore.aggregate.snapshot_misses",
		metric.WithDescription("Aggregate loads that replayed from version zero")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if m.PushTotal, err = meter.Int64Counter("eventcore.sync.push.total",
		metric.WithDescription("Total push calls, accepted or conflicted")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.PushConflicts, err = meter.Int64Counter("eventcore.sync.push.conflicts",
		metric.WithDescription("Push calls rejected as a conflict, by reason")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.PullTotal, err = meter.Int64Counter("eventcore.sync.pull.total",
		metric.WithDescription("Total pull calls")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.RebaseRetries, err = meter.Int64Counter("eventcore.sync.rebase.retries",
		metric.WithDescription("Client-side rebase retries triggered by server_ahead")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.PushEventsCount, err = meter.Int64Histogram("eventcore.sync.push.events",
		metric.WithDescription("Events per accepted push call")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if m.HelloTotal, err = meter.Int64Counter("eventcore.arbiter.hello.total",
		metric.WithDescription("Total Hello handshakes received by an owner")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.OwnershipViolations, err = meter.Int64Counter("eventcore.arbiter.ownership_violations",
		metric.WithDescription("Hello handshakes rejected for claiming a different (store_id, db_name)")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.RequestsDispatched, err = meter.Int64Counter("eventcore.arbiter.requests_dispatched",
		metric.WithDescription("Requests dispatched to the owner's Handler")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.RequestsCancelled, err = meter.Int64Counter("eventcore.arbiter.requests_cancelled",
		metric.WithDescription("Requests short-circuited by pre-dispatch cancellation")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	return m, nil
}
