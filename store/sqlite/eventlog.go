package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/localfirst/eventcore/apperr"
	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
)

// EventLog adapts an Engine into the aggregate.EventLog surface: append
// under optimistic concurrency, load an aggregate's history, and report
// its current version. It satisfies aggregate.EventLog structurally.
type EventLog struct {
	engine   *Engine
	registry *event.Registry
}

// NewEventLog builds an EventLog over engine, decoding payloads via reg.
func NewEventLog(engine *Engine, reg *event.Registry) *EventLog {
	return &EventLog{engine: engine, registry: reg}
}

// GetAggregateVersion returns the highest version recorded for
// aggregateID, or 0 if it has no events yet.
func (l *EventLog) GetAggregateVersion(aggregateID ids.AggregateID) (int64, error) {
	row := l.engine.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?`,
		aggregateID.String(),
	)
	var version int64
	if err := row.Scan(&version); err != nil {
		return 0, classifyError(err)
	}
	return version, nil
}

// AppendEvents inserts envs for aggregateID inside one transaction, first
// re-checking that the aggregate's current version still equals
// expectedVersion (optimistic concurrency): a mismatch means another
// writer committed first and the caller must reload and retry.
func (l *EventLog) AppendEvents(aggregateID ids.AggregateID, expectedVersion int64, envs []event.Envelope) error {
	if len(envs) == 0 {
		return nil
	}

	l.engine.mu.Lock()
	defer l.engine.mu.Unlock()

	tx, err := l.engine.db.BeginTx(context.Background(), nil)
	if err != nil {
		return classifyError(err)
	}
	defer tx.Rollback()

	var current int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?`, aggregateID.String()).Scan(&current); err != nil {
		return classifyError(err)
	}
	if current != expectedVersion {
		return apperr.New(apperr.CodeTransactionAborted, "aggregate %s: expected version %d, found %d", aggregateID, expectedVersion, current).
			WithDetails(map[string]string{"expectedVersion": fmt.Sprint(expectedVersion), "currentVersion": fmt.Sprint(current)})
	}

	for _, env := range envs {
		rec, err := event.ToRecord(env)
		if err != nil {
			return fmt.Errorf("eventlog: encode %s: %w", env.EventID, err)
		}
		if err := insertRecord(tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyError(err)
	}
	l.engine.notify(context.Background(), []string{"EVENTS"})
	return nil
}

func insertRecord(tx *sql.Tx, rec event.Record) error {
	_, err := tx.Exec(
		`INSERT INTO events (event_id, aggregate_type, aggregate_id, event_type, payload_encrypted, keyring_update, version, occurred_at, actor_id, causation_id, correlation_id, epoch)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AggregateType, rec.AggregateID, rec.EventType, rec.Payload, rec.KeyringUpdate,
		rec.Version, rec.OccurredAt, rec.ActorID, rec.CausationID, rec.CorrelationID, rec.Epoch,
	)
	if err != nil {
		return classifyError(err)
	}
	return nil
}

// LoadEvents returns aggregateID's events with version > afterVersion, in
// ascending version order.
func (l *EventLog) LoadEvents(aggregateID ids.AggregateID, afterVersion int64) ([]event.Envelope, error) {
	rows, err := l.engine.db.Query(
		`SELECT event_id, aggregate_type, aggregate_id, event_type, payload_encrypted, keyring_update, version, occurred_at, actor_id, causation_id, correlation_id, epoch
		 FROM events WHERE aggregate_id = ? AND version > ? ORDER BY version ASC`,
		aggregateID.String(), afterVersion,
	)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var envs []event.Envelope
	for rows.Next() {
		var rec event.Record
		if err := rows.Scan(&rec.ID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &rec.Payload, &rec.KeyringUpdate,
			&rec.Version, &rec.OccurredAt, &rec.ActorID, &rec.CausationID, &rec.CorrelationID, &rec.Epoch); err != nil {
			return nil, classifyError(err)
		}
		env, err := event.FromRecord(rec, l.registry)
		if err != nil {
			return nil, fmt.Errorf("eventlog: decode %s: %w", rec.ID, err)
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}
	return envs, nil
}
