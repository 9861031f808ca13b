package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/localfirst/eventcore/aggregate"
	"github.com/localfirst/eventcore/ids"
)

// SnapshotStore implements aggregate.SnapshotStore against the engine's
// snapshots table: one row per aggregate, upserted on every SaveSnapshot
// so the table always holds only the latest version.
type SnapshotStore struct {
	engine *Engine
}

// NewSnapshotStore builds a SnapshotStore over engine.
func NewSnapshotStore(engine *Engine) *SnapshotStore {
	return &SnapshotStore{engine: engine}
}

// SaveSnapshot upserts snap, replacing any prior snapshot for its
// aggregate id.
func (s *SnapshotStore) SaveSnapshot(snap aggregate.Snapshot) error {
	_, err := s.engine.Execute(context.Background(),
		`INSERT INTO snapshots (aggregate_id, aggregate_type, version, data, last_global_seq, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)
		 ON CONFLICT(aggregate_id) DO UPDATE SET
		   aggregate_type = excluded.aggregate_type,
		   version = excluded.version,
		   data = excluded.data,
		   created_at = excluded.created_at`,
		snap.AggregateID.String(), snap.AggregateType, snap.Version, snap.Data, int64(ids.FromTime(snap.CreatedAt)),
	)
	return err
}

// GetLatestSnapshot returns the most recent snapshot for aggregateID, or
// aggregate.ErrSnapshotNotFound if none exists.
func (s *SnapshotStore) GetLatestSnapshot(aggregateID ids.AggregateID) (aggregate.Snapshot, error) {
	row := s.engine.db.QueryRow(
		`SELECT aggregate_id, aggregate_type, version, data, created_at FROM snapshots WHERE aggregate_id = ?`,
		aggregateID.String(),
	)

	var (
		id, aggType string
		version     int64
		data        []byte
		createdAtMs int64
	)
	if err := row.Scan(&id, &aggType, &version, &data, &createdAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return aggregate.Snapshot{}, aggregate.ErrSnapshotNotFound
		}
		return aggregate.Snapshot{}, classifyError(err)
	}

	parsedID, err := ids.ParseAggregateID(id)
	if err != nil {
		return aggregate.Snapshot{}, err
	}
	return aggregate.Snapshot{
		AggregateID:   parsedID,
		AggregateType: aggType,
		Version:       version,
		Data:          data,
		CreatedAt:     ids.Timestamp(createdAtMs).Time(),
	}, nil
}

// DeleteOldSnapshots removes aggregateID's snapshot if it is older than
// olderThanVersion. The table holds at most one row per aggregate, so
// this is a point delete rather than a range cleanup.
func (s *SnapshotStore) DeleteOldSnapshots(aggregateID ids.AggregateID, olderThanVersion int64) error {
	_, err := s.engine.Execute(context.Background(),
		`DELETE FROM snapshots WHERE aggregate_id = ? AND version < ?`,
		aggregateID.String(), olderThanVersion,
	)
	return err
}
