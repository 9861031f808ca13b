package aggregate

import (
	"time"

	"github.com/localfirst/eventcore/ids"
)

// Snapshot is a serialized aggregate state at a specific version.
type Snapshot struct {
	AggregateID   ids.AggregateID
	AggregateType string
	Version       int64
	Data          []byte
	CreatedAt     time.Time
}

// Snapshotable is implemented by aggregates that support snapshotting.
type Snapshotable interface {
	MarshalSnapshot() ([]byte, error)
	UnmarshalSnapshot(data []byte) error
}

// SnapshotStrategy decides when a repository should write a new snapshot.
type SnapshotStrategy interface {
	ShouldSnapshot(currentVersion, eventsSinceSnapshot int64) bool
}

// IntervalSnapshotStrategy snapshots every N applied events.
type IntervalSnapshotStrategy struct {
	Interval int64
}

func (s IntervalSnapshotStrategy) ShouldSnapshot(_ int64, eventsSinceSnapshot int64) bool {
	if s.Interval <= 0 {
		return false
	}
	return eventsSinceSnapshot >= s.Interval
}

// ErrSnapshotNotFound is returned by a SnapshotStore when an aggregate has
// never been snapshotted.
var ErrSnapshotNotFound = errNotFound("aggregate: snapshot not found")

type errNotFound string

func (e errNotFound) Error() string { return string(e) }

// SnapshotStore persists and retrieves Snapshots, keyed by aggregate id.
// Implementations live alongside a concrete storage engine (store/sqlite's
// SnapshotStore is the owner's).
type SnapshotStore interface {
	SaveSnapshot(snap Snapshot) error
	GetLatestSnapshot(aggregateID ids.AggregateID) (Snapshot, error)
	DeleteOldSnapshots(aggregateID ids.AggregateID, olderThanVersion int64) error
}
