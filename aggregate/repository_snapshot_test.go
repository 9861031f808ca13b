package aggregate_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/localfirst/eventcore/aggregate"
	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryEventLog is a minimal in-memory aggregate.EventLog for repository
// tests; store/sqlite's EventLog exercises the same contract against a
// real database.
type memoryEventLog struct {
	mu   sync.Mutex
	envs map[ids.AggregateID][]event.Envelope
}

func newMemoryEventLog() *memoryEventLog {
	return &memoryEventLog{envs: make(map[ids.AggregateID][]event.Envelope)}
}

func (l *memoryEventLog) AppendEvents(aggregateID ids.AggregateID, expectedVersion int64, envs []event.Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.envs[aggregateID]
	if int64(len(current)) != expectedVersion {
		return errors.New("version mismatch")
	}
	l.envs[aggregateID] = append(current, envs...)
	return nil
}

func (l *memoryEventLog) LoadEvents(aggregateID ids.AggregateID, afterVersion int64) ([]event.Envelope, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []event.Envelope
	for _, e := range l.envs[aggregateID] {
		if e.Version > afterVersion {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *memoryEventLog) GetAggregateVersion(aggregateID ids.AggregateID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.envs[aggregateID])), nil
}

// memorySnapshotStore is a minimal in-memory aggregate.SnapshotStore.
type memorySnapshotStore struct {
	mu    sync.Mutex
	snaps map[ids.AggregateID]aggregate.Snapshot
}

func newMemorySnapshotStore() *memorySnapshotStore {
	return &memorySnapshotStore{snaps: make(map[ids.AggregateID]aggregate.Snapshot)}
}

func (s *memorySnapshotStore) SaveSnapshot(snap aggregate.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.AggregateID] = snap
	return nil
}

func (s *memorySnapshotStore) GetLatestSnapshot(aggregateID ids.AggregateID) (aggregate.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[aggregateID]
	if !ok {
		return aggregate.Snapshot{}, aggregate.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *memorySnapshotStore) DeleteOldSnapshots(aggregateID ids.AggregateID, olderThanVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.snaps[aggregateID]; ok && snap.Version < olderThanVersion {
		delete(s.snaps, aggregateID)
	}
	return nil
}

// TestSnapshotRepositoryRestoresFromSnapshot covers the repository
// boundary: a load after a snapshot was written replays only the tail
// and reaches the same state as a full replay.
func TestSnapshotRepositoryRestoresFromSnapshot(t *testing.T) {
	log := newMemoryEventLog()
	snaps := newMemorySnapshotStore()
	strategy := aggregate.IntervalSnapshotStrategy{Interval: 2}
	repo := aggregate.NewSnapshotRepository[*counter](log, snaps, strategy, newCounter)

	id := ids.NewAggregateID()
	c := newCounter(id)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, c.Increment("actor-1", i))
	}
	require.NoError(t, repo.Save(c))

	// strategy.Interval=2 should have produced a snapshot at some version > 0.
	snap, err := snaps.GetLatestSnapshot(id)
	require.NoError(t, err)
	assert.True(t, snap.Version > 0)

	loaded, err := repo.Load(id)
	require.NoError(t, err)
	assert.Equal(t, int64(15), loaded.Total)
	assert.Equal(t, int64(5), loaded.Version())
}

// TestSnapshotRepositoryLoadWithoutSnapshotFallsBackToFullReplay asserts
// that a never-snapshotted aggregate still loads correctly.
func TestSnapshotRepositoryLoadWithoutSnapshotFallsBackToFullReplay(t *testing.T) {
	log := newMemoryEventLog()
	snaps := newMemorySnapshotStore()
	strategy := aggregate.IntervalSnapshotStrategy{Interval: 1000}
	repo := aggregate.NewSnapshotRepository[*counter](log, snaps, strategy, newCounter)

	id := ids.NewAggregateID()
	c := newCounter(id)
	require.NoError(t, c.Increment("actor-1", 7))
	require.NoError(t, repo.Save(c))

	_, err := snaps.GetLatestSnapshot(id)
	assert.True(t, errors.Is(err, aggregate.ErrSnapshotNotFound))

	loaded, err := repo.Load(id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), loaded.Total)
}
