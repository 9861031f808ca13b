package sqlite_test

import (
	"errors"
	"testing"
	"time"

	"github.com/localfirst/eventcore/aggregate"
	"github.com/localfirst/eventcore/ids"
	"github.com/localfirst/eventcore/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	store := sqlite.NewSnapshotStore(e)

	aggID := ids.NewAggregateID()
	_, err := store.GetLatestSnapshot(aggID)
	assert.True(t, errors.Is(err, aggregate.ErrSnapshotNotFound))

	snap := aggregate.Snapshot{
		AggregateID:   aggID,
		AggregateType: "Counter",
		Version:       5,
		Data:          []byte(`{"n":5}`),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.SaveSnapshot(snap))

	got, err := store.GetLatestSnapshot(aggID)
	require.NoError(t, err)
	assert.Equal(t, aggID, got.AggregateID)
	assert.Equal(t, int64(5), got.Version)
	assert.Equal(t, []byte(`{"n":5}`), got.Data)
}

func TestSnapshotStoreSaveUpserts(t *testing.T) {
	e := newTestEngine(t)
	store := sqlite.NewSnapshotStore(e)

	aggID := ids.NewAggregateID()
	require.NoError(t, store.SaveSnapshot(aggregate.Snapshot{
		AggregateID: aggID, AggregateType: "Counter", Version: 1, Data: []byte("v1"), CreatedAt: time.Now(),
	}))
	require.NoError(t, store.SaveSnapshot(aggregate.Snapshot{
		AggregateID: aggID, AggregateType: "Counter", Version: 2, Data: []byte("v2"), CreatedAt: time.Now(),
	}))

	got, err := store.GetLatestSnapshot(aggID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, []byte("v2"), got.Data)
}

func TestSnapshotStoreDeleteOld(t *testing.T) {
	e := newTestEngine(t)
	store := sqlite.NewSnapshotStore(e)

	aggID := ids.NewAggregateID()
	require.NoError(t, store.SaveSnapshot(aggregate.Snapshot{
		AggregateID: aggID, AggregateType: "Counter", Version: 3, Data: []byte("v3"), CreatedAt: time.Now(),
	}))
	require.NoError(t, store.DeleteOldSnapshots(aggID, 4))

	_, err := store.GetLatestSnapshot(aggID)
	assert.True(t, errors.Is(err, aggregate.ErrSnapshotNotFound))
}
