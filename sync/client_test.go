package sync_test

import (
	"testing"

	"github.com/localfirst/eventcore/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLocalLog is an in-memory LocalLog: pending holds unpushed events,
// applied records everything merged in from a pull.
type fakeLocalLog struct {
	head    int64
	pending []sync.WireEvent
	applied []sync.PulledEvent
}

func (f *fakeLocalLog) Pending() ([]sync.WireEvent, int64, error) {
	return f.pending, f.head, nil
}

func (f *fakeLocalLog) Acknowledge(assignedRange [2]int64) error {
	f.pending = nil
	f.head = assignedRange[1]
	return nil
}

func (f *fakeLocalLog) ApplyPulled(events []sync.PulledEvent, newHead int64) error {
	f.applied = append(f.applied, events...)
	f.head = newHead
	return nil
}

func TestClientSyncPushesPendingEvents(t *testing.T) {
	srv := sync.NewServer(sync.NewMemoryBackend())
	local := &fakeLocalLog{pending: wireEvents(2, "local")}
	client := sync.NewClient("s1", sync.LocalTransport{Server: srv}, local)

	require.NoError(t, client.Sync())
	assert.Empty(t, local.pending)
	assert.EqualValues(t, 2, local.head)
}

// TestClientRebasesOnServerAhead covers the rebase loop: another writer
// pushed past the client's head, so the client must pull those events,
// apply them, and retry its push against the new head.
func TestClientRebasesOnServerAhead(t *testing.T) {
	backend := sync.NewMemoryBackend()
	srv := sync.NewServer(backend)

	_, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 0, Events: wireEvents(2, "remote")})
	require.NoError(t, err)

	local := &fakeLocalLog{head: 0, pending: wireEvents(1, "local")}
	client := sync.NewClient("s1", sync.LocalTransport{Server: srv}, local)

	require.NoError(t, client.Sync())
	require.Len(t, local.applied, 2)
	assert.EqualValues(t, 3, local.head)
	assert.Empty(t, local.pending)

	head, err := backend.Head("s1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, head)
}

func TestClientSyncNoPendingIsNoop(t *testing.T) {
	srv := sync.NewServer(sync.NewMemoryBackend())
	local := &fakeLocalLog{}
	client := sync.NewClient("s1", sync.LocalTransport{Server: srv}, local)
	require.NoError(t, client.Sync())
}

func TestClientSyncRejectsDuplicateEventID(t *testing.T) {
	backend := sync.NewMemoryBackend()
	srv := sync.NewServer(backend)

	_, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 0, Events: wireEvents(1, "dup")})
	require.NoError(t, err)

	local := &fakeLocalLog{head: 1, pending: wireEvents(1, "dup")}
	client := sync.NewClient("s1", sync.LocalTransport{Server: srv}, local)

	err = client.Sync()
	require.Error(t, err)
}
