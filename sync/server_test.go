package sync_test

import (
	"fmt"
	"testing"

	"github.com/localfirst/eventcore/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wireEvents(n int, prefix string) []sync.WireEvent {
	out := make([]sync.WireEvent, n)
	for i := range out {
		out[i] = sync.WireEvent{EventID: fmt.Sprintf("%s-%d", prefix, i), RecordJSON: `{"n":1}`}
	}
	return out
}

// TestPushAssignsContiguousMonotonicSequence covers property 3: the
// assigned range is contiguous and strictly greater than the prior head.
func TestPushAssignsContiguousMonotonicSequence(t *testing.T) {
	srv := sync.NewServer(sync.NewMemoryBackend())

	r1, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 0, Events: wireEvents(3, "a")})
	require.NoError(t, err)
	require.True(t, r1.Accepted)
	assert.Equal(t, [2]int64{1, 3}, r1.AssignedRange)

	r2, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 3, Events: wireEvents(2, "b")})
	require.NoError(t, err)
	require.True(t, r2.Accepted)
	assert.Equal(t, [2]int64{4, 5}, r2.AssignedRange)
}

// TestPushRejectsServerAhead covers scenario B: a push with a stale
// expectedHead is rejected with server_ahead and the server head is
// unchanged.
func TestPushRejectsServerAhead(t *testing.T) {
	srv := sync.NewServer(sync.NewMemoryBackend())

	_, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 0, Events: wireEvents(2, "a")})
	require.NoError(t, err)

	result, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 0, Events: wireEvents(1, "b")})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, sync.ReasonServerAhead, result.Reason)
	assert.EqualValues(t, 2, result.Head)
}

// TestPushRejectsClientAhead covers the client_ahead conflict class: a
// push whose expectedHead claims a head the server has never reached.
func TestPushRejectsClientAhead(t *testing.T) {
	srv := sync.NewServer(sync.NewMemoryBackend())

	result, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 5, Events: wireEvents(1, "a")})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, sync.ReasonClientAhead, result.Reason)
	assert.EqualValues(t, 0, result.Head)
}

// TestPushRejectsDuplicateEventID covers scenario C: a push containing a
// previously accepted event_id is rejected and the head doesn't move.
func TestPushRejectsDuplicateEventID(t *testing.T) {
	backend := sync.NewMemoryBackend()
	srv := sync.NewServer(backend)

	_, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 0, Events: wireEvents(1, "dup")})
	require.NoError(t, err)

	head, err := backend.Head("s1")
	require.NoError(t, err)

	result, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: head, Events: wireEvents(1, "dup")})
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, sync.ReasonDuplicateEventID, result.Reason)

	newHead, err := backend.Head("s1")
	require.NoError(t, err)
	assert.Equal(t, head, newHead)
}

// TestPushAndPullRoundTrip covers scenario A: a pushed event is visible
// to a subsequent pull.
func TestPushAndPullRoundTrip(t *testing.T) {
	srv := sync.NewServer(sync.NewMemoryBackend())

	_, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 0, Events: wireEvents(3, "a")})
	require.NoError(t, err)

	result, err := srv.Pull(sync.PullRequest{StoreID: "s1", Since: 0, Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Events, 3)
	assert.EqualValues(t, 1, result.Events[0].GlobalSequence)
	assert.EqualValues(t, 3, result.Events[2].GlobalSequence)
	assert.EqualValues(t, 3, result.Head)
	assert.False(t, result.HasMore)
}

func TestPullPagesWithHasMore(t *testing.T) {
	srv := sync.NewServer(sync.NewMemoryBackend())
	_, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 0, Events: wireEvents(5, "a")})
	require.NoError(t, err)

	page, err := srv.Pull(sync.PullRequest{StoreID: "s1", Since: 0, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	require.True(t, page.HasMore)
	require.NotNil(t, page.NextSince)

	rest, err := srv.Pull(sync.PullRequest{StoreID: "s1", Since: *page.NextSince, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, rest.Events, 3)
	assert.False(t, rest.HasMore)
}

func TestPushRejectsEmptyEvents(t *testing.T) {
	srv := sync.NewServer(sync.NewMemoryBackend())
	_, err := srv.Push(sync.PushRequest{StoreID: "s1", ExpectedHead: 0})
	require.Error(t, err)
}
