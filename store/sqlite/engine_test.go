package sqlite_test

import (
	"context"
	"testing"

	"github.com/localfirst/eventcore/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *sqlite.Engine {
	t.Helper()
	e, err := sqlite.Open(sqlite.WithDSN(":memory:"), sqlite.WithWALMode(false))
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })
	return e
}

func countEvents(t *testing.T, e *sqlite.Engine) int {
	t.Helper()
	rows, err := e.Query(context.Background(), "SELECT commit_sequence FROM events")
	require.NoError(t, err)
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n
}

// TestBatchAtomicity asserts that a batch with one failing statement
// leaves no observable effect from any statement in it.
func TestBatchAtomicity(t *testing.T) {
	e := newTestEngine(t)
	before := countEvents(t, e)

	ch := e.SubscribeTables("sub-1", []string{"EVENTS"})

	err := e.Batch(context.Background(), []sqlite.Statement{
		{SQL: "INSERT INTO events (event_id, aggregate_type, aggregate_id, event_type, payload_encrypted, version, occurred_at) VALUES ('e1','T','a1','Created',x'00',1,0)"},
		{SQL: "INSERT INTO missing_table (x) VALUES (1)"},
	})
	assert.Error(t, err)
	assert.Equal(t, before, countEvents(t, e))

	select {
	case <-ch:
		t.Fatal("no notification should be delivered for a rolled-back batch")
	default:
	}
}

// TestBatchCommitNotifiesSubscribers covers property 7: a committed batch
// delivers at least one notification per affected table.
func TestBatchCommitNotifiesSubscribers(t *testing.T) {
	e := newTestEngine(t)
	ch := e.SubscribeTables("sub-1", []string{"EVENTS"})

	err := e.Batch(context.Background(), []sqlite.Statement{
		{SQL: "INSERT INTO events (event_id, aggregate_type, aggregate_id, event_type, payload_encrypted, version, occurred_at) VALUES ('e1','T','a1','Created',x'00',1,0)"},
	})
	require.NoError(t, err)

	select {
	case tables := <-ch:
		assert.Contains(t, tables, "EVENTS")
	default:
		t.Fatal("expected a notification for the committed batch")
	}
}

func TestUnsubscribeTablesStopsDelivery(t *testing.T) {
	e := newTestEngine(t)
	ch := e.SubscribeTables("sub-1", []string{"EVENTS"})
	e.UnsubscribeTables("sub-1")

	_, open := <-ch
	assert.False(t, open)
}

func TestExecuteRejectsUnknownTable(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Execute(context.Background(), "INSERT INTO missing_table (x) VALUES (1)")
	assert.Error(t, err)
}
