package sqlite_test

import (
	"encoding/json"
	"testing"

	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
	"github.com/localfirst/eventcore/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEventTag = "test.Bumped"

type bumped struct{ N int64 }

func (bumped) EventType() string { return testEventTag }
func (p bumped) Encode() (json.RawMessage, error) {
	n, err := event.EncodeFloat(float64(p.N))
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"n": n})
}

func decodeBumped(raw json.RawMessage) (event.Payload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	nRaw, err := event.RequireField(obj, "n")
	if err != nil {
		return nil, err
	}
	n, err := event.DecodeFloat(nRaw)
	if err != nil {
		return nil, err
	}
	return bumped{N: int64(n)}, nil
}

// TestAppendEventsVersionDensity asserts that after successive appends,
// versions for one aggregate form {1..N} with no gaps.
func TestAppendEventsVersionDensity(t *testing.T) {
	e := newTestEngine(t)
	reg := event.NewRegistry()
	reg.Register(testEventTag, decodeBumped)
	log := sqlite.NewEventLog(e, reg)

	aggID := ids.NewAggregateID()
	for i := int64(1); i <= 3; i++ {
		env := event.New(aggID, "Counter", i, "actor-1", bumped{N: i})
		require.NoError(t, log.AppendEvents(aggID, i-1, []event.Envelope{env}))
	}

	version, err := log.GetAggregateVersion(aggID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	loaded, err := log.LoadEvents(aggID, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i, env := range loaded {
		assert.Equal(t, int64(i+1), env.Version)
	}
}

// TestAppendEventsRejectsVersionMismatch exercises the optimistic
// concurrency check underlying the log's contribution to property 1.
func TestAppendEventsRejectsVersionMismatch(t *testing.T) {
	e := newTestEngine(t)
	reg := event.NewRegistry()
	reg.Register(testEventTag, decodeBumped)
	log := sqlite.NewEventLog(e, reg)

	aggID := ids.NewAggregateID()
	env1 := event.New(aggID, "Counter", 1, "actor-1", bumped{N: 1})
	require.NoError(t, log.AppendEvents(aggID, 0, []event.Envelope{env1}))

	env2 := event.New(aggID, "Counter", 2, "actor-1", bumped{N: 2})
	err := log.AppendEvents(aggID, 0, []event.Envelope{env2})
	assert.Error(t, err)
}

// TestAppendEventsRejectsDuplicateEventID covers property 2: event_id is
// unique across the log (the UNIQUE constraint on events.event_id).
func TestAppendEventsRejectsDuplicateEventID(t *testing.T) {
	e := newTestEngine(t)
	reg := event.NewRegistry()
	reg.Register(testEventTag, decodeBumped)
	log := sqlite.NewEventLog(e, reg)

	aggID := ids.NewAggregateID()
	env := event.New(aggID, "Counter", 1, "actor-1", bumped{N: 1})
	require.NoError(t, log.AppendEvents(aggID, 0, []event.Envelope{env}))

	otherAgg := ids.NewAggregateID()
	dup := env
	dup.AggregateID = otherAgg
	dup.Version = 1
	err := log.AppendEvents(otherAgg, 0, []event.Envelope{dup})
	assert.Error(t, err)
}
