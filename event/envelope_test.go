package event_test

import (
	"testing"

	"github.com/localfirst/eventcore/event"
	"github.com/localfirst/eventcore/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeToFromRecordRoundTrip(t *testing.T) {
	reg := event.NewRegistry()
	reg.Register(sampleTag, decodeSample)

	aggID := ids.NewAggregateID()
	payload := samplePayload{Fields: sampleFields{Name: "round-trip", Amount: 1.5, Blob: []byte("x")}}
	env := event.New(aggID, "TestAggregate", 1, "actor-1", payload)
	env.Metadata.CorrelationID = event.Some("corr-1")

	rec, err := event.ToRecord(env)
	require.NoError(t, err)
	assert.Equal(t, env.EventID.String(), rec.ID)
	assert.Equal(t, int64(1), rec.Version)
	require.NotNil(t, rec.CorrelationID)
	assert.Equal(t, "corr-1", *rec.CorrelationID)
	assert.Nil(t, rec.CausationID)

	decoded, err := event.FromRecord(rec, reg)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)
	assert.Equal(t, env.AggregateID, decoded.AggregateID)
	assert.Equal(t, env.Version, decoded.Version)
	assert.Equal(t, env.Metadata.ActorID, decoded.Metadata.ActorID)
	assert.Equal(t, "corr-1", decoded.Metadata.CorrelationID.Value)

	got := decoded.Payload.(samplePayload)
	assert.Equal(t, payload.Fields.Name, got.Fields.Name)
}

func TestFromRecordRejectsNegativeOccurredAt(t *testing.T) {
	reg := event.NewRegistry()
	rec := event.Record{
		ID:            ids.NewEventID().String(),
		AggregateID:   ids.NewAggregateID().String(),
		AggregateType: "T",
		EventType:     "whatever",
		Payload:       "",
		Version:       1,
		OccurredAt:    -1,
	}
	_, err := event.FromRecord(rec, reg)
	assert.Error(t, err)
}
