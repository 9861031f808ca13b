package ids

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreIDRoundTrip(t *testing.T) {
	id := NewStoreID()
	parsed, err := ParseStoreID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseStoreIDRejectsV7(t *testing.T) {
	aggID := NewAggregateID()
	_, err := ParseStoreID(aggID.String())
	assert.Error(t, err)
}

func TestAggregateIDIsV7(t *testing.T) {
	id := NewAggregateID()
	_, err := ParseAggregateID(id.String())
	require.NoError(t, err)

	_, err = ParseAggregateID(NewStoreID().String())
	assert.Error(t, err, "a v4 store id must not parse as a v7 aggregate id")
}

func TestTimestampValid(t *testing.T) {
	assert.True(t, Timestamp(0).Valid())
	assert.True(t, Timestamp(123).Valid())
	assert.False(t, Timestamp(-1).Valid())
}

func TestTimestampRoundTrip(t *testing.T) {
	tm := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := FromTime(tm)
	assert.Equal(t, tm, ts.Time())
}

func TestEpochMonotonicity(t *testing.T) {
	e := ZeroEpoch
	for i := 0; i < 5; i++ {
		next := e.Next()
		assert.True(t, e.Before(next))
		e = next
	}
	five, err := NewEpoch(5)
	require.NoError(t, err)
	assert.True(t, e.Equal(five))
}

func TestEpochJSONRoundTrip(t *testing.T) {
	e, err := NewEpoch(42)
	require.NoError(t, err)

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, `"42"`, string(data))

	var decoded Epoch
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, e.Equal(decoded))
}

func TestEpochRejectsNegative(t *testing.T) {
	_, err := NewEpoch(-1)
	assert.Error(t, err)

	_, err = ParseEpoch("-3")
	assert.Error(t, err)
}

func TestYearMonthOrdering(t *testing.T) {
	jan := YearMonth{Year: 2026, Month: time.January}
	feb := jan.Next()
	assert.True(t, jan.Before(feb))
	assert.Equal(t, "2026-02", feb.String())

	dec := YearMonth{Year: 2026, Month: time.December}
	assert.Equal(t, YearMonth{Year: 2027, Month: time.January}, dec.Next())
}

func TestYearMonthJSON(t *testing.T) {
	ym := YearMonth{Year: 2026, Month: time.July}
	data, err := json.Marshal(ym)
	require.NoError(t, err)
	assert.Equal(t, `"2026-07"`, string(data))

	var decoded YearMonth
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ym, decoded)
}
