package keyring_test

import (
	"testing"

	"github.com/localfirst/eventcore/ids"
	"github.com/localfirst/eventcore/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScopeRotation covers creating a scope with owner "U", adding
// member "V" as editor, and rotating the epoch twice.
func TestScopeRotation(t *testing.T) {
	id := ids.NewAggregateID()
	s := keyring.NewScope(id)

	require.NoError(t, s.Create("U", "U", 1000))
	require.NoError(t, s.AddMember("U", "V", keyring.RoleEditor, 1001))
	require.NoError(t, s.RotateEpoch("U", "quarterly rotation"))
	require.NoError(t, s.RotateEpoch("U", "quarterly rotation"))

	assert.Equal(t, "2", s.Epoch.String())
	assert.True(t, s.Members["U"].Active())
	assert.Equal(t, keyring.RoleOwner, s.Members["U"].Role)
	assert.True(t, s.Members["V"].Active())
	assert.Equal(t, keyring.RoleEditor, s.Members["V"].Role)

	events := s.UncommittedEvents()
	require.Len(t, events, 5)
	assert.Equal(t, "ScopeCreated", events[0].EventType)
	assert.Equal(t, "ScopeMemberAdded", events[1].EventType)
	assert.Equal(t, "ScopeMemberAdded", events[2].EventType)
	assert.Equal(t, "ScopeEpochRotated", events[3].EventType)
	assert.Equal(t, "ScopeEpochRotated", events[4].EventType)
}

func TestScopeOwnerCannotBeRemoved(t *testing.T) {
	s := keyring.NewScope(ids.NewAggregateID())
	require.NoError(t, s.Create("U", "U", 1000))

	err := s.RemoveMember("U", "U", 1001)
	assert.Error(t, err)
}

func TestScopeRejectsDoubleActiveMembership(t *testing.T) {
	s := keyring.NewScope(ids.NewAggregateID())
	require.NoError(t, s.Create("U", "U", 1000))
	require.NoError(t, s.AddMember("U", "V", keyring.RoleViewer, 1001))

	err := s.AddMember("U", "V", keyring.RoleEditor, 1002)
	assert.Error(t, err)
}
