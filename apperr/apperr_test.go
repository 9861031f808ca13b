package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/localfirst/eventcore/apperr"
	"github.com/stretchr/testify/assert"
)

func TestCodePreservedThroughWrapping(t *testing.T) {
	base := apperr.New(apperr.CodeDomain, "archived aggregate")
	wrapped := fmt.Errorf("command failed: %w", base)

	code, ok := apperr.AsCode(wrapped)
	assert.True(t, ok)
	assert.Equal(t, apperr.CodeDomain, code)
	assert.True(t, apperr.Is(wrapped, apperr.CodeDomain))
	assert.False(t, apperr.Is(wrapped, apperr.CodeValidation))
}

func TestErrorsIsAgainstSentinel(t *testing.T) {
	err := apperr.New(apperr.CodeServerAheadConflict, "server ahead").WithDetails(map[string]string{"head": "3"})
	assert.True(t, errors.Is(err, apperr.Sentinel(apperr.CodeServerAheadConflict)))
	assert.False(t, errors.Is(err, apperr.Sentinel(apperr.CodeDuplicateEventID)))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := apperr.Wrap(apperr.CodeDbLocked, cause, "busy")
	assert.ErrorIs(t, err, cause)
}

func TestRemediationSurfacesInMessage(t *testing.T) {
	err := apperr.New(apperr.CodeDbInvalidState, "private storage unavailable").
		WithRemediation("reset local state and restore from backup")
	assert.Contains(t, err.Error(), "reset local state and restore from backup")
}
