package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	// Forward moves are allowed.
	assert.True(t, StatusUnset.CanTransitionTo(StatusSent))
	assert.True(t, StatusUnset.CanTransitionTo(StatusRead))
	assert.True(t, StatusSent.CanTransitionTo(StatusDelivered))
	assert.True(t, StatusSent.CanTransitionTo(StatusRead))
	assert.True(t, StatusSent.CanTransitionTo(StatusFailed))
	assert.True(t, StatusDelivered.CanTransitionTo(StatusRead))

	// Backward moves are not.
	assert.False(t, StatusDelivered.CanTransitionTo(StatusSent))
	assert.False(t, StatusRead.CanTransitionTo(StatusDelivered))
	assert.False(t, StatusRead.CanTransitionTo(StatusSent))

	// Terminal states accept nothing.
	assert.False(t, StatusRead.CanTransitionTo(StatusRead))
	assert.False(t, StatusFailed.CanTransitionTo(StatusSent))
	assert.False(t, StatusFailed.CanTransitionTo(StatusRead))
}

func TestUnknownStatusAllowsAnyTransition(t *testing.T) {
	legacy := Status("archived")
	assert.True(t, legacy.CanTransitionTo(StatusRead))
	assert.True(t, legacy.CanTransitionTo(StatusSent))
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusRead.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusSent.Terminal())
	assert.False(t, StatusDelivered.Terminal())
	assert.False(t, StatusUnset.Terminal())
}
