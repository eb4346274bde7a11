package bundle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSessions(0)

	assert.Equal(t, StepIdle, s.Step(1))
	assert.False(t, s.InProgress(1))

	s.Begin(1)
	assert.Equal(t, StepChoosingPackage, s.Step(1))
	assert.True(t, s.InProgress(1))

	ok := s.Update(1, func(sess *Session) {
		sess.Step = StepSelectingQuantity
		sess.PackageID = "3hr"
	})
	require.True(t, ok)

	sess, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, StepSelectingQuantity, sess.Step)
	assert.Equal(t, "3hr", sess.PackageID)

	s.Clear(1)
	assert.False(t, s.InProgress(1))
	assert.False(t, s.Update(1, func(*Session) {}))
}

func TestSessionBeginReplacesProgress(t *testing.T) {
	s := NewSessions(0)
	s.Begin(1)
	s.Update(1, func(sess *Session) {
		sess.Step = StepSubmittingPayment
		sess.Quantity = 5
	})

	s.Begin(1)
	sess, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, StepChoosingPackage, sess.Step)
	assert.Zero(t, sess.Quantity)
}

func TestSessionSweep(t *testing.T) {
	s := NewSessions(time.Minute)
	s.Begin(1)
	s.Begin(2)
	require.Equal(t, 2, s.Len())

	// Nothing is stale yet.
	assert.Zero(t, s.Sweep(time.Now()))
	assert.Equal(t, 2, s.Len())

	evicted := s.Sweep(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 2, evicted)
	assert.Zero(t, s.Len())
	assert.Equal(t, StepIdle, s.Step(1))
}

func TestSessionZeroTTLNeverExpires(t *testing.T) {
	s := NewSessions(0)
	s.Begin(1)
	assert.Zero(t, s.Sweep(time.Now().Add(24*time.Hour)))
	assert.True(t, s.InProgress(1))
}
