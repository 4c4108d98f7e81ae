package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeasePolicy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		policy, err := NewLeasePolicy(time.Minute)
		require.NoError(t, err)
		assert.Equal(t, time.Minute, policy.Default())
	})

	t.Run("rejects non-positive default", func(t *testing.T) {
		policy, err := NewLeasePolicy(0)
		require.ErrorIs(t, err, ErrInvalidDefaultLease)
		assert.Nil(t, policy)

		policy, err = NewLeasePolicy(-time.Second)
		require.ErrorIs(t, err, ErrInvalidDefaultLease)
		assert.Nil(t, policy)
	})
}

func TestLeasePolicy_Resolve(t *testing.T) {
	policy, err := NewLeasePolicy(30 * time.Second)
	require.NoError(t, err)

	t.Run("explicit duration resolves to whole seconds", func(t *testing.T) {
		decision := policy.Resolve(90 * time.Second)
		assert.Equal(t, 90, decision.Seconds)
		assert.Equal(t, LeaseSourceExplicit, decision.Source)
		assert.False(t, decision.Clamped())
	})

	t.Run("fractional seconds truncate", func(t *testing.T) {
		decision := policy.Resolve(2500 * time.Millisecond)
		assert.Equal(t, 2, decision.Seconds)
		assert.Equal(t, LeaseSourceExplicit, decision.Source)
	})

	t.Run("zero request falls back to the default", func(t *testing.T) {
		decision := policy.Resolve(0)
		assert.Equal(t, 30, decision.Seconds)
		assert.True(t, decision.UsedDefault())
	})

	t.Run("sub-second request clamps to one second", func(t *testing.T) {
		decision := policy.Resolve(250 * time.Millisecond)
		assert.Equal(t, 1, decision.Seconds)
		assert.True(t, decision.Clamped())
	})

	t.Run("negative request clamps to one second", func(t *testing.T) {
		decision := policy.Resolve(-time.Minute)
		assert.Equal(t, 1, decision.Seconds)
		assert.True(t, decision.Clamped())
	})

	t.Run("nil policy resolves to the default source", func(t *testing.T) {
		var nilPolicy *LeasePolicy
		decision := nilPolicy.Resolve(10 * time.Second)
		assert.Zero(t, decision.Seconds)
		assert.True(t, decision.UsedDefault())
	})
}
