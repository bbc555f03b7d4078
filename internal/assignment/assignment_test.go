package assignment

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstEligible(t *testing.T) {
	policy := NewFirstEligible()

	id, err := policy.Assign([]snowflake.ID{30, 10, 20})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(30), id)

	id, err = policy.Assign([]snowflake.ID{0, 20})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(20), id)
}

func TestFirstEligibleEmpty(t *testing.T) {
	_, err := NewFirstEligible().Assign(nil)
	assert.ErrorIs(t, err, ErrNoEligibleProvider)
}
