package common_test

import (
	"testing"

	"github.com/dargueta/mfskit"
	c "github.com/dargueta/mfskit/file_systems/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageMap__MarkInUse__Basic(t *testing.T) {
	usage := c.NewUsageMap(2, 10)
	require.NoError(t, usage.MarkInUse(2))
	require.NoError(t, usage.MarkInUse(11))

	assert.True(t, usage.IsInUse(2))
	assert.True(t, usage.IsInUse(11))
	assert.False(t, usage.IsInUse(3))
	assert.EqualValues(t, 2, usage.CountInUse())
}

func TestUsageMap__MarkInUse__Twice(t *testing.T) {
	usage := c.NewUsageMap(2, 10)
	require.NoError(t, usage.MarkInUse(5))

	err := usage.MarkInUse(5)
	assert.ErrorIs(t, err, mfskit.ErrAlreadyInProgress)
	assert.EqualValues(t, 1, usage.CountInUse())
}

func TestUsageMap__MarkInUse__OutOfRange(t *testing.T) {
	usage := c.NewUsageMap(2, 10)
	assert.ErrorIs(t, usage.MarkInUse(1), mfskit.ErrArgumentOutOfRange)
	assert.ErrorIs(t, usage.MarkInUse(12), mfskit.ErrArgumentOutOfRange)
	assert.False(t, usage.IsInUse(12))
}

func TestUsageMap__LongestRun(t *testing.T) {
	usage := c.NewUsageMap(2, 10)
	// In use: 2, 3, 7. Free runs: [4, 6] and [8, 11].
	for _, unit := range []c.UnitID{2, 3, 7} {
		require.NoError(t, usage.MarkInUse(unit))
	}

	start, length := usage.LongestRun(false)
	assert.EqualValues(t, 8, start)
	assert.EqualValues(t, 4, length)

	start, length = usage.LongestRun(true)
	assert.EqualValues(t, 2, start)
	assert.EqualValues(t, 2, length)
}

func TestUsageMap__LongestRun__Empty(t *testing.T) {
	usage := c.NewUsageMap(2, 4)
	_, length := usage.LongestRun(true)
	assert.EqualValues(t, 0, length)
}
