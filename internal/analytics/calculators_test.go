package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrowthRate(t *testing.T) {
	rate, err := GrowthRate(100, 150)
	require.NoError(t, err)
	assert.InDelta(t, 50, rate, 1e-9)

	rate, err = GrowthRate(200, 150)
	require.NoError(t, err)
	assert.InDelta(t, -25, rate, 1e-9)

	_, err = GrowthRate(0, 150)
	assert.ErrorIs(t, err, ErrBadDenominator)

	_, err = GrowthRate(-10, 150)
	assert.ErrorIs(t, err, ErrBadDenominator)
}

func TestEngagementRate(t *testing.T) {
	rate, err := EngagementRate(80, 15, 5, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 10, rate, 1e-9)

	_, err = EngagementRate(1, 1, 1, 0)
	assert.ErrorIs(t, err, ErrBadDenominator)
}

func TestClickThroughRate(t *testing.T) {
	rate, err := ClickThroughRate(50, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 5, rate, 1e-9)

	_, err = ClickThroughRate(50, 0)
	assert.ErrorIs(t, err, ErrBadDenominator)

	_, err = ClickThroughRate(50, -1)
	assert.ErrorIs(t, err, ErrBadDenominator)
}

func TestAverageViewDuration(t *testing.T) {
	avg, err := AverageViewDuration(100, 1200)
	require.NoError(t, err)
	assert.InDelta(t, 5, avg, 1e-9)

	_, err = AverageViewDuration(100, 0)
	assert.ErrorIs(t, err, ErrBadDenominator)
}
