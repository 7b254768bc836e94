package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// at builds a timestamp on a given weekday and hour.
func at(t *testing.T, weekday time.Weekday, hour int) time.Time {
	t.Helper()
	// 2026-08-03 is a Monday.
	base := time.Date(2026, 8, 3, hour, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, (int(weekday)+6)%7)
}

func TestRecommendPostingTimesRanksByEngagement(t *testing.T) {
	samples := []EngagementSample{
		{PublishedAt: at(t, time.Monday, 9), Engagement: 2.0},
		{PublishedAt: at(t, time.Monday, 9), Engagement: 4.0},
		{PublishedAt: at(t, time.Friday, 18), Engagement: 8.0},
		{PublishedAt: at(t, time.Friday, 18), Engagement: 10.0},
		{PublishedAt: at(t, time.Wednesday, 12), Engagement: 5.0},
	}
	slots := RecommendPostingTimes(samples, 0)
	require.Len(t, slots, 3)

	assert.Equal(t, 4, slots[0].DayOfWeek, "Friday is day 4 Monday-indexed")
	assert.Equal(t, 18, slots[0].Hour)
	assert.InDelta(t, 9.0, slots[0].ExpectedEngagement, 1e-9)
	assert.Equal(t, 2, slots[0].Samples)

	assert.Equal(t, 2, slots[1].DayOfWeek)
	assert.InDelta(t, 5.0, slots[1].ExpectedEngagement, 1e-9)

	assert.Equal(t, 0, slots[2].DayOfWeek)
	assert.InDelta(t, 3.0, slots[2].ExpectedEngagement, 1e-9)
}

func TestRecommendPostingTimesConfidenceSaturates(t *testing.T) {
	var samples []EngagementSample
	for i := 0; i < 20; i++ {
		samples = append(samples, EngagementSample{PublishedAt: at(t, time.Tuesday, 15), Engagement: 3})
	}
	samples = append(samples, EngagementSample{PublishedAt: at(t, time.Sunday, 10), Engagement: 1})

	slots := RecommendPostingTimes(samples, 0)
	require.Len(t, slots, 2)
	assert.InDelta(t, 1.0, slots[0].Confidence, 1e-9, "20 samples saturate confidence")
	assert.InDelta(t, 1.0/8, slots[1].Confidence, 1e-9)
}

func TestRecommendPostingTimesLimit(t *testing.T) {
	var samples []EngagementSample
	for hour := 0; hour < 10; hour++ {
		samples = append(samples, EngagementSample{
			PublishedAt: at(t, time.Monday, hour),
			Engagement:  float64(hour),
		})
	}
	slots := RecommendPostingTimes(samples, 3)
	require.Len(t, slots, 3)
	assert.Equal(t, 9, slots[0].Hour)
}

func TestRecommendPostingTimesDeterministicTieBreak(t *testing.T) {
	samples := []EngagementSample{
		{PublishedAt: at(t, time.Thursday, 20), Engagement: 5},
		{PublishedAt: at(t, time.Monday, 8), Engagement: 5},
		{PublishedAt: at(t, time.Monday, 17), Engagement: 5},
	}
	first := RecommendPostingTimes(samples, 0)
	require.Len(t, first, 3)
	assert.Equal(t, 0, first[0].DayOfWeek)
	assert.Equal(t, 8, first[0].Hour)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, RecommendPostingTimes(samples, 0))
	}
}

func TestRecommendPostingTimesEmptyInput(t *testing.T) {
	assert.Empty(t, RecommendPostingTimes(nil, 5))
}
