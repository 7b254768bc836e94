package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorhub/backend/internal/models"
)

func samplePoints() []models.AnalyticsPoint {
	day1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	return []models.AnalyticsPoint{
		{VideoID: "vid-1", MetricType: "views", Value: 1200, Date: day1},
		{VideoID: "vid-1", MetricType: "watch_time", Value: 4500, Date: day1},
		{VideoID: "vid-1", MetricType: "views", Value: 900, Date: day2},
	}
}

func sampleHistory() []models.ChannelMetrics {
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return []models.ChannelMetrics{
		{ChannelID: "ch-1", Subscribers: 10000, TotalViews: 500000, TotalWatchTime: 80000, AverageViewDuration: 210.5, Date: day},
		{ChannelID: "ch-1", Subscribers: 10050, TotalViews: 502100, TotalWatchTime: 80400, AverageViewDuration: 212.1, Date: day.AddDate(0, 0, 1)},
	}
}

func TestVideoMetricsCSVContent(t *testing.T) {
	out, err := VideoMetricsCSV("vid-1", samplePoints())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "video_id,date,metric,value", lines[0])
	assert.Equal(t, "vid-1,2026-08-01,views,1200.0000", lines[1])
	assert.Equal(t, "vid-1,2026-08-02,views,900.0000", lines[3])
}

func TestVideoMetricsCSVReproducible(t *testing.T) {
	first, err := VideoMetricsCSV("vid-1", samplePoints())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := VideoMetricsCSV("vid-1", samplePoints())
		require.NoError(t, err)
		assert.Equal(t, first, again, "identical inputs must give identical bytes")
	}
}

func TestChannelMetricsCSVReproducible(t *testing.T) {
	first, err := ChannelMetricsCSV(sampleHistory())
	require.NoError(t, err)
	again, err := ChannelMetricsCSV(sampleHistory())
	require.NoError(t, err)
	assert.Equal(t, first, again)

	lines := strings.Split(strings.TrimSpace(string(first)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2026-08-01,10000,500000,80000,210.50", lines[1])
}

func TestVideoMetricsPDFReproducible(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	first, err := VideoMetricsPDF("vid-1", start, end, samplePoints(), "CreatorHub")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// The clock between the two renders must not leak into the output.
	time.Sleep(5 * time.Millisecond)
	again, err := VideoMetricsPDF("vid-1", start, end, samplePoints(), "CreatorHub")
	require.NoError(t, err)
	assert.Equal(t, first, again, "identical inputs must give identical bytes")
}

func TestVideoMetricsPDFCarriesConfiguredAuthor(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	out, err := VideoMetricsPDF("vid-1", start, end, samplePoints(), "Acme Studio")
	require.NoError(t, err)
	assert.Contains(t, string(out), "Acme Studio", "document metadata must carry the author")
}

func TestChannelMetricsPDFReproducible(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	first, err := ChannelMetricsPDF("ch-1", start, end, sampleHistory(), "CreatorHub")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	again, err := ChannelMetricsPDF("ch-1", start, end, sampleHistory(), "CreatorHub")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}
