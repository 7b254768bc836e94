package youtube

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDailyReportIncludesImpressions(t *testing.T) {
	raw := `{
		"columnHeaders": [
			{"name": "day"}, {"name": "views"}, {"name": "likes"},
			{"name": "annotationImpressions"}, {"name": "annotationClickThroughRate"}
		],
		"rows": [["2026-08-01", 120, 9, 950, 0.042]]
	}`
	var body reportBody
	require.NoError(t, json.Unmarshal([]byte(raw), &body))

	got, err := decodeDailyReport(body)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(120), got[0].Views)
	assert.Equal(t, int64(950), got[0].Impressions)
	assert.InDelta(t, 0.042, got[0].ImpressionsCTR, 1e-9)
}

func TestDecodeDailyReportRejectsBadDay(t *testing.T) {
	raw := `{"columnHeaders": [{"name": "day"}], "rows": [["yesterday"]]}`
	var body reportBody
	require.NoError(t, json.Unmarshal([]byte(raw), &body))

	_, err := decodeDailyReport(body)
	assert.Error(t, err)
}
