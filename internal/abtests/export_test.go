package abtests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorhub/backend/internal/models"
)

func TestRenderTestPDFCarriesConfiguredAuthor(t *testing.T) {
	test, variants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "Title A", Impressions: 1000, Clicks: 42, Views: 40, CTR: 0.042},
		models.TestVariant{Name: "B", Title: "Title B", Impressions: 980, Clicks: 55, Views: 51, CTR: 0.056},
	)
	test.CreatedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	test.UpdatedAt = test.CreatedAt
	report := &testReport{Test: test, Variants: variants}

	out, err := renderTestPDF(report, "Acme Studio")
	require.NoError(t, err)
	assert.Contains(t, string(out), "Acme Studio", "document metadata must carry the author")
}

func TestRenderTestPDFReproducible(t *testing.T) {
	test, variants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "Title A"},
		models.TestVariant{Name: "B", Title: "Title B"},
	)
	test.CreatedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	test.UpdatedAt = test.CreatedAt
	report := &testReport{Test: test, Variants: variants}

	first, err := renderTestPDF(report, "CreatorHub")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	again, err := renderTestPDF(report, "CreatorHub")
	require.NoError(t, err)
	assert.Equal(t, first, again, "identical inputs must give identical bytes")
}
