package abtests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
)

func selectorWithVariants(t *testing.T, minImpressions int64, variants ...models.TestVariant) (*WinnerSelector, *models.ABTest) {
	t.Helper()
	store := newFakeStore()
	test, created := draftTest(models.TestTypeThumbnail, variants...)
	test.Status = models.TestActive
	store.addTest(test, created)
	return NewWinnerSelector(store, minImpressions, zap.NewNop()), test
}

func variantStats(name string, impressions, clicks int64) models.TestVariant {
	v := models.TestVariant{Name: name, ThumbnailURL: "thumbnails/x/" + name + ".png", Impressions: impressions, Clicks: clicks}
	v.CTR = v.ComputeCTR()
	return v
}

func TestWinnerRequiresMinimumImpressions(t *testing.T) {
	selector, test := selectorWithVariants(t, 100,
		variantStats("A", 50, 10),
		variantStats("B", 5000, 400),
	)
	verdict, err := selector.Evaluate(context.Background(), test)
	require.NoError(t, err)
	assert.False(t, verdict.Qualified)
	assert.Nil(t, verdict.Winner)
}

func TestWinnerSelectedAboveThreshold(t *testing.T) {
	selector, test := selectorWithVariants(t, 100,
		variantStats("A", 5000, 100), // CTR 0.02
		variantStats("B", 5000, 300), // CTR 0.06
	)
	verdict, err := selector.Evaluate(context.Background(), test)
	require.NoError(t, err)
	require.True(t, verdict.Qualified)
	assert.Equal(t, "B", verdict.Winner.Name)
	assert.Greater(t, verdict.Confidence, 0.95)
}

func TestNoWinnerWithinThreshold(t *testing.T) {
	// 2% relative lead, threshold is 5%.
	selector, test := selectorWithVariants(t, 100,
		variantStats("A", 10000, 500), // CTR 0.050
		variantStats("B", 10000, 510), // CTR 0.051
	)
	verdict, err := selector.Evaluate(context.Background(), test)
	require.NoError(t, err)
	assert.False(t, verdict.Qualified)
}

func TestWinnerAgainstThreeVariants(t *testing.T) {
	// Leader must beat every other variant, not just the runner-up.
	selector, test := selectorWithVariants(t, 100,
		variantStats("A", 5000, 290), // CTR 0.058, within threshold of leader
		variantStats("B", 5000, 300), // CTR 0.060
		variantStats("C", 5000, 100), // CTR 0.020
	)
	verdict, err := selector.Evaluate(context.Background(), test)
	require.NoError(t, err)
	assert.False(t, verdict.Qualified, "leader does not clear threshold against A")
}

func TestWinnerTieBreaksDeterministically(t *testing.T) {
	selector, test := selectorWithVariants(t, 100,
		variantStats("B", 5000, 300),
		variantStats("A", 5000, 300),
	)
	verdict, err := selector.Evaluate(context.Background(), test)
	require.NoError(t, err)
	// Identical CTRs never qualify, but the ordering must be stable.
	assert.False(t, verdict.Qualified)
}

func TestZeroImpressionsGiveZeroCTR(t *testing.T) {
	v := models.TestVariant{Impressions: 0, Clicks: 0}
	assert.Zero(t, v.ComputeCTR())

	v = models.TestVariant{Impressions: 1000, Clicks: 50}
	assert.InDelta(t, 0.05, v.ComputeCTR(), 1e-9)
}

func TestBestPicksHighestCTRWithNameTieBreak(t *testing.T) {
	a := variantStats("A", 1000, 50)
	b := variantStats("B", 1000, 50)
	c := variantStats("C", 1000, 80)

	best, err := Best([]models.TestVariant{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, "C", best.Name)

	best, err = Best([]models.TestVariant{b, a})
	require.NoError(t, err)
	assert.Equal(t, "A", best.Name, "ties break on name")

	_, err = Best(nil)
	assert.ErrorIs(t, err, ErrNoVariants)
}

func TestStatusTransitionTable(t *testing.T) {
	allowed := map[[2]models.TestStatus]bool{
		{models.TestDraft, models.TestActive}:      true,
		{models.TestActive, models.TestPaused}:     true,
		{models.TestPaused, models.TestActive}:     true,
		{models.TestActive, models.TestCompleted}:  true,
		{models.TestPaused, models.TestCompleted}:  true,
	}
	statuses := []models.TestStatus{models.TestDraft, models.TestActive, models.TestPaused, models.TestCompleted}
	for _, from := range statuses {
		for _, to := range statuses {
			err := models.ValidateTransition(from, to)
			if allowed[[2]models.TestStatus{from, to}] {
				assert.NoError(t, err, "%s -> %s should be allowed", from, to)
			} else {
				assert.ErrorIs(t, err, models.ErrInvalidTransition, "%s -> %s should be rejected", from, to)
			}
		}
	}
}
