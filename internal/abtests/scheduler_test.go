package abtests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
)

func activeTest(store *fakeStore, testType models.TestType, variants ...models.TestVariant) (*models.ABTest, []models.TestVariant) {
	test, created := draftTest(testType, variants...)
	test.Status = models.TestActive
	start := time.Now().Add(-24 * time.Hour).UTC()
	end := start.Add(48 * time.Hour)
	test.StartDate, test.EndDate = &start, &end
	store.addTest(test, created)
	return test, created
}

func TestRotateAdvancesRoundRobin(t *testing.T) {
	store := newFakeStore()
	updater := &fakeUpdater{}
	scheduler := NewScheduler(store, updater, nil, zap.NewNop())

	test, variants := activeTest(store, models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "title a"},
		models.TestVariant{Name: "B", Title: "title b"},
		models.TestVariant{Name: "C", Title: "title c"},
	)

	// Variant B applied two rotation periods ago.
	applied := time.Now().Add(-8 * time.Hour).UTC()
	require.NoError(t, store.MarkVariantApplied(context.Background(), variants[1].ID, applied))

	require.NoError(t, scheduler.Rotate(context.Background(), test.ID))
	assert.Equal(t, "title c", updater.title)

	current, err := store.CurrentVariant(context.Background(), test.ID)
	require.NoError(t, err)
	assert.Equal(t, "C", current.Name)
}

func TestRotateWrapsToFirstVariant(t *testing.T) {
	store := newFakeStore()
	updater := &fakeUpdater{}
	scheduler := NewScheduler(store, updater, nil, zap.NewNop())

	test, variants := activeTest(store, models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "title a"},
		models.TestVariant{Name: "B", Title: "title b"},
	)
	applied := time.Now().Add(-5 * time.Hour).UTC()
	require.NoError(t, store.MarkVariantApplied(context.Background(), variants[1].ID, applied))

	require.NoError(t, scheduler.Rotate(context.Background(), test.ID))
	assert.Equal(t, "title a", updater.title)
}

func TestRotateSkipsWhenNotDue(t *testing.T) {
	store := newFakeStore()
	updater := &fakeUpdater{}
	scheduler := NewScheduler(store, updater, nil, zap.NewNop())

	test, variants := activeTest(store, models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "title a"},
		models.TestVariant{Name: "B", Title: "title b"},
	)
	// Applied just now; rotation frequency is 4h.
	applied := time.Now().UTC()
	require.NoError(t, store.MarkVariantApplied(context.Background(), variants[0].ID, applied))

	require.NoError(t, scheduler.Rotate(context.Background(), test.ID))
	assert.Empty(t, updater.title, "no rotation should have happened")
}

func TestRotateIgnoresPausedTest(t *testing.T) {
	store := newFakeStore()
	updater := &fakeUpdater{}
	scheduler := NewScheduler(store, updater, nil, zap.NewNop())

	test, _ := activeTest(store, models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "title a"},
		models.TestVariant{Name: "B", Title: "title b"},
	)
	_, err := store.SetStatus(context.Background(), test.ID, models.TestActive, models.TestPaused)
	require.NoError(t, err)

	require.NoError(t, scheduler.Rotate(context.Background(), test.ID))
	assert.Empty(t, updater.title)
}

func TestCombinedApplySetsTitleAndThumbnail(t *testing.T) {
	store := newFakeStore()
	updater := &fakeUpdater{}
	events := &capturingPublisher{}
	scheduler := NewScheduler(store, updater, events, zap.NewNop())

	test, variants := activeTest(store, models.TestTypeCombined,
		models.TestVariant{Name: "A", Title: "title a", ThumbnailURL: "thumbnails/x/a.png"},
		models.TestVariant{Name: "B", Title: "title b", ThumbnailURL: "thumbnails/x/b.png"},
	)

	require.NoError(t, scheduler.Apply(context.Background(), test, nil, &variants[0]))
	assert.Equal(t, "title a", updater.title)
	assert.Equal(t, "thumbnails/x/a.png", updater.thumbnail)
	assert.Contains(t, events.types(), "variant_changed")
}

func TestCombinedApplyRollsBackTitleOnThumbnailFailure(t *testing.T) {
	store := newFakeStore()
	updater := &fakeUpdater{failThumbnail: errAPIDown}
	scheduler := NewScheduler(store, updater, nil, zap.NewNop())

	test, variants := activeTest(store, models.TestTypeCombined,
		models.TestVariant{Name: "A", Title: "title a", ThumbnailURL: "thumbnails/x/a.png"},
		models.TestVariant{Name: "B", Title: "title b", ThumbnailURL: "thumbnails/x/b.png"},
	)

	// No prior variant: rollback target is the original video title.
	err := scheduler.Apply(context.Background(), test, nil, &variants[1])
	require.Error(t, err)

	// Title was set to the new value, then rolled back.
	require.Len(t, updater.titleCalls, 2)
	assert.Equal(t, "title b", updater.titleCalls[0])
	assert.Equal(t, "Original Title", updater.titleCalls[1])

	// Variant must not be marked applied.
	current, err := store.CurrentVariant(context.Background(), test.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Contains(t, store.actions(test.ID), "error")
}

func TestCombinedApplyRollsBackToPreviousVariantTitle(t *testing.T) {
	store := newFakeStore()
	updater := &fakeUpdater{failThumbnail: errAPIDown}
	scheduler := NewScheduler(store, updater, nil, zap.NewNop())

	test, variants := activeTest(store, models.TestTypeCombined,
		models.TestVariant{Name: "A", Title: "title a", ThumbnailURL: "thumbnails/x/a.png"},
		models.TestVariant{Name: "B", Title: "title b", ThumbnailURL: "thumbnails/x/b.png"},
	)

	err := scheduler.Apply(context.Background(), test, &variants[0], &variants[1])
	require.Error(t, err)
	require.Len(t, updater.titleCalls, 2)
	assert.Equal(t, "title a", updater.titleCalls[1], "rollback should restore the previous variant's title")
}

func TestApplyFailureKeepsVariantUnapplied(t *testing.T) {
	store := newFakeStore()
	updater := &fakeUpdater{failTitle: errAPIDown}
	scheduler := NewScheduler(store, updater, nil, zap.NewNop())

	test, variants := activeTest(store, models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "title a"},
		models.TestVariant{Name: "B", Title: "title b"},
	)
	err := scheduler.Apply(context.Background(), test, nil, &variants[0])
	require.Error(t, err)

	current, err := store.CurrentVariant(context.Background(), test.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
}
