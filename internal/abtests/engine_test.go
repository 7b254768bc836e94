package abtests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
)

func newTestEngine(store *fakeStore, updater VideoUpdater, events EventPublisher) *Engine {
	logger := zap.NewNop()
	scheduler := NewScheduler(store, updater, events, logger)
	selector := NewWinnerSelector(store, 100, logger)
	return NewEngine(store, scheduler, selector, events, logger)
}

func draftTest(testType models.TestType, variants ...models.TestVariant) (*models.ABTest, []models.TestVariant) {
	owner := uuid.New()
	test := &models.ABTest{
		ID:                     uuid.New(),
		CreatorID:              owner,
		CreatedBy:              &owner,
		VideoID:                "vid-123",
		VideoTitle:             "Original Title",
		TestType:               testType,
		Status:                 models.TestDraft,
		DurationHours:          48,
		RotationFrequencyHours: 4,
		PerformanceThreshold:   0.05,
		AutoSelectWinner:       true,
	}
	for i := range variants {
		variants[i].ID = uuid.New()
		variants[i].TestID = test.ID
	}
	return test, variants
}

func TestStartActivatesAndAppliesFirstVariant(t *testing.T) {
	store := newFakeStore()
	updater := &fakeUpdater{}
	events := &capturingPublisher{}
	test, variants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "Title A"},
		models.TestVariant{Name: "B", Title: "Title B"},
	)
	store.addTest(test, variants)

	engine := newTestEngine(store, updater, events)
	started, err := engine.Start(context.Background(), test.ID, *test.CreatedBy)
	require.NoError(t, err)

	assert.Equal(t, models.TestActive, started.Status)
	require.NotNil(t, started.StartDate)
	require.NotNil(t, started.EndDate)
	assert.Equal(t, 48*time.Hour, started.EndDate.Sub(*started.StartDate))
	assert.Equal(t, "Title A", updater.title)

	current, err := store.CurrentVariant(context.Background(), test.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "A", current.Name)

	assert.Contains(t, store.actions(test.ID), "started")
	assert.Contains(t, events.types(), "status_changed")
}

func TestStartRejectsWrongVariantCount(t *testing.T) {
	store := newFakeStore()
	test, variants := draftTest(models.TestTypeTitle, models.TestVariant{Name: "A", Title: "only one"})
	store.addTest(test, variants)

	engine := newTestEngine(store, &fakeUpdater{}, nil)
	_, err := engine.Start(context.Background(), test.ID, *test.CreatedBy)
	assert.ErrorIs(t, err, ErrVariantCount)
}

func TestStartRejectsMissingContent(t *testing.T) {
	store := newFakeStore()
	test, variants := draftTest(models.TestTypeThumbnail,
		models.TestVariant{Name: "A", ThumbnailURL: "thumbnails/x/a.png"},
		models.TestVariant{Name: "B"}, // no thumbnail
	)
	store.addTest(test, variants)

	engine := newTestEngine(store, &fakeUpdater{}, nil)
	_, err := engine.Start(context.Background(), test.ID, *test.CreatedBy)
	assert.ErrorIs(t, err, ErrVariantContent)
}

func TestLifecycleTransitions(t *testing.T) {
	cases := []struct {
		name string
		run  func(e *Engine, testID, userID uuid.UUID) error
		from models.TestStatus
		ok   bool
	}{
		{"pause active", func(e *Engine, id, u uuid.UUID) error {
			_, err := e.Pause(context.Background(), id, u)
			return err
		}, models.TestActive, true},
		{"resume paused", func(e *Engine, id, u uuid.UUID) error {
			_, err := e.Resume(context.Background(), id, u)
			return err
		}, models.TestPaused, true},
		{"pause draft rejected", func(e *Engine, id, u uuid.UUID) error {
			_, err := e.Pause(context.Background(), id, u)
			return err
		}, models.TestDraft, false},
		{"resume active rejected", func(e *Engine, id, u uuid.UUID) error {
			_, err := e.Resume(context.Background(), id, u)
			return err
		}, models.TestActive, false},
		{"stop draft rejected", func(e *Engine, id, u uuid.UUID) error {
			_, err := e.Stop(context.Background(), id, u)
			return err
		}, models.TestDraft, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			test, variants := draftTest(models.TestTypeTitle,
				models.TestVariant{Name: "A", Title: "a"},
				models.TestVariant{Name: "B", Title: "b"},
			)
			test.Status = tc.from
			store.addTest(test, variants)

			engine := newTestEngine(store, &fakeUpdater{}, nil)
			err := tc.run(engine, test.ID, *test.CreatedBy)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, models.ErrInvalidTransition)
			}
		})
	}
}

func TestCompletedTestRejectsEverything(t *testing.T) {
	store := newFakeStore()
	test, variants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)
	test.Status = models.TestCompleted
	store.addTest(test, variants)

	engine := newTestEngine(store, &fakeUpdater{}, nil)
	ctx := context.Background()

	_, err := engine.Pause(ctx, test.ID, *test.CreatedBy)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = engine.Resume(ctx, test.ID, *test.CreatedBy)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = engine.Stop(ctx, test.ID, *test.CreatedBy)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = engine.Start(ctx, test.ID, *test.CreatedBy)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestStopRecordsBestVariantAsWinner(t *testing.T) {
	store := newFakeStore()
	events := &capturingPublisher{}
	test, variants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)
	test.Status = models.TestActive
	variants[0].CTR = 0.02
	variants[1].CTR = 0.05
	store.addTest(test, variants)

	updater := &fakeUpdater{}
	engine := newTestEngine(store, updater, events)
	stopped, err := engine.Stop(context.Background(), test.ID, *test.CreatedBy)
	require.NoError(t, err)

	assert.Equal(t, models.TestCompleted, stopped.Status)
	require.NotNil(t, stopped.WinnerVariantID)
	assert.Equal(t, variants[1].ID, *stopped.WinnerVariantID)
	require.NotNil(t, stopped.CompletedAt)

	// Winning content stays live.
	assert.Equal(t, "b", updater.title)

	stored, _ := store.ListVariants(context.Background(), test.ID)
	winners := 0
	for _, v := range stored {
		if v.IsWinner {
			winners++
			assert.Equal(t, "B", v.Name)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Contains(t, events.types(), "winner_selected")
}

func TestStopLeavesTestRunningWhenWinnerApplyFails(t *testing.T) {
	store := newFakeStore()
	test, variants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)
	test.Status = models.TestActive
	store.addTest(test, variants)

	updater := &fakeUpdater{failTitle: errAPIDown}
	engine := newTestEngine(store, updater, nil)
	_, err := engine.Stop(context.Background(), test.ID, *test.CreatedBy)
	require.Error(t, err)

	current, _ := store.GetTest(context.Background(), test.ID)
	assert.Equal(t, models.TestActive, current.Status)
	assert.Nil(t, current.WinnerVariantID)
	assert.Contains(t, store.actions(test.ID), "error")
}

func TestSelectWinnerRejectsForeignVariant(t *testing.T) {
	store := newFakeStore()
	test, variants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)
	test.Status = models.TestActive
	store.addTest(test, variants)

	other, otherVariants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "x"},
		models.TestVariant{Name: "B", Title: "y"},
	)
	store.addTest(other, otherVariants)

	engine := newTestEngine(store, &fakeUpdater{}, nil)
	_, err := engine.SelectWinner(context.Background(), test.ID, otherVariants[0].ID, *test.CreatedBy)
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestExpireIfDueCompletesOnlyElapsedTests(t *testing.T) {
	store := newFakeStore()
	test, variants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)
	test.Status = models.TestActive
	start := time.Now().Add(-49 * time.Hour).UTC()
	end := start.Add(48 * time.Hour)
	test.StartDate, test.EndDate = &start, &end
	variants[1].CTR = 0.1
	store.addTest(test, variants)

	engine := newTestEngine(store, &fakeUpdater{}, nil)
	require.NoError(t, engine.ExpireIfDue(context.Background(), test.ID))

	completed, _ := store.GetTest(context.Background(), test.ID)
	assert.Equal(t, models.TestCompleted, completed.Status)
	require.NotNil(t, completed.WinnerVariantID)
	assert.Equal(t, variants[1].ID, *completed.WinnerVariantID)

	// A test still inside its window is untouched.
	fresh, freshVariants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)
	fresh.Status = models.TestActive
	fStart := time.Now().UTC()
	fEnd := fStart.Add(48 * time.Hour)
	fresh.StartDate, fresh.EndDate = &fStart, &fEnd
	store.addTest(fresh, freshVariants)

	require.NoError(t, engine.ExpireIfDue(context.Background(), fresh.ID))
	still, _ := store.GetTest(context.Background(), fresh.ID)
	assert.Equal(t, models.TestActive, still.Status)
}

func TestCheckWinnerCompletesQualifiedTest(t *testing.T) {
	store := newFakeStore()
	test, variants := draftTest(models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)
	test.Status = models.TestActive
	variants[0].Impressions, variants[0].Clicks, variants[0].CTR = 5000, 100, 0.02
	variants[1].Impressions, variants[1].Clicks, variants[1].CTR = 5000, 300, 0.06
	store.addTest(test, variants)

	engine := newTestEngine(store, &fakeUpdater{}, nil)
	verdict, err := engine.CheckWinner(context.Background(), test.ID)
	require.NoError(t, err)
	require.NotNil(t, verdict)
	assert.True(t, verdict.Qualified)

	completed, _ := store.GetTest(context.Background(), test.ID)
	assert.Equal(t, models.TestCompleted, completed.Status)
}
