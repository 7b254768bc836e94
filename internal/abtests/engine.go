package abtests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
)

var (
	// ErrVariantCount means the variant count is outside the 2-3 bound.
	ErrVariantCount = fmt.Errorf("a test needs between %d and %d variants", models.MinVariants, models.MaxVariants)
	// ErrVariantContent means a variant is missing the content its test type rotates.
	ErrVariantContent = errors.New("variant is missing content for the test type")
)

// Engine drives the A/B test lifecycle. All status changes go through it so
// every transition is validated, logged and broadcast.
type Engine struct {
	store     Store
	scheduler *Scheduler
	selector  *WinnerSelector
	events    EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates the test lifecycle engine.
func NewEngine(store Store, scheduler *Scheduler, selector *WinnerSelector, events EventPublisher, logger *zap.Logger) *Engine {
	if events == nil {
		events = nopPublisher{}
	}
	return &Engine{store: store, scheduler: scheduler, selector: selector, events: events, logger: logger, now: time.Now}
}

// ValidateVariants checks count and per-type content before a test is created
// or started.
func ValidateVariants(testType models.TestType, variants []models.TestVariant) error {
	if len(variants) < models.MinVariants || len(variants) > models.MaxVariants {
		return ErrVariantCount
	}
	for _, v := range variants {
		switch testType {
		case models.TestTypeThumbnail:
			if v.ThumbnailURL == "" {
				return fmt.Errorf("%w: variant %s has no thumbnail", ErrVariantContent, v.Name)
			}
		case models.TestTypeTitle:
			if strings.TrimSpace(v.Title) == "" {
				return fmt.Errorf("%w: variant %s has no title", ErrVariantContent, v.Name)
			}
		case models.TestTypeDescription:
			if strings.TrimSpace(v.Description) == "" {
				return fmt.Errorf("%w: variant %s has no description", ErrVariantContent, v.Name)
			}
		case models.TestTypeCombined:
			if strings.TrimSpace(v.Title) == "" || v.ThumbnailURL == "" {
				return fmt.Errorf("%w: variant %s needs both title and thumbnail", ErrVariantContent, v.Name)
			}
		}
	}
	return nil
}

// Start activates a draft test, pins its schedule and puts variant A live.
func (e *Engine) Start(ctx context.Context, testID uuid.UUID, userID uuid.UUID) (*models.ABTest, error) {
	test, err := e.store.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateTransition(test.Status, models.TestActive); err != nil {
		return nil, err
	}
	variants, err := e.store.ListVariants(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := ValidateVariants(test.TestType, variants); err != nil {
		return nil, err
	}

	start := e.now().UTC()
	end := start.Add(time.Duration(test.DurationHours) * time.Hour)
	started, err := e.store.StartTest(ctx, testID, start, end)
	if err != nil {
		return nil, err
	}

	if err := e.scheduler.ApplyFirst(ctx, started); err != nil {
		// The test stays active; the pacer retries the rotation.
		e.logger.Warn("initial variant apply failed",
			zap.String("test_id", testID.String()), zap.Error(err))
	}

	e.audit(ctx, started.ID, "started", &userID, map[string]string{
		"start": start.Format(time.RFC3339), "end": end.Format(time.RFC3339),
	})
	e.broadcast(ctx, started, "status_changed")
	return started, nil
}

// Pause suspends rotation and collection for an active test.
func (e *Engine) Pause(ctx context.Context, testID uuid.UUID, userID uuid.UUID) (*models.ABTest, error) {
	return e.transition(ctx, testID, userID, models.TestActive, models.TestPaused, "paused")
}

// Resume reactivates a paused test.
func (e *Engine) Resume(ctx context.Context, testID uuid.UUID, userID uuid.UUID) (*models.ABTest, error) {
	return e.transition(ctx, testID, userID, models.TestPaused, models.TestActive, "resumed")
}

func (e *Engine) transition(ctx context.Context, testID, userID uuid.UUID, from, to models.TestStatus, action string) (*models.ABTest, error) {
	test, err := e.store.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateTransition(test.Status, to); err != nil {
		return nil, err
	}
	updated, err := e.store.SetStatus(ctx, testID, from, to)
	if err != nil {
		return nil, err
	}
	e.audit(ctx, testID, action, &userID, nil)
	e.broadcast(ctx, updated, "status_changed")
	return updated, nil
}

// Stop completes a test early. A completed test always has a winner, so the
// best-CTR variant so far is recorded even when no variant cleared the
// threshold.
func (e *Engine) Stop(ctx context.Context, testID uuid.UUID, userID uuid.UUID) (*models.ABTest, error) {
	test, err := e.store.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateTransition(test.Status, models.TestCompleted); err != nil {
		return nil, err
	}
	variants, err := e.store.ListVariants(ctx, testID)
	if err != nil {
		return nil, err
	}
	winner, err := Best(variants)
	if err != nil {
		return nil, err
	}
	return e.complete(ctx, test, winner, &userID, "stopped")
}

// SelectWinner completes a running test with an explicitly chosen variant.
func (e *Engine) SelectWinner(ctx context.Context, testID, variantID uuid.UUID, userID uuid.UUID) (*models.ABTest, error) {
	test, err := e.store.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateTransition(test.Status, models.TestCompleted); err != nil {
		return nil, err
	}
	variant, err := e.store.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if variant.TestID != testID {
		return nil, ErrVariantNotFound
	}
	return e.complete(ctx, test, variant, &userID, "stopped")
}

// Conclude finishes a test from the worker, either because its duration
// elapsed or because a variant cleared the winner policy.
func (e *Engine) Conclude(ctx context.Context, test *models.ABTest, winner *models.TestVariant) (*models.ABTest, error) {
	return e.complete(ctx, test, winner, nil, "completed")
}

func (e *Engine) complete(ctx context.Context, test *models.ABTest, winner *models.TestVariant, userID *uuid.UUID, action string) (*models.ABTest, error) {
	// The winning content goes live before the test is marked completed. If
	// the API rejects it the test stays in its current status with an error
	// log, so the completion can be retried.
	if test.AutoSelectWinner {
		if err := e.scheduler.Apply(ctx, test, nil, winner); err != nil {
			return nil, fmt.Errorf("apply winner content: %w", err)
		}
		e.audit(ctx, test.ID, "winner_applied", nil, map[string]string{"variant": winner.Name})
	}

	completed, err := e.store.CompleteTest(ctx, test.ID, winner.ID, e.now().UTC())
	if err != nil {
		return nil, err
	}
	e.audit(ctx, test.ID, action, userID, nil)
	e.audit(ctx, test.ID, "winner_selected", userID, map[string]interface{}{
		"variant": winner.Name, "variant_id": winner.ID.String(), "ctr": winner.CTR,
	})

	e.events.PublishTestEvent(ctx, completed.CreatorID, TestEvent{
		Type:      "winner_selected",
		TestID:    completed.ID,
		Status:    string(completed.Status),
		VariantID: &winner.ID,
		Variant:   winner.Name,
		At:        e.now().UTC(),
	})
	return completed, nil
}

// CheckWinner evaluates the winner policy for an active test and completes it
// when a variant qualifies and auto-selection is on.
func (e *Engine) CheckWinner(ctx context.Context, testID uuid.UUID) (*Verdict, error) {
	test, err := e.store.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test.Status != models.TestActive {
		return nil, nil
	}
	verdict, err := e.selector.Evaluate(ctx, test)
	if err != nil {
		return nil, err
	}
	if verdict.Qualified && test.AutoSelectWinner {
		if _, err := e.Conclude(ctx, test, verdict.Winner); err != nil && !errors.Is(err, ErrStaleStatus) {
			return verdict, err
		}
	}
	return verdict, nil
}

// ExpireIfDue completes a test whose scheduled duration has elapsed.
func (e *Engine) ExpireIfDue(ctx context.Context, testID uuid.UUID) error {
	test, err := e.store.GetTest(ctx, testID)
	if err != nil {
		return err
	}
	if test.Status != models.TestActive || !test.DurationElapsed(e.now()) {
		return nil
	}
	variants, err := e.store.ListVariants(ctx, testID)
	if err != nil {
		return err
	}
	winner, err := Best(variants)
	if err != nil {
		return err
	}
	_, err = e.Conclude(ctx, test, winner)
	if errors.Is(err, ErrStaleStatus) {
		return nil
	}
	return err
}

func (e *Engine) audit(ctx context.Context, testID uuid.UUID, action string, userID *uuid.UUID, details interface{}) {
	if err := e.store.AppendLog(ctx, testID, action, userID, details); err != nil {
		e.logger.Warn("append test log", zap.String("action", action), zap.Error(err))
	}
}

func (e *Engine) broadcast(ctx context.Context, test *models.ABTest, eventType string) {
	e.events.PublishTestEvent(ctx, test.CreatorID, TestEvent{
		Type:   eventType,
		TestID: test.ID,
		Status: string(test.Status),
		At:     e.now().UTC(),
	})
}
