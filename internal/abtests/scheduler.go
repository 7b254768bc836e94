package abtests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
)

// ErrNoVariants means a test has no variants to rotate through.
var ErrNoVariants = errors.New("test has no variants")

// Scheduler rotates variants onto the live video on the test's cadence.
type Scheduler struct {
	store   Store
	updater VideoUpdater
	events  EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewScheduler creates a variant scheduler.
func NewScheduler(store Store, updater VideoUpdater, events EventPublisher, logger *zap.Logger) *Scheduler {
	if events == nil {
		events = nopPublisher{}
	}
	return &Scheduler{store: store, updater: updater, events: events, logger: logger, now: time.Now}
}

// Rotate advances an active test to its next variant in round-robin name
// order. A test whose rotation is not yet due is left alone.
func (s *Scheduler) Rotate(ctx context.Context, testID uuid.UUID) error {
	test, variants, err := s.loadActive(ctx, testID)
	if err != nil || test == nil {
		return err
	}

	current, err := s.store.CurrentVariant(ctx, test.ID)
	if err != nil {
		return err
	}
	var lastApplied *time.Time
	if current != nil {
		lastApplied = current.AppliedAt
	}
	if !test.RotationDue(lastApplied, s.now()) {
		return nil
	}

	next := nextVariant(variants, current)
	return s.Apply(ctx, test, current, &next)
}

// ApplyFirst puts variant "A" live when a test starts.
func (s *Scheduler) ApplyFirst(ctx context.Context, test *models.ABTest) error {
	variants, err := s.store.ListVariants(ctx, test.ID)
	if err != nil {
		return err
	}
	if len(variants) == 0 {
		return ErrNoVariants
	}
	return s.Apply(ctx, test, nil, &variants[0])
}

// Apply puts one variant's content live. For combined tests the title lands
// first and the thumbnail second; a thumbnail failure rolls the title back so
// the video is never left half-applied. The variant is only marked applied
// after every piece succeeded.
func (s *Scheduler) Apply(ctx context.Context, test *models.ABTest, current, next *models.TestVariant) error {
	userID := test.CreatorID

	switch test.TestType {
	case models.TestTypeTitle:
		if err := s.updater.SetTitle(ctx, userID, test.VideoID, next.Title); err != nil {
			return s.applyFailed(ctx, test, next, err)
		}
	case models.TestTypeDescription:
		if err := s.updater.SetDescription(ctx, userID, test.VideoID, next.Description); err != nil {
			return s.applyFailed(ctx, test, next, err)
		}
	case models.TestTypeThumbnail:
		if err := s.updater.SetThumbnail(ctx, userID, test.VideoID, next.ThumbnailURL); err != nil {
			return s.applyFailed(ctx, test, next, err)
		}
	case models.TestTypeCombined:
		if err := s.updater.SetTitle(ctx, userID, test.VideoID, next.Title); err != nil {
			return s.applyFailed(ctx, test, next, err)
		}
		if err := s.updater.SetThumbnail(ctx, userID, test.VideoID, next.ThumbnailURL); err != nil {
			// Roll the title back to whatever was live before.
			prevTitle := test.VideoTitle
			if current != nil && current.Title != "" {
				prevTitle = current.Title
			}
			if rbErr := s.updater.SetTitle(ctx, userID, test.VideoID, prevTitle); rbErr != nil {
				s.logger.Error("title rollback failed",
					zap.String("test_id", test.ID.String()),
					zap.Error(rbErr))
			}
			return s.applyFailed(ctx, test, next, err)
		}
	default:
		return fmt.Errorf("unknown test type %q", test.TestType)
	}

	now := s.now().UTC()
	if err := s.store.MarkVariantApplied(ctx, next.ID, now); err != nil {
		return err
	}
	if err := s.store.AppendLog(ctx, test.ID, "variant_changed", nil, map[string]string{
		"variant": next.Name, "variant_id": next.ID.String(),
	}); err != nil {
		s.logger.Warn("append rotation log", zap.Error(err))
	}
	s.events.PublishTestEvent(ctx, test.CreatorID, TestEvent{
		Type:      "variant_changed",
		TestID:    test.ID,
		VariantID: &next.ID,
		Variant:   next.Name,
		At:        now,
	})
	return nil
}

func (s *Scheduler) applyFailed(ctx context.Context, test *models.ABTest, variant *models.TestVariant, cause error) error {
	if err := s.store.AppendLog(ctx, test.ID, "error", nil, map[string]string{
		"variant": variant.Name, "error": cause.Error(),
	}); err != nil {
		s.logger.Warn("append error log", zap.Error(err))
	}
	return fmt.Errorf("apply variant %s: %w", variant.Name, cause)
}

func (s *Scheduler) loadActive(ctx context.Context, id uuid.UUID) (*models.ABTest, []models.TestVariant, error) {
	test, err := s.store.GetTest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if test.Status != models.TestActive {
		return nil, nil, nil
	}
	variants, err := s.store.ListVariants(ctx, test.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(variants) == 0 {
		return nil, nil, ErrNoVariants
	}
	return test, variants, nil
}

// nextVariant picks the variant after current in name order, wrapping around.
// With no current variant rotation starts at the front.
func nextVariant(variants []models.TestVariant, current *models.TestVariant) models.TestVariant {
	if current == nil {
		return variants[0]
	}
	for i := range variants {
		if variants[i].ID == current.ID {
			return variants[(i+1)%len(variants)]
		}
	}
	return variants[0]
}
