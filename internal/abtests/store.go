package abtests

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/creatorhub/backend/internal/models"
)

// Store is the persistence surface shared by the engine, scheduler, metrics
// collector and winner selector. *Repository is the production implementation.
type Store interface {
	GetTest(ctx context.Context, id uuid.UUID) (*models.ABTest, error)
	ListVariants(ctx context.Context, testID uuid.UUID) ([]models.TestVariant, error)
	GetVariant(ctx context.Context, id uuid.UUID) (*models.TestVariant, error)
	StartTest(ctx context.Context, id uuid.UUID, start, end time.Time) (*models.ABTest, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to models.TestStatus) (*models.ABTest, error)
	CompleteTest(ctx context.Context, id, winnerID uuid.UUID, completedAt time.Time) (*models.ABTest, error)
	MarkVariantApplied(ctx context.Context, variantID uuid.UUID, at time.Time) error
	CurrentVariant(ctx context.Context, testID uuid.UUID) (*models.TestVariant, error)
	UpdateVariantMetrics(ctx context.Context, variantID uuid.UUID, impressions, clicks, views int64, ctr float64) error
	AppendResult(ctx context.Context, res models.TestResult) error
	AppendLog(ctx context.Context, testID uuid.UUID, action string, userID *uuid.UUID, details interface{}) error
	ListLogs(ctx context.Context, testID uuid.UUID, limit int) ([]models.TestLog, error)
}

var _ Store = (*Repository)(nil)

// VideoUpdater applies variant content to the live YouTube video.
type VideoUpdater interface {
	SetTitle(ctx context.Context, userID uuid.UUID, videoID, title string) error
	SetDescription(ctx context.Context, userID uuid.UUID, videoID, description string) error
	SetThumbnail(ctx context.Context, userID uuid.UUID, videoID, thumbnailKey string) error
}

// EventPublisher fans state changes out to connected dashboard clients.
// The realtime package provides the Redis-backed implementation.
type EventPublisher interface {
	PublishTestEvent(ctx context.Context, creatorID uuid.UUID, event TestEvent)
}

// TestEvent is one realtime notification about a test.
type TestEvent struct {
	Type      string     `json:"type"` // status_changed, variant_changed, winner_selected, metrics_updated
	TestID    uuid.UUID  `json:"test_id"`
	Status    string     `json:"status,omitempty"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Variant   string     `json:"variant,omitempty"`
	At        time.Time  `json:"at"`
}

// nopPublisher is used when realtime delivery is not wired, e.g. in tests.
type nopPublisher struct{}

func (nopPublisher) PublishTestEvent(context.Context, uuid.UUID, TestEvent) {}
