package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TestType is the kind of content an A/B test varies.
type TestType string

const (
	TestTypeThumbnail   TestType = "thumbnail"
	TestTypeTitle       TestType = "title"
	TestTypeDescription TestType = "description"
	TestTypeCombined    TestType = "combined"
)

// Valid reports whether the test type is supported.
func (t TestType) Valid() bool {
	switch t {
	case TestTypeThumbnail, TestTypeTitle, TestTypeDescription, TestTypeCombined:
		return true
	}
	return false
}

// TestStatus is the lifecycle state of an A/B test.
type TestStatus string

const (
	TestDraft     TestStatus = "draft"
	TestActive    TestStatus = "active"
	TestPaused    TestStatus = "paused"
	TestCompleted TestStatus = "completed"
)

// ErrInvalidTransition is returned for any status change outside the allowed set.
var ErrInvalidTransition = errors.New("invalid test status transition")

// allowed lifecycle edges: draft->active, active<->paused, active->completed, paused->completed.
var validTransitions = map[TestStatus][]TestStatus{
	TestDraft:  {TestActive},
	TestActive: {TestPaused, TestCompleted},
	TestPaused: {TestActive, TestCompleted},
}

// ValidateTransition returns ErrInvalidTransition unless from->to is an allowed edge.
func ValidateTransition(from, to TestStatus) error {
	for _, next := range validTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Variant count bounds enforced at test start.
const (
	MinVariants = 2
	MaxVariants = 3
)

// ABTest is the configuration and state of one A/B test over a YouTube video.
type ABTest struct {
	ID                     uuid.UUID  `json:"id"`
	CreatorID              uuid.UUID  `json:"creator_id"` // team owner
	CreatedBy              *uuid.UUID `json:"created_by,omitempty"`
	VideoID                string     `json:"video_id"` // YouTube video ID
	VideoTitle             string     `json:"video_title"`
	TestType               TestType   `json:"test_type"`
	Status                 TestStatus `json:"status"`
	StartDate              *time.Time `json:"start_date,omitempty"`
	EndDate                *time.Time `json:"end_date,omitempty"`
	DurationHours          int        `json:"duration_hours"`
	RotationFrequencyHours int        `json:"rotation_frequency_hours"`
	PerformanceThreshold   float64    `json:"performance_threshold"`
	AutoSelectWinner       bool       `json:"auto_select_winner"`
	WinnerVariantID        *uuid.UUID `json:"winner_variant_id,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// DurationElapsed reports whether the test has run past its scheduled end.
func (t *ABTest) DurationElapsed(now time.Time) bool {
	return t.EndDate != nil && !now.Before(*t.EndDate)
}

// RotationDue reports whether the live variant should rotate, given when the
// current variant was applied.
func (t *ABTest) RotationDue(lastApplied *time.Time, now time.Time) bool {
	if t.Status != TestActive {
		return false
	}
	if lastApplied == nil {
		return true
	}
	return !now.Before(lastApplied.Add(time.Duration(t.RotationFrequencyHours) * time.Hour))
}

// Progress returns completion percentage (0-100) for an active or completed test.
func (t *ABTest) Progress(now time.Time) float64 {
	if t.Status == TestCompleted {
		return 100
	}
	if t.StartDate == nil || t.EndDate == nil {
		return 0
	}
	total := t.EndDate.Sub(*t.StartDate).Seconds()
	if total <= 0 {
		return 0
	}
	elapsed := now.Sub(*t.StartDate).Seconds()
	pct := elapsed / total * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// TestVariant is one candidate version of the video's content under test.
type TestVariant struct {
	ID           uuid.UUID  `json:"id"`
	TestID       uuid.UUID  `json:"test_id"`
	Name         string     `json:"name"` // "A", "B", "C"
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Impressions  int64      `json:"impressions"`
	Clicks       int64      `json:"clicks"`
	Views        int64      `json:"views"`
	CTR          float64    `json:"ctr"`
	IsWinner     bool       `json:"is_winner"`
	AppliedAt    *time.Time `json:"applied_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ComputeCTR returns clicks/impressions, 0 when there are no impressions.
func (v *TestVariant) ComputeCTR() float64 {
	if v.Impressions <= 0 {
		return 0
	}
	return float64(v.Clicks) / float64(v.Impressions)
}

// TestResult is one append-only time-series point for a variant metric.
type TestResult struct {
	ID         uuid.UUID `json:"id"`
	TestID     uuid.UUID `json:"test_id"`
	VariantID  uuid.UUID `json:"variant_id"`
	MetricType string    `json:"metric_type"` // impressions, clicks, views, ctr
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TestLog is one append-only audit entry for a state-changing test action.
type TestLog struct {
	ID        uuid.UUID       `json:"id"`
	TestID    uuid.UUID       `json:"test_id"`
	Action    string          `json:"action"` // created, started, paused, resumed, stopped, variant_changed, winner_selected, winner_applied, error
	UserID    *uuid.UUID      `json:"user_id,omitempty"` // nil for system actions
	Details   json.RawMessage `json:"details,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
