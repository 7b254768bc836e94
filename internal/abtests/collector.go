package abtests

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
)

// EngagementSource reads a video's impressions and views over a time window.
// The YouTube analytics client is the production implementation.
type EngagementSource interface {
	VideoEngagement(ctx context.Context, userID uuid.UUID, videoID string, start, end time.Time) (impressions, views int64, err error)
}

// Collector pulls engagement numbers for active tests and attributes them to
// the variant that was live when they accrued.
type Collector struct {
	store  Store
	source EngagementSource
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewCollector creates a metrics collector.
func NewCollector(store Store, source EngagementSource, events EventPublisher, logger *zap.Logger) *Collector {
	if events == nil {
		events = nopPublisher{}
	}
	return &Collector{store: store, source: source, events: events, logger: logger, now: time.Now}
}

// window is one contiguous span a variant spent live on the video.
type window struct {
	variantID uuid.UUID
	start     time.Time
	end       time.Time
}

// Collect refreshes the cumulative counters of every variant of an active
// test and appends time-series points. Engagement is attributed by replaying
// the rotation history: each span between consecutive variant changes belongs
// to the variant applied at its start.
func (c *Collector) Collect(ctx context.Context, testID uuid.UUID) error {
	test, err := c.store.GetTest(ctx, testID)
	if err != nil {
		return err
	}
	if test.Status != models.TestActive {
		return nil
	}
	variants, err := c.store.ListVariants(ctx, testID)
	if err != nil {
		return err
	}

	windows, err := c.appliedWindows(ctx, test)
	if err != nil {
		return err
	}
	if len(windows) == 0 {
		return nil // nothing rotated in yet
	}

	totals := make(map[uuid.UUID]*struct{ impressions, views int64 })
	for _, w := range windows {
		imp, views, err := c.source.VideoEngagement(ctx, test.CreatorID, test.VideoID, w.start, w.end)
		if err != nil {
			return err
		}
		t, ok := totals[w.variantID]
		if !ok {
			t = &struct{ impressions, views int64 }{}
			totals[w.variantID] = t
		}
		t.impressions += imp
		t.views += views
	}

	recordedAt := c.now().UTC()
	for i := range variants {
		v := &variants[i]
		t, ok := totals[v.ID]
		if !ok {
			continue
		}
		// Views double as clicks: a view from an impression is the click.
		v.Impressions, v.Clicks, v.Views = t.impressions, t.views, t.views
		v.CTR = v.ComputeCTR()
		if err := c.store.UpdateVariantMetrics(ctx, v.ID, v.Impressions, v.Clicks, v.Views, v.CTR); err != nil {
			return err
		}
		for metric, value := range map[string]float64{
			"impressions": float64(v.Impressions),
			"clicks":      float64(v.Clicks),
			"views":       float64(v.Views),
			"ctr":         v.CTR,
		} {
			if err := c.store.AppendResult(ctx, models.TestResult{
				TestID:     test.ID,
				VariantID:  v.ID,
				MetricType: metric,
				Value:      value,
				RecordedAt: recordedAt,
			}); err != nil {
				return err
			}
		}
	}

	c.events.PublishTestEvent(ctx, test.CreatorID, TestEvent{
		Type:   "metrics_updated",
		TestID: test.ID,
		At:     recordedAt,
	})
	return nil
}

// appliedWindows replays variant_changed log entries into live spans. The
// last span is open-ended and closes at now.
func (c *Collector) appliedWindows(ctx context.Context, test *models.ABTest) ([]window, error) {
	logs, err := c.store.ListLogs(ctx, test.ID, 1000)
	if err != nil {
		return nil, err
	}

	type change struct {
		variantID uuid.UUID
		at        time.Time
	}
	var changes []change
	for _, l := range logs {
		if l.Action != "variant_changed" {
			continue
		}
		var details struct {
			VariantID string `json:"variant_id"`
		}
		if err := json.Unmarshal(l.Details, &details); err != nil {
			continue
		}
		id, err := uuid.Parse(details.VariantID)
		if err != nil {
			continue
		}
		changes = append(changes, change{variantID: id, at: l.Timestamp})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].at.Before(changes[j].at) })

	now := c.now().UTC()
	out := make([]window, 0, len(changes))
	for i, ch := range changes {
		end := now
		if i+1 < len(changes) {
			end = changes[i+1].at
		}
		if !end.After(ch.at) {
			continue
		}
		out = append(out, window{variantID: ch.variantID, start: ch.at, end: end})
	}
	return out, nil
}
