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

// fakeEngagement returns fixed per-hour rates so window attribution is easy
// to assert.
type fakeEngagement struct {
	impressionsPerHour int64
	viewsPerHour       int64
	calls              int
}

func (f *fakeEngagement) VideoEngagement(_ context.Context, _ uuid.UUID, _ string, start, end time.Time) (int64, int64, error) {
	f.calls++
	hours := int64(end.Sub(start).Hours())
	return f.impressionsPerHour * hours, f.viewsPerHour * hours, nil
}

func TestCollectAttributesWindowsToVariants(t *testing.T) {
	store := newFakeStore()
	events := &capturingPublisher{}
	source := &fakeEngagement{impressionsPerHour: 100, viewsPerHour: 5}
	collector := NewCollector(store, source, events, zap.NewNop())

	test, variants := activeTest(store, models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)

	// A live for 4h, then B live for 2h up to now.
	now := time.Now().UTC()
	aStart := now.Add(-6 * time.Hour)
	bStart := now.Add(-2 * time.Hour)
	require.NoError(t, store.AppendLog(context.Background(), test.ID, "variant_changed", nil,
		map[string]string{"variant": "A", "variant_id": variants[0].ID.String()}))
	require.NoError(t, store.AppendLog(context.Background(), test.ID, "variant_changed", nil,
		map[string]string{"variant": "B", "variant_id": variants[1].ID.String()}))
	store.mu.Lock()
	store.logs[0].Timestamp = aStart
	store.logs[1].Timestamp = bStart
	store.mu.Unlock()

	require.NoError(t, collector.Collect(context.Background(), test.ID))

	stored, err := store.ListVariants(context.Background(), test.ID)
	require.NoError(t, err)

	byName := map[string]models.TestVariant{}
	for _, v := range stored {
		byName[v.Name] = v
	}
	assert.Equal(t, int64(400), byName["A"].Impressions)
	assert.Equal(t, int64(20), byName["A"].Views)
	assert.Equal(t, int64(200), byName["B"].Impressions)
	assert.Equal(t, int64(10), byName["B"].Views)
	assert.InDelta(t, 0.05, byName["A"].CTR, 1e-9)

	// Four metric points per variant.
	assert.Len(t, store.results, 8)
	assert.Contains(t, events.types(), "metrics_updated")
}

func TestCollectSkipsInactiveTest(t *testing.T) {
	store := newFakeStore()
	source := &fakeEngagement{impressionsPerHour: 100, viewsPerHour: 5}
	collector := NewCollector(store, source, nil, zap.NewNop())

	test, _ := activeTest(store, models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)
	_, err := store.SetStatus(context.Background(), test.ID, models.TestActive, models.TestPaused)
	require.NoError(t, err)

	require.NoError(t, collector.Collect(context.Background(), test.ID))
	assert.Zero(t, source.calls)
	assert.Empty(t, store.results)
}

func TestCollectNoopBeforeFirstRotation(t *testing.T) {
	store := newFakeStore()
	source := &fakeEngagement{impressionsPerHour: 100, viewsPerHour: 5}
	collector := NewCollector(store, source, nil, zap.NewNop())

	test, _ := activeTest(store, models.TestTypeTitle,
		models.TestVariant{Name: "A", Title: "a"},
		models.TestVariant{Name: "B", Title: "b"},
	)
	require.NoError(t, collector.Collect(context.Background(), test.ID))
	assert.Zero(t, source.calls)
}
