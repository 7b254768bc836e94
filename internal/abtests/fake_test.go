package abtests

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/creatorhub/backend/internal/models"
)

// fakeStore is an in-memory Store for engine, scheduler and collector tests.
type fakeStore struct {
	mu       sync.Mutex
	tests    map[uuid.UUID]*models.ABTest
	variants map[uuid.UUID][]models.TestVariant // keyed by test ID
	logs     []models.TestLog
	results  []models.TestResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tests:    make(map[uuid.UUID]*models.ABTest),
		variants: make(map[uuid.UUID][]models.TestVariant),
	}
}

func (f *fakeStore) addTest(t *models.ABTest, variants []models.TestVariant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tests[t.ID] = &cp
	f.variants[t.ID] = append([]models.TestVariant(nil), variants...)
}

func (f *fakeStore) GetTest(_ context.Context, id uuid.UUID) (*models.ABTest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tests[id]
	if !ok {
		return nil, ErrTestNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListVariants(_ context.Context, testID uuid.UUID) ([]models.TestVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TestVariant(nil), f.variants[testID]...), nil
}

func (f *fakeStore) GetVariant(_ context.Context, id uuid.UUID) (*models.TestVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vs := range f.variants {
		for _, v := range vs {
			if v.ID == id {
				cp := v
				return &cp, nil
			}
		}
	}
	return nil, ErrVariantNotFound
}

func (f *fakeStore) StartTest(_ context.Context, id uuid.UUID, start, end time.Time) (*models.ABTest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tests[id]
	if !ok || t.Status != models.TestDraft {
		return nil, ErrStaleStatus
	}
	t.Status = models.TestActive
	t.StartDate, t.EndDate = &start, &end
	cp := *t
	return &cp, nil
}

func (f *fakeStore) SetStatus(_ context.Context, id uuid.UUID, from, to models.TestStatus) (*models.ABTest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tests[id]
	if !ok || t.Status != from {
		return nil, ErrStaleStatus
	}
	t.Status = to
	cp := *t
	return &cp, nil
}

func (f *fakeStore) CompleteTest(_ context.Context, id, winnerID uuid.UUID, completedAt time.Time) (*models.ABTest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tests[id]
	if !ok || (t.Status != models.TestActive && t.Status != models.TestPaused) {
		return nil, ErrStaleStatus
	}
	t.Status = models.TestCompleted
	t.WinnerVariantID = &winnerID
	t.CompletedAt = &completedAt
	vs := f.variants[id]
	for i := range vs {
		if vs[i].ID == winnerID {
			vs[i].IsWinner = true
		}
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) MarkVariantApplied(_ context.Context, variantID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vs := range f.variants {
		for i := range vs {
			if vs[i].ID == variantID {
				applied := at
				vs[i].AppliedAt = &applied
				return nil
			}
		}
	}
	return ErrVariantNotFound
}

func (f *fakeStore) CurrentVariant(_ context.Context, testID uuid.UUID) (*models.TestVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var current *models.TestVariant
	vs := f.variants[testID]
	for i := range vs {
		v := vs[i]
		if v.AppliedAt == nil {
			continue
		}
		if current == nil || v.AppliedAt.After(*current.AppliedAt) {
			cp := v
			current = &cp
		}
	}
	return current, nil
}

func (f *fakeStore) UpdateVariantMetrics(_ context.Context, variantID uuid.UUID, impressions, clicks, views int64, ctr float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vs := range f.variants {
		for i := range vs {
			if vs[i].ID == variantID {
				vs[i].Impressions, vs[i].Clicks, vs[i].Views, vs[i].CTR = impressions, clicks, views, ctr
				return nil
			}
		}
	}
	return ErrVariantNotFound
}

func (f *fakeStore) AppendResult(_ context.Context, res models.TestResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, res)
	return nil
}

func (f *fakeStore) AppendLog(_ context.Context, testID uuid.UUID, action string, userID *uuid.UUID, details interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw := json.RawMessage("{}")
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		raw = b
	}
	f.logs = append(f.logs, models.TestLog{
		ID: uuid.New(), TestID: testID, Action: action, UserID: userID,
		Details: raw, Timestamp: time.Now().UTC(),
	})
	return nil
}

func (f *fakeStore) ListLogs(_ context.Context, testID uuid.UUID, limit int) ([]models.TestLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TestLog
	for i := len(f.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.logs[i].TestID == testID {
			out = append(out, f.logs[i])
		}
	}
	return out, nil
}

func (f *fakeStore) actions(testID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, l := range f.logs {
		if l.TestID == testID {
			out = append(out, l.Action)
		}
	}
	return out
}

var _ Store = (*fakeStore)(nil)

// fakeUpdater records applied content and fails on demand.
type fakeUpdater struct {
	mu            sync.Mutex
	title         string
	description   string
	thumbnail     string
	titleCalls    []string
	thumbFails    int
	titleFails    int
	failThumbnail error
	failTitle     error
}

func (u *fakeUpdater) SetTitle(_ context.Context, _ uuid.UUID, _ string, title string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failTitle != nil {
		u.titleFails++
		return u.failTitle
	}
	u.title = title
	u.titleCalls = append(u.titleCalls, title)
	return nil
}

func (u *fakeUpdater) SetDescription(_ context.Context, _ uuid.UUID, _ string, description string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.description = description
	return nil
}

func (u *fakeUpdater) SetThumbnail(_ context.Context, _ uuid.UUID, _ string, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failThumbnail != nil {
		u.thumbFails++
		return u.failThumbnail
	}
	u.thumbnail = key
	return nil
}

var _ VideoUpdater = (*fakeUpdater)(nil)

// capturingPublisher records published events.
type capturingPublisher struct {
	mu     sync.Mutex
	events []TestEvent
}

func (p *capturingPublisher) PublishTestEvent(_ context.Context, _ uuid.UUID, ev TestEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var errAPIDown = errors.New("api unavailable")
