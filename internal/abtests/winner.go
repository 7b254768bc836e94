package abtests

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
)

// Verdict is the outcome of one winner evaluation.
type Verdict struct {
	Winner     *models.TestVariant `json:"winner,omitempty"`
	Confidence float64             `json:"confidence"` // two-proportion z-test, reporting only
	Qualified  bool                `json:"qualified"`
	Reason     string              `json:"reason"`
}

// WinnerSelector decides whether a test has a statistically meaningful winner.
//
// The policy: the leading variant must beat every other variant's CTR by at
// least the test's performance threshold (relative improvement), and every
// variant must have collected MinImpressions. The z-test confidence is
// reported alongside but does not gate the decision.
type WinnerSelector struct {
	store          Store
	minImpressions int64
	logger         *zap.Logger
}

// NewWinnerSelector creates a winner selector. minImpressions below 1 falls
// back to 100.
func NewWinnerSelector(store Store, minImpressions int64, logger *zap.Logger) *WinnerSelector {
	if minImpressions < 1 {
		minImpressions = 100
	}
	return &WinnerSelector{store: store, minImpressions: minImpressions, logger: logger}
}

// Evaluate inspects a test's variants and returns the current verdict without
// changing any state.
func (w *WinnerSelector) Evaluate(ctx context.Context, test *models.ABTest) (*Verdict, error) {
	variants, err := w.store.ListVariants(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	return w.verdict(test, variants), nil
}

func (w *WinnerSelector) verdict(test *models.ABTest, variants []models.TestVariant) *Verdict {
	if len(variants) < models.MinVariants {
		return &Verdict{Reason: "not enough variants"}
	}

	for i := range variants {
		if variants[i].Impressions < w.minImpressions {
			return &Verdict{Reason: "variants still below minimum impressions"}
		}
	}

	sorted := make([]models.TestVariant, len(variants))
	copy(sorted, variants)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CTR != sorted[j].CTR {
			return sorted[i].CTR > sorted[j].CTR
		}
		return sorted[i].Name < sorted[j].Name // deterministic tie-break
	})
	leader, runnerUp := sorted[0], sorted[1]

	confidence := zConfidence(leader, runnerUp)
	if leader.CTR <= 0 {
		return &Verdict{Confidence: confidence, Reason: "no variant has any clicks"}
	}

	// Leader must beat every other variant by the relative threshold.
	for _, other := range sorted[1:] {
		if other.CTR > 0 && (leader.CTR-other.CTR)/other.CTR < test.PerformanceThreshold {
			return &Verdict{
				Confidence: confidence,
				Reason:     "lead within performance threshold",
			}
		}
	}

	winner := leader
	return &Verdict{
		Winner:     &winner,
		Confidence: confidence,
		Qualified:  true,
		Reason:     "leader cleared the performance threshold",
	}
}

// Best returns the highest-CTR variant regardless of thresholds, for early
// stops that must still record a winner. Ties break on variant name.
func Best(variants []models.TestVariant) (*models.TestVariant, error) {
	if len(variants) == 0 {
		return nil, ErrNoVariants
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if v.CTR > best.CTR || (v.CTR == best.CTR && v.Name < best.Name) {
			best = v
		}
	}
	return &best, nil
}

// zConfidence runs a two-proportion z-test between the top two variants and
// returns the one-sided confidence level in [0.5, 1).
func zConfidence(a, b models.TestVariant) float64 {
	if a.Impressions == 0 || b.Impressions == 0 {
		return 0
	}
	p1 := float64(a.Clicks) / float64(a.Impressions)
	p2 := float64(b.Clicks) / float64(b.Impressions)
	pooled := float64(a.Clicks+b.Clicks) / float64(a.Impressions+b.Impressions)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(a.Impressions) + 1/float64(b.Impressions)))
	if se == 0 {
		return 0
	}
	z := (p1 - p2) / se
	return normalCDF(z)
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
