package analytics

import (
	"sort"
	"time"
)

// EngagementSample is one historical observation used for posting-time
// analysis: when something was published and how it performed.
type EngagementSample struct {
	PublishedAt time.Time
	Engagement  float64 // engagement rate or comparable score
}

// Slot is one day-of-week x hour bucket. Days run Monday=0 .. Sunday=6.
type Slot struct {
	DayOfWeek          int     `json:"day_of_week"`
	Hour               int     `json:"hour"`
	ExpectedEngagement float64 `json:"expected_engagement"`
	Confidence         float64 `json:"confidence"`
	Samples            int     `json:"samples"`
}

// fullConfidenceSamples is the bucket size at which confidence saturates.
const fullConfidenceSamples = 8

// RecommendPostingTimes buckets historical samples by weekday and hour and
// ranks the buckets by mean engagement. Confidence grows with sample count
// and saturates at fullConfidenceSamples. Output is deterministic: ties
// break on day then hour.
func RecommendPostingTimes(samples []EngagementSample, limit int) []Slot {
	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[[2]int]*bucket)
	for _, s := range samples {
		day := mondayIndexed(s.PublishedAt.Weekday())
		key := [2]int{day, s.PublishedAt.Hour()}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.sum += s.Engagement
		b.count++
	}

	slots := make([]Slot, 0, len(buckets))
	for key, b := range buckets {
		confidence := float64(b.count) / fullConfidenceSamples
		if confidence > 1 {
			confidence = 1
		}
		slots = append(slots, Slot{
			DayOfWeek:          key[0],
			Hour:               key[1],
			ExpectedEngagement: b.sum / float64(b.count),
			Confidence:         confidence,
			Samples:            b.count,
		})
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].ExpectedEngagement != slots[j].ExpectedEngagement {
			return slots[i].ExpectedEngagement > slots[j].ExpectedEngagement
		}
		if slots[i].DayOfWeek != slots[j].DayOfWeek {
			return slots[i].DayOfWeek < slots[j].DayOfWeek
		}
		return slots[i].Hour < slots[j].Hour
	})

	if limit > 0 && len(slots) > limit {
		slots = slots[:limit]
	}
	return slots
}

// mondayIndexed converts Go's Sunday=0 weekday to Monday=0.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}
