package analytics

import (
	"sort"
	"strings"
	"unicode"
)

// SEOInput is the metadata to score.
type SEOInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// SEOResult is the scored analysis.
type SEOResult struct {
	Score           int      `json:"score"`
	Keywords        []string `json:"keyword_suggestions"`
	Recommendations []string `json:"recommendations"`
}

// Scoring weights; the three sections add up to 100.
const (
	titleWeight       = 40
	descriptionWeight = 35
	tagsWeight        = 25
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "how": true, "what": true,
	"this": true, "that": true, "it": true, "my": true, "your": true, "you": true,
	"i": true, "we": true, "be": true, "not": true, "will": true, "can": true,
}

// AnalyzeSEO scores a video's metadata out of 100 and produces keyword
// suggestions and actionable recommendations. Deterministic for a given input.
func AnalyzeSEO(in SEOInput) SEOResult {
	var score int
	var recs []string

	// Title: 20-70 characters works best in search and suggested feeds.
	titleLen := len([]rune(in.Title))
	switch {
	case titleLen == 0:
		recs = append(recs, "Add a title")
	case titleLen < 20:
		score += titleWeight / 2
		recs = append(recs, "Lengthen the title to at least 20 characters")
	case titleLen <= 70:
		score += titleWeight
	default:
		score += titleWeight / 2
		recs = append(recs, "Shorten the title to 70 characters or fewer so it is not truncated")
	}

	// Description: at least 200 characters, keyword-bearing first line.
	descLen := len(in.Description)
	switch {
	case descLen == 0:
		recs = append(recs, "Add a description")
	case descLen < 200:
		score += descriptionWeight / 2
		recs = append(recs, "Expand the description to at least 200 characters")
	default:
		score += descriptionWeight
	}

	// Tags: 5-15 is the sweet spot.
	switch n := len(in.Tags); {
	case n == 0:
		recs = append(recs, "Add tags, aim for 5 to 15")
	case n < 5:
		score += tagsWeight / 2
		recs = append(recs, "Add more tags, aim for at least 5")
	case n <= 15:
		score += tagsWeight
	default:
		score += tagsWeight * 3 / 4
		recs = append(recs, "Trim tags to 15 or fewer, extra tags dilute relevance")
	}

	// Title keywords should reappear in the description.
	keywords := extractKeywords(in.Title, 5)
	if len(keywords) > 0 && descLen > 0 {
		desc := strings.ToLower(in.Description)
		missing := 0
		for _, k := range keywords {
			if !strings.Contains(desc, k) {
				missing++
			}
		}
		if missing == len(keywords) {
			recs = append(recs, "Repeat the title's keywords in the description")
		}
	}

	if score > 100 {
		score = 100
	}
	return SEOResult{Score: score, Keywords: keywords, Recommendations: recs}
}

// extractKeywords pulls the most frequent non-stopwords from text, ties
// broken alphabetically so results are stable.
func extractKeywords(text string, max int) []string {
	counts := make(map[string]int)
	var order []string
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) < 3 || stopWords[word] {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return order[i] < order[j]
	})
	if len(order) > max {
		order = order[:max]
	}
	return order
}
