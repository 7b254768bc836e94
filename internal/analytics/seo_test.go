package analytics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeSEOFullScore(t *testing.T) {
	in := SEOInput{
		Title: "Complete Guide to Sourdough Bread Baking",
		Description: strings.Repeat("Learn sourdough bread baking step by step with this complete guide. ", 5),
		Tags:  []string{"sourdough", "bread", "baking", "guide", "recipe", "starter"},
	}
	res := AnalyzeSEO(in)
	assert.Equal(t, 100, res.Score)
	assert.Empty(t, res.Recommendations)
	assert.Contains(t, res.Keywords, "sourdough")
}

func TestAnalyzeSEOEmptyMetadata(t *testing.T) {
	res := AnalyzeSEO(SEOInput{})
	assert.Zero(t, res.Score)
	assert.Len(t, res.Recommendations, 3)
}

func TestAnalyzeSEOShortTitlePenalized(t *testing.T) {
	good := AnalyzeSEO(SEOInput{
		Title:       "A Properly Sized Video Title Here",
		Description: strings.Repeat("x", 250),
		Tags:        []string{"a", "b", "c", "d", "e"},
	})
	short := AnalyzeSEO(SEOInput{
		Title:       "Too short",
		Description: strings.Repeat("x", 250),
		Tags:        []string{"a", "b", "c", "d", "e"},
	})
	assert.Greater(t, good.Score, short.Score)
	assert.Contains(t, strings.Join(short.Recommendations, " "), "20 characters")
}

func TestAnalyzeSEOTooManyTags(t *testing.T) {
	tags := make([]string, 20)
	for i := range tags {
		tags[i] = strings.Repeat("t", i+1)
	}
	res := AnalyzeSEO(SEOInput{
		Title:       "A Properly Sized Video Title Here",
		Description: strings.Repeat("x", 250),
		Tags:        tags,
	})
	assert.Less(t, res.Score, 100)
}

func TestAnalyzeSEOIsDeterministic(t *testing.T) {
	in := SEOInput{
		Title:       "Golang Concurrency Patterns Golang Goroutines",
		Description: "Short",
		Tags:        []string{"go", "golang"},
	}
	first := AnalyzeSEO(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, AnalyzeSEO(in))
	}
}

func TestExtractKeywords(t *testing.T) {
	got := extractKeywords("How to Bake Bread: bread baking for the home baker", 3)
	assert.Equal(t, "bread", got[0], "most frequent keyword first")
	assert.Len(t, got, 3)
	assert.NotContains(t, got, "the")
	assert.NotContains(t, got, "for")
}
