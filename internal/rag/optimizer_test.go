package rag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache is an unbounded AnswerCache for tests.
type mapCache struct {
	entries map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]string)}
}

func (c *mapCache) Get(key string) (string, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *mapCache) Set(key, value string) {
	c.entries[key] = value
}

func TestOptimizer_CacheRoundtrip(t *testing.T) {
	o := NewOptimizer(newMapCache(), 0.8, 5)

	_, ok := o.GetCachedResult("What is the grace period?", "https://example.com/a.pdf")
	assert.False(t, ok)
	assert.False(t, o.ShouldUseCache("What is the grace period?", "https://example.com/a.pdf"))

	o.CacheResult("What is the grace period?", "https://example.com/a.pdf", "Thirty days.")

	got, ok := o.GetCachedResult("What is the grace period?", "https://example.com/a.pdf")
	require.True(t, ok)
	assert.Equal(t, "Thirty days.", got)
	assert.True(t, o.ShouldUseCache("What is the grace period?", "https://example.com/a.pdf"))
}

func TestOptimizer_CacheKeyedByDocument(t *testing.T) {
	o := NewOptimizer(newMapCache(), 0.8, 5)

	o.CacheResult("What is the grace period?", "https://example.com/a.pdf", "Thirty days.")

	_, ok := o.GetCachedResult("What is the grace period?", "https://example.com/b.pdf")
	assert.False(t, ok)
}

func TestOptimizer_NilCacheIsNoop(t *testing.T) {
	o := NewOptimizer(nil, 0.8, 5)

	o.CacheResult("q", "doc", "answer")

	_, ok := o.GetCachedResult("q", "doc")
	assert.False(t, ok)
	assert.False(t, o.ShouldUseCache("q", "doc"))
}

func TestOptimizer_SmallSetsPassThrough(t *testing.T) {
	o := NewOptimizer(nil, 0.8, 5)
	matches := []Match{
		{Content: "a a a", SimilarityScore: 0.2},
		{Content: "a a a", SimilarityScore: 0.9},
		{Content: "a a a", SimilarityScore: 0.5},
	}

	selected := o.OptimizeChunkSelection(matches, "query")

	// three or fewer candidates are used as-is, duplicates included
	assert.Equal(t, matches, selected)
}

func TestOptimizer_DropsNearDuplicates(t *testing.T) {
	o := NewOptimizer(nil, 0.8, 5)
	matches := []Match{
		{Content: "the grace period is thirty days", SimilarityScore: 0.9},
		{Content: "thirty days is the grace period", SimilarityScore: 0.8}, // same word set
		{Content: "claims must be filed within ninety days of discharge", SimilarityScore: 0.7},
		{Content: "claims must be filed within ninety days of discharge", SimilarityScore: 0.65},
		{Content: "premium payments are due monthly", SimilarityScore: 0.6},
	}

	selected := o.OptimizeChunkSelection(matches, "query")

	require.Len(t, selected, 3)
	assert.Equal(t, "the grace period is thirty days", selected[0].Content)
	assert.Equal(t, "claims must be filed within ninety days of discharge", selected[1].Content)
	assert.Equal(t, "premium payments are due monthly", selected[2].Content)
}

func TestOptimizer_BestMatchAlwaysKept(t *testing.T) {
	o := NewOptimizer(nil, 0.8, 5)
	// unsorted input; highest score must come out first
	matches := []Match{
		{Content: "premium payments are due monthly", SimilarityScore: 0.3},
		{Content: "the grace period is thirty days", SimilarityScore: 0.95},
		{Content: "claims must be filed within ninety days", SimilarityScore: 0.5},
		{Content: "coverage lapses after default on payment", SimilarityScore: 0.4},
	}

	selected := o.OptimizeChunkSelection(matches, "query")

	require.NotEmpty(t, selected)
	assert.Equal(t, "the grace period is thirty days", selected[0].Content)
}

func TestOptimizer_CapsSelection(t *testing.T) {
	o := NewOptimizer(nil, 0.8, 2)
	matches := []Match{
		{Content: "alpha one", SimilarityScore: 0.9},
		{Content: "beta two", SimilarityScore: 0.8},
		{Content: "gamma three", SimilarityScore: 0.7},
		{Content: "delta four", SimilarityScore: 0.6},
	}

	selected := o.OptimizeChunkSelection(matches, "query")

	assert.Len(t, selected, 2)
}

func TestWordOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, wordOverlap("the grace period", "period the grace"), 1e-9)
	assert.InDelta(t, 0.0, wordOverlap("alpha beta", "gamma delta"), 1e-9)
	assert.InDelta(t, 0.0, wordOverlap("", ""), 1e-9)
	// {a b c} vs {b c d}: intersection 2, union 4
	assert.InDelta(t, 0.5, wordOverlap("a b c", "b c d"), 1e-9)
}

func TestOptimizer_PerformanceReport(t *testing.T) {
	o := NewOptimizer(nil, 0.8, 5)
	o.LogPerformance("search", 10*time.Millisecond, nil)
	o.LogPerformance("search", 30*time.Millisecond, map[string]any{"cached": false})
	o.LogPerformance("generation", 200*time.Millisecond, nil)

	report := o.PerformanceReport()

	require.Contains(t, report, "search")
	require.Contains(t, report, "generation")
	search := report["search"]
	assert.Equal(t, 2, search.Count)
	assert.InDelta(t, 20.0, search.AvgDurationMS, 1e-9)
	assert.InDelta(t, 10.0, search.MinDurationMS, 1e-9)
	assert.InDelta(t, 30.0, search.MaxDurationMS, 1e-9)
	assert.InDelta(t, 40.0, search.TotalDurationMS, 1e-9)
	assert.Equal(t, 1, report["generation"].Count)
}

func TestOptimizer_EmptyReport(t *testing.T) {
	o := NewOptimizer(nil, 0.8, 5)

	assert.Empty(t, o.PerformanceReport())
}
