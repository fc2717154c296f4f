package rag

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"
)

// AnswerCache is the storage behind the optimizer's result cache. The
// in-memory and Redis implementations live in internal/cache.
type AnswerCache interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Optimizer applies a time-boxed result cache and a diversity-aware
// re-ranking pass to raw similarity hits, and accumulates per-operation
// latency stats.
type Optimizer struct {
	cache              AnswerCache
	diversityThreshold float64
	maxSelected        int

	mu    sync.Mutex
	stats map[string][]perfEntry
}

type perfEntry struct {
	Duration  time.Duration  `json:"duration"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// OperationReport summarizes one named operation.
type OperationReport struct {
	Count           int     `json:"count"`
	AvgDurationMS   float64 `json:"avg_duration_ms"`
	MinDurationMS   float64 `json:"min_duration_ms"`
	MaxDurationMS   float64 `json:"max_duration_ms"`
	TotalDurationMS float64 `json:"total_duration_ms"`
}

func NewOptimizer(cache AnswerCache, diversityThreshold float64, maxSelected int) *Optimizer {
	if diversityThreshold <= 0 || diversityThreshold > 1 {
		diversityThreshold = 0.8
	}
	if maxSelected <= 0 {
		maxSelected = 5
	}
	return &Optimizer{
		cache:              cache,
		diversityThreshold: diversityThreshold,
		maxSelected:        maxSelected,
		stats:              make(map[string][]perfEntry),
	}
}

// ShouldUseCache reports whether a live cached answer exists for the
// question against this document.
func (o *Optimizer) ShouldUseCache(question, documentURL string) bool {
	if o.cache == nil {
		return false
	}
	_, ok := o.cache.Get(cacheKey(question, documentURL))
	return ok
}

func (o *Optimizer) GetCachedResult(question, documentURL string) (string, bool) {
	if o.cache == nil {
		return "", false
	}
	return o.cache.Get(cacheKey(question, documentURL))
}

func (o *Optimizer) CacheResult(question, documentURL, result string) {
	if o.cache == nil {
		return
	}
	o.cache.Set(cacheKey(question, documentURL), result)
}

func cacheKey(question, documentURL string) string {
	h := fnv.New64a()
	h.Write([]byte(question))
	return fmt.Sprintf("%s:%d", documentURL, h.Sum64())
}

// OptimizeChunkSelection re-ranks matches for relevance and diversity.
// Greedy and order-dependent: the best match is always kept, then candidates
// are admitted in score order only if their word overlap with every selected
// match stays at or below the diversity threshold.
func (o *Optimizer) OptimizeChunkSelection(matches []Match, query string) []Match {
	if len(matches) <= 3 {
		return matches
	}

	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].SimilarityScore > sorted[b].SimilarityScore
	})

	selected := []Match{sorted[0]}
	for _, candidate := range sorted[1:] {
		if len(selected) >= o.maxSelected {
			break
		}
		diverse := true
		for _, kept := range selected {
			if wordOverlap(candidate.Content, kept.Content) > o.diversityThreshold {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, candidate)
		}
	}
	return selected
}

// wordOverlap is the Jaccard similarity over lowercase whitespace-tokenized
// word sets.
func wordOverlap(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	union := len(wordsB)
	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// LogPerformance records one timed operation. Observational only.
func (o *Optimizer) LogPerformance(operation string, duration time.Duration, metadata map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats[operation] = append(o.stats[operation], perfEntry{
		Duration:  duration,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
}

// PerformanceReport summarizes accumulated stats per operation.
func (o *Optimizer) PerformanceReport() map[string]OperationReport {
	o.mu.Lock()
	defer o.mu.Unlock()

	report := make(map[string]OperationReport, len(o.stats))
	for operation, entries := range o.stats {
		if len(entries) == 0 {
			continue
		}
		min, max := entries[0].Duration, entries[0].Duration
		var total time.Duration
		for _, e := range entries {
			total += e.Duration
			if e.Duration < min {
				min = e.Duration
			}
			if e.Duration > max {
				max = e.Duration
			}
		}
		report[operation] = OperationReport{
			Count:           len(entries),
			AvgDurationMS:   millis(total) / float64(len(entries)),
			MinDurationMS:   millis(min),
			MaxDurationMS:   millis(max),
			TotalDurationMS: millis(total),
		}
	}
	return report
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
