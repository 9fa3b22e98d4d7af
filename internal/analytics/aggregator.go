package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/store"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalQueries      int64            `json:"total_queries"`
	Outcomes          map[string]int64 `json:"outcomes"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	Rebuilds          int64            `json:"rebuilds"`
	LastGeneration    uint64           `json:"last_generation"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps in-process query statistics. Latencies are kept for the
// most recent maxLatencySamples fetches only.
type Aggregator struct {
	mu                sync.Mutex
	totalQueries      int64
	outcomes          map[string]int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	rebuilds          int64
	lastGeneration    uint64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes:          make(map[string]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
	}
}

// Observe is a store query observer.
func (a *Aggregator) Observe(_ context.Context, rec store.QueryRecord) {
	a.Record(NewQueryEvent(context.Background(), rec))
}

// ObserveRebuild is a store rebuild hook.
func (a *Aggregator) ObserveRebuild(generation uint64, _ index.BuildReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rebuilds++
	a.lastGeneration = generation
}

// Record folds one query event into the totals. Only fetch outcomes carry
// latency, cache and query-text statistics.
func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalQueries++
	a.outcomes[event.Outcome]++
	if event.Query == "" {
		return
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.queryCounts[event.Query]++
	if event.Returned == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalQueries:    a.totalQueries,
		Outcomes:        make(map[string]int64, len(a.outcomes)),
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		Rebuilds:        a.rebuilds,
		LastGeneration:  a.lastGeneration,
	}
	for k, v := range a.outcomes {
		stats.Outcomes[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries, ties broken by query text.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
