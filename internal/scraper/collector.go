package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/tracing"
)

// SourceResult summarises one source's part in a collection run.
type SourceResult struct {
	Source   string        `json:"source"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Collector fetches every source concurrently and concatenates their records
// in source order.
type Collector struct {
	sources       []Source
	timeout       time.Duration
	maxConcurrent int
	metrics       *metrics.Metrics
	logger        *slog.Logger

	mu      sync.Mutex
	lastRun []SourceResult
}

// NewCollector returns a collector over sources. timeout bounds each source
// fetch and maxConcurrent bounds parallel fetches; zero disables either
// limit. m may be nil.
func NewCollector(sources []Source, timeout time.Duration, maxConcurrent int, m *metrics.Metrics) *Collector {
	return &Collector{
		sources:       sources,
		timeout:       timeout,
		maxConcurrent: maxConcurrent,
		metrics:       m,
		logger:        slog.Default().With("component", "collector"),
	}
}

// Collect runs one collection. A failing source is logged and contributes no
// records; only cancellation of ctx fails the whole run.
func (c *Collector) Collect(ctx context.Context) ([]job.RawJob, error) {
	results := make([]SourceResult, len(c.sources))
	batches := make([][]job.RawJob, len(c.sources))

	g, gctx := errgroup.WithContext(ctx)
	if c.maxConcurrent > 0 {
		g.SetLimit(c.maxConcurrent)
	}
	for i, src := range c.sources {
		g.Go(func() error {
			start := time.Now()
			spanCtx, span := tracing.Start(gctx, "source:"+src.Name())
			records, err := resilience.CallWithTimeout(spanCtx, c.timeout, src.Name(), src.Fetch)
			results[i] = SourceResult{Source: src.Name(), Duration: time.Since(start), Err: err}
			if err != nil {
				span.Fail(err)
				span.End()
				c.observe(src.Name(), "error", 0)
				c.logger.Warn("source failed, skipping", "source", src.Name(), "error", err)
				return nil
			}
			span.SetAttr("records", len(records))
			span.End()
			batches[i] = records
			results[i].Records = len(records)
			c.observe(src.Name(), "ok", len(records))
			c.logger.Info("source fetched", "source", src.Name(), "records", len(records), "duration", results[i].Duration)
			return nil
		})
	}
	// Source failures are absorbed above; only ctx decides the run's outcome.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, b := range batches {
		total += len(b)
	}
	records := make([]job.RawJob, 0, total)
	for _, b := range batches {
		records = append(records, b...)
	}

	c.mu.Lock()
	c.lastRun = results
	c.mu.Unlock()
	return records, nil
}

// LastRun returns the per-source results of the most recent completed run.
func (c *Collector) LastRun() []SourceResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SourceResult, len(c.lastRun))
	copy(out, c.lastRun)
	return out
}

func (c *Collector) observe(source, status string, records int) {
	if c.metrics == nil {
		return
	}
	c.metrics.SourceFetchesTotal.WithLabelValues(source, status).Inc()
	if status == "ok" {
		c.metrics.SourceRecords.WithLabelValues(source).Set(float64(records))
	}
}
