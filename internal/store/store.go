// Package store is the facade over the indexed job snapshot. It owns the
// current snapshot, replaces it wholesale on every rebuild, and answers JHQL
// text against whichever snapshot was current when the query started.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/tracing"
)

// ErrNoCollector is returned by Refresh when no record collector is wired.
var ErrNoCollector = errors.New("no record collector configured")

// Collector gathers the raw records for a rebuild.
type Collector interface {
	Collect(ctx context.Context) ([]job.RawJob, error)
}

// ResultCache memoizes fetch results per snapshot ID and canonical query
// text. Snapshot IDs are unique across processes, so stores may share one
// cache backend.
type ResultCache interface {
	GetOrCompute(ctx context.Context, snapshotID string, query string, compute func() ([]job.Job, error)) ([]job.Job, bool, error)
}

// QueryRecord describes one RunQuery call for observers.
type QueryRecord struct {
	Text       string
	Query      string
	Outcome    string
	Returned   int
	Generation uint64
	Cached     bool
	Latency    time.Duration
}

// Option configures a Store.
type Option func(*Store)

func WithCache(c ResultCache) Option {
	return func(s *Store) { s.cache = c }
}

func WithCollector(c Collector) Option {
	return func(s *Store) { s.collector = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithQueryObserver registers fn to be called after every RunQuery.
func WithQueryObserver(fn func(context.Context, QueryRecord)) Option {
	return func(s *Store) { s.observers = append(s.observers, fn) }
}

// OnRebuild registers fn to be called after each snapshot swap, with the new
// generation and its build report.
func OnRebuild(fn func(generation uint64, report index.BuildReport)) Option {
	return func(s *Store) { s.rebuildHooks = append(s.rebuildHooks, fn) }
}

type state struct {
	snap    *index.Snapshot
	report  index.BuildReport
	builtAt time.Time
}

// Store is safe for concurrent use. Rebuilds are serialized; queries never
// block on them.
type Store struct {
	current      atomic.Pointer[state]
	writeMu      sync.Mutex
	refresh      singleflight.Group
	exec         *executor.Executor
	cache        ResultCache
	collector    Collector
	metrics      *metrics.Metrics
	observers    []func(context.Context, QueryRecord)
	rebuildHooks []func(uint64, index.BuildReport)
	logger       *slog.Logger
}

// New returns a store holding an empty snapshot at generation 0.
func New(opts ...Option) *Store {
	s := &Store{
		exec:   executor.New(),
		logger: slog.Default().With("component", "job-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&state{snap: index.Empty()})
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *index.Snapshot {
	return s.current.Load().snap
}

// Rebuild indexes records into a new snapshot and publishes it. Queries that
// started earlier keep the snapshot they captured.
func (s *Store) Rebuild(records []job.RawJob) index.BuildReport {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	snap, report := index.Build(records)
	gen := s.current.Load().snap.Generation() + 1
	snap = snap.WithGeneration(gen)
	s.current.Store(&state{snap: snap, report: report, builtAt: time.Now()})
	elapsed := time.Since(start)

	if m := s.metrics; m != nil {
		m.RebuildsTotal.Inc()
		m.RebuildDuration.Observe(elapsed.Seconds())
		m.RecordsSkippedTotal.WithLabelValues("invalid").Add(float64(report.SkippedInvalid))
		m.RecordsSkippedTotal.WithLabelValues("duplicate").Add(float64(report.Duplicates))
		m.SnapshotJobs.Set(float64(report.Accepted))
		m.SnapshotGeneration.Set(float64(gen))
	}
	s.logger.Info("snapshot rebuilt",
		"generation", gen,
		"total", report.Total,
		"accepted", report.Accepted,
		"skipped_invalid", report.SkippedInvalid,
		"duplicates", report.Duplicates,
		"unknown_dates", report.UnknownDates,
		"duration", elapsed,
	)
	for _, hook := range s.rebuildHooks {
		hook(gen, report)
	}
	return report
}

// Refresh collects records and rebuilds. Concurrent calls share one
// collection and one rebuild. When collection fails the current snapshot is
// kept.
func (s *Store) Refresh(ctx context.Context) (index.BuildReport, error) {
	if s.collector == nil {
		return index.BuildReport{}, ErrNoCollector
	}
	v, err, shared := s.refresh.Do("refresh", func() (any, error) {
		ctx, span := tracing.Start(ctx, "refresh")
		defer func() {
			span.End()
			span.Log(s.logger)
		}()

		collectCtx, collect := tracing.Start(ctx, "collect")
		records, err := s.collector.Collect(collectCtx)
		collect.SetAttr("records", len(records))
		collect.Fail(err)
		collect.End()
		if err != nil {
			span.Fail(err)
			return nil, fmt.Errorf("collecting records: %w", err)
		}

		_, build := tracing.Start(ctx, "rebuild")
		report := s.Rebuild(records)
		build.SetAttr("accepted", report.Accepted)
		build.End()
		return report, nil
	})
	if err != nil {
		s.logger.Error("refresh failed", "error", err)
		return index.BuildReport{}, err
	}
	if shared {
		s.logger.Debug("refresh coalesced with in-flight refresh")
	}
	return v.(index.BuildReport), nil
}

// RunQuery parses text and, for fetch statements, evaluates it against the
// snapshot current at call time. Non-fetch statements are returned to the
// caller as requests.
func (s *Store) RunQuery(ctx context.Context, text string) Outcome {
	start := time.Now()
	snap := s.Snapshot()
	out := s.run(ctx, text, snap)
	s.record(ctx, text, out, time.Since(start))
	return out
}

func (s *Store) run(ctx context.Context, text string, snap *index.Snapshot) Outcome {
	q, err := parser.Parse(text)
	if err != nil {
		return Error{Err: err}
	}
	switch q.Kind {
	case parser.KindRefresh:
		return RefreshRequested{}
	case parser.KindExit:
		return ExitRequested{}
	case parser.KindHelp:
		return HelpRequested{}
	}

	canonical := q.String()
	compute := func() ([]job.Job, error) {
		return s.exec.Execute(ctx, q.Fetch, snap)
	}
	var (
		jobs   []job.Job
		cached bool
	)
	if s.cache != nil {
		jobs, cached, err = s.cache.GetOrCompute(ctx, snap.ID(), canonical, compute)
	} else {
		jobs, err = compute()
	}
	if err != nil {
		return Error{Err: &QueryError{Query: canonical, Err: err}}
	}
	return Results{Query: canonical, Jobs: jobs, Generation: snap.Generation(), Cached: cached}
}

func (s *Store) record(ctx context.Context, text string, out Outcome, latency time.Duration) {
	rec := QueryRecord{
		Text:    text,
		Outcome: outcomeLabel(out),
		Latency: latency,
	}
	if r, ok := out.(Results); ok {
		rec.Query = r.Query
		rec.Returned = len(r.Jobs)
		rec.Generation = r.Generation
		rec.Cached = r.Cached
	}
	if m := s.metrics; m != nil {
		m.QueriesTotal.WithLabelValues(rec.Outcome).Inc()
		if _, ok := out.(Results); ok {
			status := "miss"
			if rec.Cached {
				status = "hit"
			}
			m.QueryLatency.WithLabelValues(status).Observe(latency.Seconds())
			m.QueryResultsCount.Observe(float64(rec.Returned))
		}
	}
	for _, fn := range s.observers {
		fn(ctx, rec)
	}
}

// Stats describes the current snapshot and the rebuild that produced it.
type Stats struct {
	index.Stats
	LastReport  index.BuildReport `json:"last_report"`
	LastRebuild time.Time         `json:"last_rebuild"`
}

func (s *Store) Stats() Stats {
	st := s.current.Load()
	return Stats{
		Stats:       st.snap.Stats(),
		LastReport:  st.report,
		LastRebuild: st.builtAt,
	}
}
