package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/store"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/logger"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return p.err
}

func (p *recordingPublisher) events() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var all []kafka.Event
	for _, b := range p.batches {
		all = append(all, b...)
	}
	return all
}

func TestCollectorBatchesAndFlushesOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 2, time.Hour)
	c.Start(context.Background())

	ctx := logger.WithRequestID(context.Background(), "req-1")
	c.Observe(ctx, store.QueryRecord{Text: "fetch jobs", Query: "fetch jobs", Outcome: "results", Returned: 3, Latency: 2 * time.Millisecond})
	c.Observe(ctx, store.QueryRecord{Text: "fetch jobs", Query: "fetch jobs", Outcome: "results", Returned: 3, Cached: true})
	c.ObserveRebuild(4, index.BuildReport{Total: 5, Accepted: 4, Duplicates: 1})
	c.Close()
	c.Track("late", "ignored")

	events := pub.events()
	if len(events) != 3 {
		t.Fatalf("published %d events, want 3", len(events))
	}
	if len(pub.batches) != 2 || len(pub.batches[0]) != 2 {
		t.Errorf("batches = %d (first %d), want a full batch then a final flush", len(pub.batches), len(pub.batches[0]))
	}
	q, ok := events[0].Value.(QueryEvent)
	if !ok || events[0].Key != "query" {
		t.Fatalf("first event = %#v", events[0])
	}
	if q.RequestID != "req-1" || q.LatencyMs != 2 || q.Returned != 3 {
		t.Errorf("query event = %+v", q)
	}
	r, ok := events[2].Value.(RebuildEvent)
	if !ok || r.Generation != 4 || r.Duplicates != 1 {
		t.Errorf("rebuild event = %#v", events[2].Value)
	}
}

func TestCollectorFlushesOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 50, 10*time.Millisecond)
	c.Start(context.Background())
	defer c.Close()

	c.Track("query", QueryEvent{Type: EventQuery})
	deadline := time.Now().Add(2 * time.Second)
	for len(pub.events()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCollectorPublishFailureIsDropped(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 10, 1, time.Hour)
	c.Start(context.Background())
	c.Track("query", QueryEvent{})
	c.Track("query", QueryEvent{})
	c.Close()
	if len(pub.batches) != 2 {
		t.Errorf("attempted %d batches, want 2", len(pub.batches))
	}
}

func TestCollectorStopsOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 10, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.Track("query", QueryEvent{})
	cancel()
	c.Close()
	if len(pub.events()) != 1 {
		t.Errorf("published %d events after cancel, want 1", len(pub.events()))
	}
}

func TestAggregator(t *testing.T) {
	a := NewAggregator()
	records := []store.QueryRecord{
		{Text: "fetch jobs where skill = rust", Query: `fetch jobs where skill = "rust"`, Outcome: "results", Returned: 2, Latency: 10 * time.Millisecond},
		{Text: "FETCH JOBS WHERE SKILL = RUST", Query: `fetch jobs where skill = "rust"`, Outcome: "results", Returned: 2, Cached: true, Latency: 2 * time.Millisecond},
		{Text: "fetch jobs where skill = cobol", Query: `fetch jobs where skill = "cobol"`, Outcome: "zero_result", Latency: 4 * time.Millisecond},
		{Text: "fetch jobz", Outcome: "syntax_error"},
		{Text: "help", Outcome: "help"},
	}
	for _, rec := range records {
		a.Observe(context.Background(), rec)
	}
	a.ObserveRebuild(3, index.BuildReport{})

	s := a.Stats()
	if s.TotalQueries != 5 {
		t.Errorf("total = %d, want 5", s.TotalQueries)
	}
	if s.Outcomes["results"] != 2 || s.Outcomes["syntax_error"] != 1 || s.Outcomes["help"] != 1 {
		t.Errorf("outcomes = %v", s.Outcomes)
	}
	if s.CacheHits != 1 || s.CacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d", s.CacheHits, s.CacheMisses)
	}
	if s.ZeroResultCount != 1 || len(s.ZeroResultQueries) != 1 || s.ZeroResultQueries[0].Query != `fetch jobs where skill = "cobol"` {
		t.Errorf("zero results = %d %v", s.ZeroResultCount, s.ZeroResultQueries)
	}
	if len(s.TopQueries) != 2 || s.TopQueries[0].Count != 2 {
		t.Errorf("top queries = %v", s.TopQueries)
	}
	if s.P50LatencyMs != 4 || s.P99LatencyMs != 10 {
		t.Errorf("latency p50/p99 = %d/%d", s.P50LatencyMs, s.P99LatencyMs)
	}
	if s.Rebuilds != 1 || s.LastGeneration != 3 {
		t.Errorf("rebuilds = %d gen = %d", s.Rebuilds, s.LastGeneration)
	}
}

func TestAggregatorLatencyWindow(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		a.Record(QueryEvent{Query: "q", Outcome: "results", Returned: 1, LatencyMs: int64(i)})
	}
	a.mu.Lock()
	n := len(a.latencies)
	a.mu.Unlock()
	if n != maxLatencySamples {
		t.Errorf("kept %d samples, want %d", n, maxLatencySamples)
	}
}

func TestHandler(t *testing.T) {
	a := NewAggregator()
	a.Record(QueryEvent{Query: "fetch jobs", Outcome: "results", Returned: 1})
	mux := http.NewServeMux()
	NewHandler(a).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got AggregatedStats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.TotalQueries != 1 || len(got.TopQueries) != 1 {
		t.Errorf("stats = %+v", got)
	}
}
