package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/metrics"
)

func rustJob(url string) job.RawJob {
	return job.RawJob{
		SourceURL:  url,
		Title:      "Rust Dev",
		Company:    "Acme",
		Skills:     []string{"Rust", "Solana"},
		Seniority:  "Senior",
		DatePosted: "2024-03-01",
	}
}

func TestNewStoreIsEmpty(t *testing.T) {
	s := New()
	if s.Snapshot().Generation() != 0 || s.Snapshot().Len() != 0 {
		t.Fatal("new store must hold an empty generation-0 snapshot")
	}
	out := s.RunQuery(context.Background(), "fetch jobs")
	r, ok := out.(Results)
	if !ok {
		t.Fatalf("outcome = %T, want Results", out)
	}
	if r.Jobs == nil || len(r.Jobs) != 0 {
		t.Errorf("jobs = %v, want empty non-nil", r.Jobs)
	}
}

func TestRunQueryOutcomes(t *testing.T) {
	s := New()
	s.Rebuild([]job.RawJob{rustJob("a")})
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{`fetch jobs where skill = "solana"`, "results"},
		{`fetch jobs where skill = "python"`, "zero_result"},
		{"refresh", "refresh"},
		{"EXIT", "exit"},
		{"quit", "exit"},
		{"help", "help"},
		{"fetch jobs where salary > 10", "syntax_error"},
		{"", "syntax_error"},
	}
	for _, tt := range tests {
		if got := outcomeLabel(s.RunQuery(ctx, tt.text)); got != tt.want {
			t.Errorf("RunQuery(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}

	out := s.RunQuery(ctx, "fetch jobs where skill = solana")
	r := out.(Results)
	if len(r.Jobs) != 1 || r.Jobs[0].SourceURL != "a" || r.Generation != 1 {
		t.Errorf("results = %+v", r)
	}

	out = s.RunQuery(ctx, "fetch jobs where nope = 1")
	e, ok := out.(Error)
	if !ok {
		t.Fatalf("outcome = %T, want Error", out)
	}
	if !errors.Is(e, parser.ErrSyntax) {
		t.Errorf("error %v should match parser.ErrSyntax", e)
	}
	if perr, ok := e.ParseError(); !ok || perr.Offset != 17 {
		t.Errorf("parse error = %+v", perr)
	}
}

func TestRebuildGenerations(t *testing.T) {
	var hooked []uint64
	s := New(OnRebuild(func(gen uint64, _ index.BuildReport) {
		hooked = append(hooked, gen)
	}))
	for i := 1; i <= 3; i++ {
		report := s.Rebuild([]job.RawJob{rustJob("a"), rustJob("a"), {Title: "no url"}})
		if report.Accepted != 1 || report.Duplicates != 1 || report.SkippedInvalid != 1 {
			t.Errorf("report = %+v", report)
		}
		if got := s.Snapshot().Generation(); got != uint64(i) {
			t.Errorf("generation = %d, want %d", got, i)
		}
	}
	if len(hooked) != 3 || hooked[2] != 3 {
		t.Errorf("hooks saw %v", hooked)
	}
	st := s.Stats()
	if st.Generation != 3 || st.Jobs != 1 || st.LastReport.Total != 3 || st.LastRebuild.IsZero() {
		t.Errorf("stats = %+v", st)
	}
}

// swapCache rebuilds the store from inside the computation, standing in for
// a refresh that lands while a query is running.
type swapCache struct {
	store *Store
}

func (c *swapCache) GetOrCompute(ctx context.Context, snapshotID string, query string, compute func() ([]job.Job, error)) ([]job.Job, bool, error) {
	c.store.Rebuild(nil)
	jobs, err := compute()
	return jobs, false, err
}

func TestQueryKeepsCapturedSnapshot(t *testing.T) {
	cache := &swapCache{}
	s := New(WithCache(cache))
	cache.store = s
	s.Rebuild([]job.RawJob{rustJob("a")})

	out := s.RunQuery(context.Background(), "fetch jobs where skill = rust")
	r, ok := out.(Results)
	if !ok {
		t.Fatalf("outcome = %T", out)
	}
	if len(r.Jobs) != 1 || r.Generation != 1 {
		t.Errorf("in-flight query saw rebuild: %d jobs, generation %d", len(r.Jobs), r.Generation)
	}
	if s.Snapshot().Generation() != 2 || s.Snapshot().Len() != 0 {
		t.Error("rebuild did not publish the new snapshot")
	}
}

func TestConcurrentQueriesAndRebuilds(t *testing.T) {
	s := New()
	s.Rebuild([]job.RawJob{rustJob("a"), rustJob("b")})
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				r, ok := s.RunQuery(context.Background(), "fetch jobs where skill = rust").(Results)
				if !ok {
					t.Error("unexpected outcome")
					return
				}
				// Every published snapshot holds either both jobs or none.
				if n := len(r.Jobs); n != 0 && n != 2 {
					t.Errorf("torn snapshot: %d jobs", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			s.Rebuild(nil)
		} else {
			s.Rebuild([]job.RawJob{rustJob("a"), rustJob("b")})
		}
	}
	close(stop)
	wg.Wait()
	if got := s.Snapshot().Generation(); got != 51 {
		t.Errorf("generation = %d, want 51", got)
	}
}

type blockingCollector struct {
	calls   atomic.Int32
	release chan struct{}
}

func (c *blockingCollector) Collect(ctx context.Context) ([]job.RawJob, error) {
	c.calls.Add(1)
	<-c.release
	return []job.RawJob{rustJob("a")}, nil
}

func TestRefreshCoalesces(t *testing.T) {
	c := &blockingCollector{release: make(chan struct{})}
	s := New(WithCollector(c))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := s.Refresh(context.Background())
			if err != nil || report.Accepted != 1 {
				t.Errorf("refresh = %+v, %v", report, err)
			}
		}()
	}
	for c.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(c.release)
	wg.Wait()

	if got := c.calls.Load(); got != 1 {
		t.Errorf("collector called %d times, want 1", got)
	}
	if got := s.Snapshot().Generation(); got != 1 {
		t.Errorf("generation = %d, want 1", got)
	}
}

type failingCollector struct{}

func (failingCollector) Collect(context.Context) ([]job.RawJob, error) {
	return nil, errors.New("boom")
}

func TestRefreshErrors(t *testing.T) {
	if _, err := New().Refresh(context.Background()); !errors.Is(err, ErrNoCollector) {
		t.Errorf("err = %v, want ErrNoCollector", err)
	}
	s := New(WithCollector(failingCollector{}))
	s.Rebuild([]job.RawJob{rustJob("a")})
	if _, err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.Snapshot().Generation() != 1 || s.Snapshot().Len() != 1 {
		t.Error("failed refresh replaced the snapshot")
	}
}

func TestObserverAndMetrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	var records []QueryRecord
	s := New(WithMetrics(m), WithQueryObserver(func(_ context.Context, r QueryRecord) {
		records = append(records, r)
	}))
	s.Rebuild([]job.RawJob{rustJob("a")})
	ctx := context.Background()
	s.RunQuery(ctx, "FETCH jobs where skill = RUST")
	s.RunQuery(ctx, "fetch jobs where")

	if len(records) != 2 {
		t.Fatalf("observed %d queries", len(records))
	}
	if r := records[0]; r.Outcome != "results" || r.Returned != 1 || r.Query != `fetch jobs where skill = "rust"` || r.Generation != 1 {
		t.Errorf("record = %+v", r)
	}
	if r := records[1]; r.Outcome != "syntax_error" || r.Text != "fetch jobs where" {
		t.Errorf("record = %+v", r)
	}
	var metric dto.Metric
	if err := m.QueriesTotal.WithLabelValues("syntax_error").Write(&metric); err != nil {
		t.Fatal(err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("syntax_error count = %v", got)
	}
	if err := m.SnapshotJobs.Write(&metric); err != nil {
		t.Fatal(err)
	}
	if got := metric.GetGauge().GetValue(); got != 1 {
		t.Errorf("snapshot jobs gauge = %v", got)
	}
}

// sharedBackend is one Redis instance seen by several stores.
type sharedBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (b *sharedBackend) Load(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *sharedBackend) Save(_ context.Context, key string, payload []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = payload
	return nil
}

func (b *sharedBackend) PurgePrefix(context.Context, string) (int64, error) {
	return 0, nil
}

func TestStoresSharingCacheBackend(t *testing.T) {
	backend := &sharedBackend{data: make(map[string][]byte)}
	cfg := config.RedisConfig{CacheTTL: time.Minute}
	a := New(WithCache(cache.New(backend, cfg, nil)))
	b := New(WithCache(cache.New(backend, cfg, nil)))

	jobA := rustJob("https://a.example/1")
	jobA.Title = "A job"
	jobB := rustJob("https://b.example/1")
	jobB.Title = "B job"
	a.Rebuild([]job.RawJob{jobA})
	b.Rebuild([]job.RawJob{jobB})
	if a.Snapshot().Generation() != b.Snapshot().Generation() {
		t.Fatal("stores should be at the same generation")
	}
	if a.Snapshot().ID() == b.Snapshot().ID() {
		t.Fatal("snapshot IDs must differ between stores")
	}

	ctx := context.Background()
	for _, tt := range []struct {
		store *Store
		title string
	}{
		{a, "A job"},
		{b, "B job"},
		{a, "A job"},
	} {
		r, ok := tt.store.RunQuery(ctx, "fetch jobs").(Results)
		if !ok {
			t.Fatal("expected results")
		}
		if len(r.Jobs) != 1 || r.Jobs[0].Title != tt.title {
			t.Fatalf("got %+v, want only %q", r.Jobs, tt.title)
		}
		if _, found := tt.store.Snapshot().Job(r.Jobs[0].ID); !found {
			t.Errorf("returned job %s is not in the store's snapshot", r.Jobs[0].ID)
		}
	}
}
