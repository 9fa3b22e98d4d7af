package scraper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
)

func scraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		Timeout:         2 * time.Second,
		RetryAttempts:   3,
		RetryDelay:      time.Millisecond,
		BreakerFailures: 2,
		BreakerReset:    time.Hour,
		UserAgent:       "jobhunt-test",
	}
}

func TestHTTPSourcePayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array", `[{"title":"Rust Dev","company":"Acme","source_url":"a","skills":["rust"]}]`},
		{"jobs envelope", `{"jobs":[{"title":"Rust Dev","company":"Acme","source_url":"a"}]}`},
		{"results envelope", `{"results":[{"title":"Rust Dev","company":"Acme","source_url":"a"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != "jobhunt-test" {
					t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
				}
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			src := NewHTTPSource(config.SourceConfig{Name: "board", URL: srv.URL}, scraperConfig(), nil)
			records, err := src.Fetch(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(records) != 1 || records[0].Title != "Rust Dev" {
				t.Fatalf("records = %+v", records)
			}
			if records[0].Site != "board" || records[0].ScrapedAt.IsZero() {
				t.Errorf("record not stamped: %+v", records[0])
			}
		})
	}
}

func TestHTTPSourceRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src := NewHTTPSource(config.SourceConfig{Name: "flaky", URL: srv.URL}, scraperConfig(), nil)
	records, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 || calls.Load() != 3 {
		t.Errorf("records = %d, calls = %d", len(records), calls.Load())
	}
}

func TestHTTPSourcePermanentFailureAndBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPSource(config.SourceConfig{Name: "gone", URL: srv.URL}, scraperConfig(), nil)
	for i := 0; i < 3; i++ {
		if _, err := src.Fetch(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	}
	// Two fetches trip the breaker; the third is rejected without a request.
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "jobs.yaml")
	os.WriteFile(yamlPath, []byte(`
jobs:
  - title: Rust Dev
    company: Acme
    source_url: https://example.com/1
    skills: [Rust, Solana]
    seniority: Senior
    date_posted: 3 days ago
`), 0o644)
	jsonPath := filepath.Join(dir, "jobs.json")
	os.WriteFile(jsonPath, []byte(`[{"title":"Go Dev","company":"Beta","source_url":"https://example.com/2"}]`), 0o644)
	emptyPath := filepath.Join(dir, "empty.yaml")
	os.WriteFile(emptyPath, nil, 0o644)

	mtime := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	os.Chtimes(yamlPath, mtime, mtime)

	records, err := NewFileSource(config.SourceConfig{Name: "local", Path: yamlPath}).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Skills[1] != "Solana" || records[0].Site != "local" {
		t.Fatalf("records = %+v", records)
	}
	j, err := job.Normalize(records[0])
	if err != nil {
		t.Fatal(err)
	}
	if got := j.DatePosted.String(); got != "2024-03-07" {
		t.Errorf("relative date resolved to %s", got)
	}

	records, err = NewFileSource(config.SourceConfig{Name: "local", Path: jsonPath}).Fetch(context.Background())
	if err != nil || len(records) != 1 || records[0].Company != "Beta" {
		t.Errorf("json records = %+v, %v", records, err)
	}

	records, err = NewFileSource(config.SourceConfig{Name: "local", Path: emptyPath}).Fetch(context.Background())
	if err != nil || len(records) != 0 {
		t.Errorf("empty file = %+v, %v", records, err)
	}

	if _, err := NewFileSource(config.SourceConfig{Name: "x", Path: filepath.Join(dir, "missing")}).Fetch(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (f *fakeRows) Next() bool {
	f.pos++
	return f.pos <= len(f.rows)
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	for i, d := range dest {
		switch d := d.(type) {
		case *string:
			*d = row[i].(string)
		case *pq.StringArray:
			*d = row[i].(pq.StringArray)
		case *sql.NullString:
			if row[i] == nil {
				*d = sql.NullString{}
			} else {
				*d = sql.NullString{String: row[i].(string), Valid: true}
			}
		case *sql.NullTime:
			if row[i] == nil {
				*d = sql.NullTime{}
			} else {
				*d = sql.NullTime{Time: row[i].(time.Time), Valid: true}
			}
		default:
			return fmt.Errorf("unexpected dest %T", d)
		}
	}
	return nil
}

func (f *fakeRows) Err() error { return nil }

func TestScanRecords(t *testing.T) {
	at := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	rows := &fakeRows{rows: [][]any{
		{"Rust Dev", "Acme", pq.StringArray{"rust"}, "senior", "2024-02-01", "a", nil, nil, nil, nil, at},
		{"Go Dev", "Beta", pq.StringArray{}, nil, nil, "b", "board", "Remote", "100k", "desc", nil},
	}}
	records, err := scanRecords(rows, "db")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if r := records[0]; r.Seniority != "senior" || r.Site != "db" || !r.ScrapedAt.Equal(at) || r.Skills[0] != "rust" {
		t.Errorf("first = %+v", r)
	}
	if r := records[1]; r.Site != "board" || r.DatePosted != "" || r.Location != "Remote" {
		t.Errorf("second = %+v", r)
	}
}

type fakeDrainer struct {
	src      *KafkaSource
	messages [][2]string
}

func (d *fakeDrainer) Drain(ctx context.Context, idle time.Duration) (int, error) {
	n := 0
	for _, m := range d.messages {
		if err := d.src.handle(ctx, []byte(m[0]), []byte(m[1])); err == nil {
			n++
		}
	}
	d.messages = nil
	return n, nil
}

func (d *fakeDrainer) Close() error { return nil }

func TestKafkaSourceAccumulates(t *testing.T) {
	src := newKafkaSource(config.SourceConfig{Name: "stream"})
	d := &fakeDrainer{src: src, messages: [][2]string{
		{"", `{"title":"Rust Dev","company":"Acme","source_url":"a"}`},
		{"b", `{"title":"Go Dev","company":"Beta"}`},
		{"", `not json`},
		{"", `{"title":"No URL","company":"Acme"}`},
	}}
	src.consumer = d

	records, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].SourceURL != "b" || records[0].Site != "stream" {
		t.Fatalf("records = %+v", records)
	}

	d.messages = [][2]string{{"", `{"title":"Rust Lead","company":"Acme","source_url":"a"}`}}
	records, err = src.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Title != "Rust Lead" {
		t.Errorf("second drain = %+v", records)
	}
}

type stubSource struct {
	name    string
	records []job.RawJob
	err     error
	delay   time.Duration
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Fetch(ctx context.Context) ([]job.RawJob, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.records, s.err
}

func TestCollectorIsolatesFailures(t *testing.T) {
	c := NewCollector([]Source{
		stubSource{name: "slow", records: []job.RawJob{{SourceURL: "s1"}}, delay: 20 * time.Millisecond},
		stubSource{name: "broken", err: errors.New("boom")},
		stubSource{name: "hung", delay: time.Hour},
		stubSource{name: "fast", records: []job.RawJob{{SourceURL: "f1"}, {SourceURL: "f2"}}},
	}, 200*time.Millisecond, 2, nil)

	records, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var urls []string
	for _, r := range records {
		urls = append(urls, r.SourceURL)
	}
	if fmt.Sprint(urls) != "[s1 f1 f2]" {
		t.Errorf("records = %v, want source order [s1 f1 f2]", urls)
	}

	run := c.LastRun()
	if len(run) != 4 {
		t.Fatalf("last run = %+v", run)
	}
	if run[1].Err == nil || run[2].Err == nil || run[0].Err != nil || run[3].Records != 2 {
		t.Errorf("last run = %+v", run)
	}
}

// stubbornSource ignores its context and finishes long after the collector
// has given up on it.
type stubbornSource struct {
	finished chan struct{}
}

func (s stubbornSource) Name() string { return "stubborn" }

func (s stubbornSource) Fetch(context.Context) ([]job.RawJob, error) {
	defer close(s.finished)
	time.Sleep(50 * time.Millisecond)
	return []job.RawJob{{SourceURL: "late"}}, nil
}

func TestCollectorAbandonsLateSource(t *testing.T) {
	src := stubbornSource{finished: make(chan struct{})}
	c := NewCollector([]Source{
		src,
		stubSource{name: "fast", records: []job.RawJob{{SourceURL: "f1"}}},
	}, 5*time.Millisecond, 0, nil)

	records, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	<-src.finished
	if len(records) != 1 || records[0].SourceURL != "f1" {
		t.Errorf("records = %+v, want only f1", records)
	}
	run := c.LastRun()
	if !errors.Is(run[0].Err, context.DeadlineExceeded) || run[0].Records != 0 {
		t.Errorf("late source result = %+v", run[0])
	}
}

func TestCollectorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCollector([]Source{stubSource{name: "a"}}, 0, 0, nil)
	if _, err := c.Collect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewSources(t *testing.T) {
	cfg := scraperConfig()
	cfg.Sources = []config.SourceConfig{
		{Name: "web", Kind: config.SourceHTTP, URL: "http://localhost/jobs"},
		{Name: "disk", Kind: config.SourceFile, Path: "jobs.yaml"},
	}
	sources, err := NewSources(cfg, Deps{})
	if err != nil || len(sources) != 2 || sources[1].Name() != "disk" {
		t.Fatalf("sources = %v, err = %v", sources, err)
	}

	cfg.Sources = []config.SourceConfig{{Name: "db", Kind: config.SourcePostgres}}
	if _, err := NewSources(cfg, Deps{}); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}
