package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/scraper"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/store"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
)

type staticCollector struct {
	records []job.RawJob
	err     error
}

func (c staticCollector) Collect(context.Context) ([]job.RawJob, error) {
	return c.records, c.err
}

type fixedSources []scraper.SourceResult

func (f fixedSources) LastRun() []scraper.SourceResult { return f }

var records = []job.RawJob{
	{Title: "Rust Engineer", Company: "Acme", Skills: []string{"rust", "solana"}, Seniority: "senior", DatePosted: "2024-03-02", SourceURL: "https://jobs.example/1", Site: "example"},
	{Title: "Go Developer", Company: "Beta", Skills: []string{"go"}, DatePosted: "2024-03-01", SourceURL: "https://jobs.example/2", Location: "Remote"},
}

func run(t *testing.T, r *REPL, input string) string {
	t.Helper()
	var out bytes.Buffer
	if err := r.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestFetchTranscript(t *testing.T) {
	s := store.New()
	s.Rebuild(records)
	out := run(t, New(s, nil, config.REPLConfig{}), "fetch jobs where skill = rust\nfetch jobs\nexit\n")

	for _, want := range []string{
		"Job Hunt is ready",
		">> ",
		"Position: Rust Engineer\n",
		"Company: Acme\n",
		"Seniority: senior\n",
		"Date Posted: 2024-03-02\n",
		"Location: N/A\n",
		"Tags: [ rust, solana ]\n",
		"Apply: https://jobs.example/1\n",
		"1 items returned\n",
		"Location: Remote\n",
		"2 items returned\n",
		"Goodbye!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("color disabled but transcript contains escape codes")
	}
	// Default order is newest first.
	if strings.Index(out, "Rust Engineer") > strings.Index(out, "Go Developer") {
		t.Error("fetch jobs not in date-descending order")
	}
}

func TestParseErrorCaret(t *testing.T) {
	out := run(t, New(store.New(), nil, config.REPLConfig{}), "fetch jobs where salary = 10\n")
	if !strings.Contains(out, `"fetch jobs where salary = 10" is not a valid command`) {
		t.Errorf("missing invalid command line:\n%s", out)
	}
	want := "  fetch jobs where salary = 10\n  " + strings.Repeat(" ", 17) + "^ expected field"
	if !strings.Contains(out, want) {
		t.Errorf("caret not under offset 17:\n%s", out)
	}
}

func TestRefresh(t *testing.T) {
	s := store.New(store.WithCollector(staticCollector{records: records}))
	sources := fixedSources{
		{Source: "board", Records: 2},
		{Source: "feed", Err: errors.New("connection refused")},
	}
	out := run(t, New(s, sources, config.REPLConfig{}), "refresh\nfetch jobs\n")
	for _, want := range []string{
		"Refreshing...\n",
		"board",
		"2 records",
		"feed",
		"failed: connection refused",
		"Refresh completed successfully! 2 jobs indexed",
		"2 items returned",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestRefreshFailure(t *testing.T) {
	s := store.New(store.WithCollector(staticCollector{err: errors.New("all sources down")}))
	out := run(t, New(s, nil, config.REPLConfig{}), "refresh\n")
	if !strings.Contains(out, "Refresh failed:") || !strings.Contains(out, "all sources down") {
		t.Errorf("refresh failure not reported:\n%s", out)
	}
}

func TestHelpBlankLinesAndEOF(t *testing.T) {
	out := run(t, New(store.New(), nil, config.REPLConfig{Prompt: "jh> "}), "\n   \nhelp\n")
	if !strings.Contains(out, "Statements:") {
		t.Errorf("help not printed:\n%s", out)
	}
	if got := strings.Count(out, "jh> "); got != 4 {
		t.Errorf("prompt printed %d times, want 4:\n%s", got, out)
	}
	if !strings.HasSuffix(out, "Goodbye!\n") {
		t.Errorf("EOF did not print goodbye:\n%s", out)
	}
}

func TestExitStopsReading(t *testing.T) {
	s := store.New()
	s.Rebuild(records)
	out := run(t, New(s, nil, config.REPLConfig{}), "quit\nfetch jobs\n")
	if strings.Contains(out, "items returned") {
		t.Errorf("input after quit was evaluated:\n%s", out)
	}
}

func TestColor(t *testing.T) {
	s := store.New()
	s.Rebuild(records)
	out := run(t, New(s, nil, config.REPLConfig{Color: true}), "fetch jobs\n")
	if !strings.Contains(out, ansiLabel+"Position:"+ansiReset) {
		t.Errorf("labels not colored:\n%q", out)
	}
}
