// Package repl is the interactive terminal front end. It reads one JHQL
// statement per line, runs it against the store and prints the outcome.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/scraper"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/store"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
)

const (
	defaultPrompt = ">> "
	notAvailable  = "N/A"
	separator     = "+--------------------------------------------------------------------------------+"

	ansiReset = "\033[0m"
	ansiLabel = "\033[1;92m"
	ansiText  = "\033[32m"
	ansiLink  = "\033[94m"
)

const helpText = `Statements:
  fetch jobs [where <condition> ((and|or) <condition>)*] [order by <field> [asc|desc]] [limit <n>]
  refresh     re-scrape every source and rebuild the index
  help        show this message
  exit, quit  leave

Conditions:
  skill       =, !=, contains
  company     =, !=, contains
  title       =, !=, contains
  location    =, !=, contains     (e.g. remote, onsite, a city)
  seniority   =, !=, <, <=, >, >=   (junior, mid, senior, lead, unspecified)
  date_posted =, !=, <, <=, >, >=   (YYYY-MM-DD)

Conditions are combined strictly left to right.
Values may be bare words or quoted with ' or ".
`

// Store is the part of *store.Store the loop needs.
type Store interface {
	RunQuery(ctx context.Context, text string) store.Outcome
	Refresh(ctx context.Context) (index.BuildReport, error)
}

// SourceReporter exposes per-source results of the last collection.
// *scraper.Collector satisfies it.
type SourceReporter interface {
	LastRun() []scraper.SourceResult
}

// REPL runs the read/eval/print loop over a reader and a writer.
type REPL struct {
	store   Store
	sources SourceReporter
	prompt  string
	color   bool
	logger  *slog.Logger
}

// New returns a REPL over s. sources may be nil.
func New(s Store, sources SourceReporter, cfg config.REPLConfig) *REPL {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	return &REPL{
		store:   s,
		sources: sources,
		prompt:  prompt,
		color:   cfg.Color,
		logger:  slog.Default().With("component", "repl"),
	}
}

// Run prints the banner and processes lines from in until exit, end of input
// or cancellation of ctx. Only write and read failures are returned.
func (r *REPL) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	r.status(w, "Job Hunt is ready. Please begin your job hunt by entering a query (type help for usage):\n")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprint(w, r.prompt)
		if err := w.Flush(); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			break
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !r.eval(ctx, w, line) {
			break
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	r.status(w, "\nThank you for using Job Hunt. Goodbye!\n")
	return w.Flush()
}

// eval handles one line and reports whether the loop should continue.
func (r *REPL) eval(ctx context.Context, w io.Writer, line string) bool {
	switch out := r.store.RunQuery(ctx, line).(type) {
	case store.Results:
		for _, j := range out.Jobs {
			r.printJob(w, j)
		}
		r.status(w, fmt.Sprintf("%d items returned\n", len(out.Jobs)))
	case store.RefreshRequested:
		r.refresh(ctx, w)
	case store.HelpRequested:
		fmt.Fprint(w, helpText)
	case store.ExitRequested:
		return false
	case store.Error:
		r.printError(w, line, out)
	}
	return true
}

func (r *REPL) refresh(ctx context.Context, w io.Writer) {
	r.status(w, "Refreshing...\n")
	report, err := r.store.Refresh(ctx)
	if err != nil {
		r.logger.Warn("interactive refresh failed", "error", err)
		r.status(w, fmt.Sprintf("Refresh failed: %v\n", err))
		return
	}
	if r.sources != nil {
		for _, res := range r.sources.LastRun() {
			if res.Err != nil {
				fmt.Fprintf(w, "  %-20s failed: %v\n", res.Source, res.Err)
				continue
			}
			fmt.Fprintf(w, "  %-20s %d records in %s\n", res.Source, res.Records, res.Duration.Round(time.Millisecond))
		}
	}
	r.status(w, fmt.Sprintf("Refresh completed successfully! %d jobs indexed (%d invalid, %d duplicates, %d undated)\n",
		report.Accepted, report.SkippedInvalid, report.Duplicates, report.UnknownDates))
}

func (r *REPL) printError(w io.Writer, line string, e store.Error) {
	perr, ok := e.ParseError()
	if !ok {
		r.status(w, fmt.Sprintf("query failed: %v\n", e.Err))
		return
	}
	r.status(w, fmt.Sprintf("%q is not a valid command\n", line))
	col := utf8.RuneCountInString(line[:min(perr.Offset, len(line))])
	fmt.Fprintf(w, "  %s\n", line)
	fmt.Fprintf(w, "  %s^ expected %s, found %s\n", strings.Repeat(" ", col), perr.Expected, perr.Found)
}

func (r *REPL) printJob(w io.Writer, j job.Job) {
	tags := notAvailable
	if len(j.Skills) > 0 {
		tags = "[ " + strings.Join(j.Skills, ", ") + " ]"
	}
	r.field(w, "Position:", j.Title, ansiText)
	r.field(w, "Company:", j.Company, ansiText)
	r.field(w, "Seniority:", j.Seniority.String(), ansiText)
	r.field(w, "Date Posted:", j.DatePosted.String(), ansiText)
	r.field(w, "Location:", orNA(j.Location), ansiText)
	r.field(w, "Remuneration:", orNA(j.Remuneration), ansiText)
	r.field(w, "Tags:", tags, ansiText)
	r.field(w, "Apply:", j.SourceURL, ansiLink)
	r.field(w, "Site:", orNA(j.Site), ansiLink)
	fmt.Fprintln(w)
	r.status(w, separator+"\n")
}

func (r *REPL) field(w io.Writer, label, value, style string) {
	if !r.color {
		fmt.Fprintf(w, "%s %s\n", label, value)
		return
	}
	fmt.Fprintf(w, "%s%s%s %s%s%s\n", ansiLabel, label, ansiReset, style, value, ansiReset)
}

func (r *REPL) status(w io.Writer, msg string) {
	if !r.color {
		fmt.Fprint(w, msg)
		return
	}
	fmt.Fprint(w, ansiLabel+msg+ansiReset)
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
