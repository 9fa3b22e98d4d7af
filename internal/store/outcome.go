package store

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/searcher/parser"
)

// Outcome is the result of RunQuery. It is one of Results, RefreshRequested,
// ExitRequested, HelpRequested or Error.
type Outcome interface {
	outcome()
}

// Results carries the jobs matched by a fetch statement and the generation
// of the snapshot they were read from.
type Results struct {
	Query      string
	Jobs       []job.Job
	Generation uint64
	Cached     bool
}

// RefreshRequested asks the caller to re-scrape and rebuild.
type RefreshRequested struct{}

// ExitRequested asks the caller to end the session.
type ExitRequested struct{}

// HelpRequested asks the caller to print usage.
type HelpRequested struct{}

// Error reports a query that could not be answered. Err is a
// *parser.ParseError for malformed text and a *QueryError otherwise.
type Error struct {
	Err error
}

func (Results) outcome()          {}
func (RefreshRequested) outcome() {}
func (ExitRequested) outcome()    {}
func (HelpRequested) outcome()    {}
func (Error) outcome()            {}

func (e Error) Error() string {
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// ParseError returns the syntax error behind e, if any.
func (e Error) ParseError() (*parser.ParseError, bool) {
	var perr *parser.ParseError
	if errors.As(e.Err, &perr) {
		return perr, true
	}
	return nil, false
}

// QueryError wraps a failure that happened after parsing succeeded.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// outcomeLabel is the metrics and analytics label for an outcome.
func outcomeLabel(o Outcome) string {
	switch o := o.(type) {
	case Results:
		if len(o.Jobs) == 0 {
			return "zero_result"
		}
		return "results"
	case RefreshRequested:
		return "refresh"
	case ExitRequested:
		return "exit"
	case HelpRequested:
		return "help"
	case Error:
		if _, ok := o.ParseError(); ok {
			return "syntax_error"
		}
		return "error"
	default:
		return "unknown"
	}
}
