// Package tracing provides lightweight span trees that ride on a context.
// A root span is logged with all of its children once it ends, which is how
// refresh timings per source and per phase reach the log.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// Span is a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []any
	err      error
}

// Start begins a span. When ctx already carries one the new span becomes its
// child and shares its trace ID; otherwise a new trace is started.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, StartTime: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else {
		span.TraceID = uuid.NewString()
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// FromContext returns the innermost span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// SetAttr attaches a key/value pair that is logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Fail marks the span as failed with err. A nil err is ignored.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// End records the span duration.
func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
}

// Children returns a copy of the direct child spans.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span tree to logger at debug level, one record per span.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	attrs = append(attrs, s.attrs...)
	if s.err != nil {
		attrs = append(attrs, "error", s.err)
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.Debug("span", attrs...)
	for _, child := range children {
		child.log(logger, depth+1)
	}
}
