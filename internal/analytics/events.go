package analytics

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/store"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/logger"
)

type EventType string

const (
	EventQuery   EventType = "query"
	EventRebuild EventType = "rebuild"
)

// QueryEvent is published once per RunQuery.
type QueryEvent struct {
	Type       EventType `json:"type"`
	Text       string    `json:"text"`
	Query      string    `json:"query,omitempty"`
	Outcome    string    `json:"outcome"`
	Returned   int       `json:"returned"`
	Generation uint64    `json:"generation"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// RebuildEvent is published once per snapshot swap.
type RebuildEvent struct {
	Type           EventType `json:"type"`
	Generation     uint64    `json:"generation"`
	Total          int       `json:"total"`
	Accepted       int       `json:"accepted"`
	SkippedInvalid int       `json:"skipped_invalid"`
	Duplicates     int       `json:"duplicates"`
	UnknownDates   int       `json:"unknown_dates"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewQueryEvent(ctx context.Context, rec store.QueryRecord) QueryEvent {
	return QueryEvent{
		Type:       EventQuery,
		Text:       rec.Text,
		Query:      rec.Query,
		Outcome:    rec.Outcome,
		Returned:   rec.Returned,
		Generation: rec.Generation,
		LatencyMs:  rec.Latency.Milliseconds(),
		CacheHit:   rec.Cached,
		Timestamp:  time.Now().UTC(),
		RequestID:  logger.RequestID(ctx),
	}
}

func NewRebuildEvent(generation uint64, report index.BuildReport) RebuildEvent {
	return RebuildEvent{
		Type:           EventRebuild,
		Generation:     generation,
		Total:          report.Total,
		Accepted:       report.Accepted,
		SkippedInvalid: report.SkippedInvalid,
		Duplicates:     report.Duplicates,
		UnknownDates:   report.UnknownDates,
		Timestamp:      time.Now().UTC(),
	}
}
