// Package scraper gathers raw job records from the configured sources before
// each rebuild. Every source is fetched concurrently; a source that fails
// contributes nothing to the batch and never aborts the others.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/postgres"
)

// ErrSourceUnavailable is returned when a source's backing service was not
// configured or could not be reached at startup.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source produces one batch of raw records per call.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]job.RawJob, error)
}

// Deps carries the shared clients sources may need. Nil fields disable the
// source kinds that depend on them.
type Deps struct {
	Postgres *postgres.Client
	Kafka    config.KafkaConfig
	Metrics  *metrics.Metrics
}

// NewSources builds one Source per configured entry.
func NewSources(cfg config.ScraperConfig, deps Deps) ([]Source, error) {
	sources := make([]Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		var (
			src Source
			err error
		)
		switch sc.Kind {
		case config.SourceHTTP:
			src = NewHTTPSource(sc, cfg, deps.Metrics)
		case config.SourceFile:
			src = NewFileSource(sc)
		case config.SourcePostgres:
			if deps.Postgres == nil {
				err = fmt.Errorf("source %q: %w: postgres is not connected", sc.Name, ErrSourceUnavailable)
				break
			}
			src = NewPostgresSource(sc, deps.Postgres)
		case config.SourceKafka:
			src = NewKafkaSource(sc, deps.Kafka)
		default:
			err = fmt.Errorf("source %q: unknown kind %q", sc.Name, sc.Kind)
		}
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// stamp fills the site and scrape time a source knows but the record may
// lack. Relative posting dates resolve against ScrapedAt.
func stamp(records []job.RawJob, site string, at time.Time) {
	for i := range records {
		if strings.TrimSpace(records[i].Site) == "" {
			records[i].Site = site
		}
		if records[i].ScrapedAt.IsZero() {
			records[i].ScrapedAt = at
		}
	}
}

// envelope accepts the payload shapes job boards commonly return: a bare
// array, or an object with the array under "jobs", "results" or "data".
type envelope struct {
	Jobs    []job.RawJob `json:"jobs" yaml:"jobs"`
	Results []job.RawJob `json:"results" yaml:"results"`
	Data    []job.RawJob `json:"data" yaml:"data"`
}

func (e envelope) records() []job.RawJob {
	switch {
	case e.Jobs != nil:
		return e.Jobs
	case e.Results != nil:
		return e.Results
	default:
		return e.Data
	}
}

func decodeJSONRecords(body []byte) ([]job.RawJob, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var records []job.RawJob
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("decoding record array: %w", err)
		}
		return records, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding record envelope: %w", err)
	}
	return env.records(), nil
}
