package scraper

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/postgres"
)

// defaultJobsQuery reads a table populated by an external crawler:
//
//	CREATE TABLE scraped_jobs (
//	    source_url   TEXT PRIMARY KEY,
//	    title        TEXT NOT NULL,
//	    company      TEXT NOT NULL,
//	    skills       TEXT[] NOT NULL DEFAULT '{}',
//	    seniority    TEXT,
//	    date_posted  TEXT,
//	    site         TEXT,
//	    location     TEXT,
//	    remuneration TEXT,
//	    description  TEXT,
//	    scraped_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
// A custom query must return the same columns in the same order.
const defaultJobsQuery = `SELECT title, company, skills, seniority, date_posted, source_url,
       site, location, remuneration, description, scraped_at
FROM scraped_jobs`

type PostgresSource struct {
	name  string
	query string
	db    *postgres.Client
}

func NewPostgresSource(sc config.SourceConfig, db *postgres.Client) *PostgresSource {
	q := sc.Query
	if q == "" {
		q = defaultJobsQuery
	}
	return &PostgresSource{name: sc.Name, query: q, db: db}
}

func (s *PostgresSource) Name() string { return s.name }

func (s *PostgresSource) Fetch(ctx context.Context) ([]job.RawJob, error) {
	var records []job.RawJob
	err := s.db.QueryReadOnly(ctx, s.query, func(rows *sql.Rows) error {
		var err error
		records, err = scanRecords(rows, s.name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	return records, nil
}

// rowScanner is satisfied by *sql.Rows.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner, site string) ([]job.RawJob, error) {
	records := make([]job.RawJob, 0, 64)
	for rows.Next() {
		var (
			r                         job.RawJob
			skills                    pq.StringArray
			seniority, datePosted     sql.NullString
			siteCol, location         sql.NullString
			remuneration, description sql.NullString
			scrapedAt                 sql.NullTime
		)
		if err := rows.Scan(
			&r.Title, &r.Company, &skills, &seniority, &datePosted, &r.SourceURL,
			&siteCol, &location, &remuneration, &description, &scrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		r.Skills = skills
		r.Seniority = seniority.String
		r.DatePosted = datePosted.String
		r.Site = siteCol.String
		r.Location = location.String
		r.Remuneration = remuneration.String
		r.Description = description.String
		r.ScrapedAt = scrapedAt.Time
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job rows: %w", err)
	}
	for i := range records {
		if records[i].Site == "" {
			records[i].Site = site
		}
	}
	return records, nil
}
