package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/resilience"
)

const maxBodyBytes = 32 << 20

// HTTPSource fetches a JSON job feed. Transient failures are retried with
// backoff, and repeated failures open a circuit breaker so a dead board is
// skipped quickly on later refreshes.
type HTTPSource struct {
	name      string
	url       string
	userAgent string
	client    *http.Client
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	now       func() time.Time
	logger    *slog.Logger
}

func NewHTTPSource(sc config.SourceConfig, cfg config.ScraperConfig, m *metrics.Metrics) *HTTPSource {
	bcfg := resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerFailures,
		ResetTimeout:     cfg.BreakerReset,
	}
	if m != nil {
		gauge := m.CircuitBreakerState.WithLabelValues(sc.Name)
		bcfg.OnStateChange = func(s resilience.State) { gauge.Set(float64(s)) }
	}
	return &HTTPSource{
		name:      sc.Name,
		url:       sc.URL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.RetryAttempts,
			InitialDelay: cfg.RetryDelay,
		},
		breaker: resilience.NewCircuitBreaker(sc.Name, bcfg),
		now:     time.Now,
		logger:  slog.Default().With("component", "http-source", "source", sc.Name),
	}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) Fetch(ctx context.Context) ([]job.RawJob, error) {
	var records []job.RawJob
	err := s.breaker.Execute(func() error {
		return resilience.Retry(ctx, "fetch "+s.name, s.retry, func() error {
			var err error
			records, err = s.fetchOnce(ctx)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	stamp(records, s.name, s.now())
	s.logger.Debug("feed fetched", "records", len(records))
	return records, nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]job.RawJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%s returned %d", s.url, resp.StatusCode)
		// Client errors will not fix themselves on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(err)
		}
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			return nil, resilience.After(err, time.Duration(secs)*time.Second)
		}
		return nil, err
	}
	records, err := decodeJSONRecords(body)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	return records, nil
}
