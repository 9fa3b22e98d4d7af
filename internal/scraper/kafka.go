package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/kafka"
)

const defaultKafkaIdle = 2 * time.Second

// drainer is the part of kafka.Consumer the source uses.
type drainer interface {
	Drain(ctx context.Context, idle time.Duration) (int, error)
	Close() error
}

// KafkaSource follows a topic of JSON job postings published by external
// crawlers. Each Fetch drains what arrived since the previous one and returns
// every posting seen so far, the newest message per source URL winning, so a
// full rebuild still sees postings consumed by earlier refreshes.
type KafkaSource struct {
	name     string
	idle     time.Duration
	consumer drainer
	mu       sync.Mutex
	seen     map[string]job.RawJob
	order    []string
	logger   *slog.Logger
}

func NewKafkaSource(sc config.SourceConfig, cfg config.KafkaConfig) *KafkaSource {
	s := newKafkaSource(sc)
	topic := cfg.Topics.JobPostings
	if sc.Query != "" {
		topic = sc.Query
	}
	s.consumer = kafka.NewConsumer(cfg, topic, s.handle)
	return s
}

func newKafkaSource(sc config.SourceConfig) *KafkaSource {
	idle := sc.IdleTimeout
	if idle <= 0 {
		idle = defaultKafkaIdle
	}
	return &KafkaSource{
		name:   sc.Name,
		idle:   idle,
		seen:   make(map[string]job.RawJob),
		logger: slog.Default().With("component", "kafka-source", "source", sc.Name),
	}
}

func (s *KafkaSource) Name() string { return s.name }

// Close releases the topic reader.
func (s *KafkaSource) Close() error {
	return s.consumer.Close()
}

func (s *KafkaSource) Fetch(ctx context.Context) ([]job.RawJob, error) {
	n, err := s.consumer.Drain(ctx, s.idle)
	if err != nil {
		return nil, fmt.Errorf("draining topic: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]job.RawJob, 0, len(s.order))
	for _, url := range s.order {
		records = append(records, s.seen[url])
	}
	s.logger.Debug("topic drained", "new_messages", n, "records", len(records))
	return records, nil
}

func (s *KafkaSource) handle(ctx context.Context, key, value []byte) error {
	r, err := kafka.DecodeJSON[job.RawJob](value)
	if err != nil {
		return err
	}
	url := strings.TrimSpace(r.SourceURL)
	if url == "" {
		url = string(key)
	}
	if url == "" {
		return fmt.Errorf("message has no source_url")
	}
	r.SourceURL = url
	if r.Site == "" {
		r.Site = s.name
	}
	if r.ScrapedAt.IsZero() {
		r.ScrapedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[url]; !ok {
		s.order = append(s.order, url)
	}
	s.seen[url] = r
	return nil
}
