// Package analytics records what users ask the job store. The Collector
// ships query and rebuild events to Kafka in batches; the Aggregator keeps
// in-process counters served over HTTP.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/store"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/kafka"
)

// Publisher writes a batch of events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events and flushes them when a batch fills up or the
// flush interval elapses, whichever comes first. Tracking never blocks: an
// event is dropped when the buffer is full.
type Collector struct {
	publisher     Publisher
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewCollector(publisher Publisher, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan kafka.Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It runs until Close is called or ctx is
// cancelled, then flushes what is left.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.finalFlush(batch)
					return
				}
				batch = append(batch, event)
				if len(batch) >= c.batchSize {
					batch = c.flush(ctx, batch)
				}
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				c.finalFlush(c.drain(batch))
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track enqueues an event.
func (c *Collector) Track(key string, value any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- kafka.Event{Key: key, Value: value}:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Observe is a store query observer.
func (c *Collector) Observe(ctx context.Context, rec store.QueryRecord) {
	c.Track(string(EventQuery), NewQueryEvent(ctx, rec))
}

// ObserveRebuild is a store rebuild hook.
func (c *Collector) ObserveRebuild(generation uint64, report index.BuildReport) {
	c.Track(string(EventRebuild), NewRebuildEvent(generation, report))
}

// Close stops accepting events and waits for the final flush.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.eventCh)
	c.mu.Unlock()
	<-c.done
}

// flush publishes batch and returns an empty buffer to reuse. A failed batch
// is logged and dropped.
func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch",
			"batch_size", len(batch),
			"error", err,
		)
	} else {
		c.logger.Debug("analytics batch flushed", "events", len(batch))
	}
	return make([]kafka.Event, 0, c.batchSize)
}

func (c *Collector) finalFlush(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, batch)
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}
