package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/repl"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/scheduler"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/scraper"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/store"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	headless := flag.Bool("headless", false, "do not start the interactive prompt; serve until signalled")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, *headless); err != nil {
		slog.Error("jobhunt exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, headless bool) error {
	logger.Setup(cfg.Logging, os.Stderr)
	slog.Info("starting jobhunt",
		"sources", len(cfg.Scraper.Sources),
		"server_enabled", cfg.Server.Enabled,
		"headless", headless,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Port); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	var err error
	var pg *postgres.Client
	if needsPostgres(cfg.Scraper) {
		pg, err = postgres.Open(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting postgres source: %w", err)
		}
		defer pg.Close()
	}

	sources, err := scraper.NewSources(cfg.Scraper, scraper.Deps{Postgres: pg, Kafka: cfg.Kafka, Metrics: m})
	if err != nil {
		return err
	}
	collector := scraper.NewCollector(sources, cfg.Scraper.Timeout, cfg.Scraper.MaxConcurrent, m)
	defer closeSources(sources)

	aggregator := analytics.NewAggregator()
	opts := []store.Option{
		store.WithCollector(collector),
		store.WithMetrics(m),
		store.WithQueryObserver(aggregator.Observe),
		store.OnRebuild(aggregator.ObserveRebuild),
	}

	var (
		redisClient *pkgredis.Client
		queryCache  *cache.QueryCache
		cacheStats  handler.CacheStats
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			cacheStats = queryCache
			opts = append(opts,
				store.WithCache(queryCache),
				store.OnRebuild(func(uint64, index.BuildReport) {
					invalidateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := queryCache.Invalidate(invalidateCtx); err != nil {
						slog.Warn("query cache invalidation failed", "error", err)
					}
				}),
			)
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Kafka.PublishAnalytics {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		events := analytics.NewCollector(producer, 10000, 100, 5*time.Second)
		events.Start(ctx)
		defer events.Close()
		opts = append(opts,
			store.WithQueryObserver(events.Observe),
			store.OnRebuild(events.ObserveRebuild),
		)
		slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	jobs := store.New(opts...)

	if len(sources) == 0 {
		slog.Warn("no sources configured, starting with an empty index")
	} else if _, err := jobs.Refresh(ctx); err != nil {
		slog.Warn("initial refresh failed, starting with an empty index", "error", err)
	}

	sched := scheduler.New(jobs, cfg.Scheduler.Spec)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	var server *http.Server
	if cfg.Server.Enabled {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		defer limiter.Close()
		server = newServer(cfg, jobs, cacheStats, aggregator, redisClient, pg, limiter, m)
		go func() {
			slog.Info("query api listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("server error", "error", err)
				stop()
			}
		}()
	}

	if headless {
		<-ctx.Done()
	} else {
		done := make(chan error, 1)
		go func() {
			done <- repl.New(jobs, collector, cfg.REPL).Run(ctx, os.Stdin, os.Stdout)
		}()
		select {
		case err := <-done:
			if err != nil {
				slog.Error("interactive session failed", "error", err)
			}
		case <-ctx.Done():
		}
	}

	slog.Info("shutting down")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}
	slog.Info("jobhunt stopped")
	return nil
}

func newServer(
	cfg *config.Config,
	jobs *store.Store,
	cacheStats handler.CacheStats,
	aggregator *analytics.Aggregator,
	redisClient *pkgredis.Client,
	pg *postgres.Client,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
) *http.Server {
	checker := health.NewChecker(2 * time.Second)
	checker.Register("job_store", func(ctx context.Context) health.ComponentHealth {
		st := jobs.Stats()
		if st.Generation == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "no snapshot built yet"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("generation %d, %d jobs", st.Generation, st.Jobs)}
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}
	if pg != nil {
		checker.RegisterOptional("postgres", func(ctx context.Context) health.ComponentHealth {
			open, err := pg.Ping(ctx)
			if err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d open connections", open)}
		})
	}

	mux := http.NewServeMux()
	handler.New(jobs, cacheStats, cfg.Search.MaxResults).Register(mux)
	analytics.NewHandler(aggregator).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func needsPostgres(cfg config.ScraperConfig) bool {
	for _, sc := range cfg.Sources {
		if sc.Kind == config.SourcePostgres {
			return true
		}
	}
	return false
}

// closeSources releases sources that hold connections, such as Kafka readers.
func closeSources(sources []scraper.Source) {
	for _, src := range sources {
		c, ok := src.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			slog.Warn("closing source failed", "source", src.Name(), "error", err)
		}
	}
}
