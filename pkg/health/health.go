// Package health runs dependency probes for the query API's liveness and
// readiness endpoints. Required components gate readiness; optional ones
// (the result cache, for instance) are reported but never take the service
// out of rotation.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check probes a single dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type registration struct {
	check    Check
	optional bool
}

// Checker holds registered probes and runs them concurrently, each bounded
// by the per-check timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registration
	timeout time.Duration
	logger  *slog.Logger
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		checks:  make(map[string]registration),
		timeout: timeout,
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds a probe whose failure makes the service unready.
func (c *Checker) Register(name string, check Check) {
	c.register(name, check, false)
}

// RegisterOptional adds a probe that is reported but cannot make the
// service unready.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.register(name, check, true)
}

func (c *Checker) register(name string, check Check, optional bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registration{check: check, optional: optional}
}

// Run executes every probe and aggregates the result. The overall status is
// the worst status among required components; an unhealthy optional
// component lowers it to degraded at most.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]registration, len(c.checks))
	for name, reg := range c.checks {
		checks[name] = reg
	}
	c.mu.RUnlock()
	sort.Strings(names)

	results := make([]ComponentHealth, len(names))
	var g errgroup.Group
	for i, name := range names {
		reg := checks[name]
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			start := time.Now()
			result := reg.check(checkCtx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			result.Optional = reg.optional
			results[i] = result
			return nil
		})
	}
	// Probes report through results and never return an error.
	_ = g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(names)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, name := range names {
		comp := results[i]
		report.Components[name] = comp
		switch {
		case comp.Status == StatusUp:
		case comp.Optional || comp.Status == StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		default:
			report.Status = StatusDown
		}
		if comp.Status != StatusUp {
			c.logger.Debug("component unhealthy", "name", name, "status", comp.Status, "message", comp.Message)
		}
	}
	return report
}

// Ready reports whether every required component is up.
func (r Report) Ready() bool {
	for _, comp := range r.Components {
		if !comp.Optional && comp.Status != StatusUp {
			return false
		}
	}
	return true
}

// LiveHandler answers liveness probes. It never consults dependencies.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes with the full report: 200 when
// Ready, 503 otherwise.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if !report.Ready() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
