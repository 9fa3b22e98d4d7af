// Package middleware provides the HTTP middleware chain for the query API:
// request IDs, Prometheus metrics, CORS, rate limiting and request timeouts.
package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/metrics"
)

const otherPath = "other"

var knownPaths = []string{
	"/api/v1/query",
	"/api/v1/refresh",
	"/api/v1/stats",
	"/api/v1/analytics",
	"/health/live",
	"/health/ready",
	"/metrics",
}

// Metrics instruments next with request counts, latency and an in-flight
// gauge. Paths outside the routed set share the "other" label so the series
// count stays bounded.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		byPath := make(map[string]http.Handler, len(knownPaths)+1)
		for _, p := range append(knownPaths, otherPath) {
			labels := prometheus.Labels{"path": p}
			byPath[p] = promhttp.InstrumentHandlerCounter(
				m.HTTPRequestsTotal.MustCurryWith(labels),
				promhttp.InstrumentHandlerDuration(m.HTTPRequestDuration.MustCurryWith(labels), next),
			)
		}
		route := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h, ok := byPath[r.URL.Path]
			if !ok {
				h = byPath[otherPath]
			}
			h.ServeHTTP(w, r)
		})
		return promhttp.InstrumentHandlerInFlight(m.HTTPRequestsInFlight, route)
	}
}
