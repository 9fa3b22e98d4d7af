package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/logger"
)

// JobStore is the part of store.Store the API serves.
type JobStore interface {
	RunQuery(ctx context.Context, text string) store.Outcome
	Refresh(ctx context.Context) (index.BuildReport, error)
	Stats() store.Stats
}

// CacheStats reports query cache counters.
type CacheStats interface {
	Stats() (hits, misses int64)
}

type QueryResponse struct {
	Query      string    `json:"query"`
	Generation uint64    `json:"generation"`
	Total      int       `json:"total"`
	Returned   int       `json:"returned"`
	Cached     bool      `json:"cached"`
	Jobs       []job.Job `json:"jobs"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Offset   *int   `json:"offset,omitempty"`
	Expected string `json:"expected,omitempty"`
	Found    string `json:"found,omitempty"`
}

type Handler struct {
	store      JobStore
	cache      CacheStats
	maxResults int
	logger     *slog.Logger
}

// New builds the query API handler. cache may be nil; maxResults caps the
// jobs in one response when positive.
func New(s JobStore, cache CacheStats, maxResults int) *Handler {
	return &Handler{
		store:      s,
		cache:      cache,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "query-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/query", h.Query)
	mux.HandleFunc("POST /api/v1/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	text := r.URL.Query().Get("q")
	if text == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}

	switch out := h.store.RunQuery(ctx, text).(type) {
	case store.Results:
		resp := QueryResponse{
			Query:      out.Query,
			Generation: out.Generation,
			Total:      len(out.Jobs),
			Cached:     out.Cached,
			Jobs:       out.Jobs,
		}
		if h.maxResults > 0 && len(resp.Jobs) > h.maxResults {
			resp.Jobs = resp.Jobs[:h.maxResults]
		}
		resp.Returned = len(resp.Jobs)
		log.Info("query completed",
			"query", out.Query,
			"generation", out.Generation,
			"total", resp.Total,
			"cached", out.Cached,
		)
		h.writeJSON(w, http.StatusOK, resp)
	case store.Error:
		if perr, ok := out.ParseError(); ok {
			offset := perr.Offset
			h.writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:    perr.Error(),
				Offset:   &offset,
				Expected: perr.Expected,
				Found:    perr.Found,
			})
			return
		}
		log.Error("query failed", "query", text, "error", out.Err)
		h.writeError(w, out.Err)
	default:
		h.writeError(w, apperrors.Newf(apperrors.ErrUnsupported, http.StatusBadRequest,
			"%q is not accepted here; only fetch statements are served over HTTP", text))
	}
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Refresh(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("refresh failed", "error", err)
		if errors.Is(err, store.ErrNoCollector) {
			err = apperrors.New(apperrors.ErrSourceNotFound, http.StatusServiceUnavailable, err.Error())
		} else {
			err = fmt.Errorf("%w: %w", apperrors.ErrSourceFailed, err)
		}
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

type statsResponse struct {
	store.Stats
	Cache map[string]any `json:"cache"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Stats: h.store.Stats()}
	if h.cache == nil {
		resp.Cache = map[string]any{"status": "disabled"}
	} else {
		hits, misses := h.cache.Stats()
		total := hits + misses
		var hitRate float64
		if total > 0 {
			hitRate = float64(hits) / float64(total) * 100
		}
		resp.Cache = map[string]any{
			"hits":     hits,
			"misses":   misses,
			"total":    total,
			"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), errorResponse{Error: msg})
}
