// Package handler exposes retrieval and scoring over HTTP.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/internal/searcher/retriever"
	apperrors "github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/logger"
)

const maxBodyBytes = 1 << 20

// RetrieveResponse is the body of GET /api/v1/retrieve.
type RetrieveResponse struct {
	Query   string              `json:"query"`
	TopK    int                 `json:"top_k"`
	Results []retriever.Context `json:"results"`
}

// ScoreRequest is the body of POST /api/v1/score. A missing alpha uses the
// service default.
type ScoreRequest struct {
	QuestionID       string   `json:"question_id"`
	Answer           string   `json:"answer"`
	ExpectedKeywords []string `json:"expected_keywords"`
	GoldContext      string   `json:"gold_context"`
	Alpha            *float64 `json:"alpha,omitempty"`
}

type Handler struct {
	retriever retriever.Retriever
	evaluator *evaluation.Evaluator
	cache     *cache.RankCache
	maxTopK   int
	logger    *slog.Logger
}

// New builds the handler. rc may be nil when caching is disabled. Requested
// top_k values above maxTopK are clamped.
func New(r retriever.Retriever, ev *evaluation.Evaluator, rc *cache.RankCache, maxTopK int) *Handler {
	if maxTopK < 1 {
		maxTopK = 100
	}
	return &Handler{
		retriever: r,
		evaluator: ev,
		cache:     rc,
		maxTopK:   maxTopK,
		logger:    slog.Default().With("component", "eval-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/retrieve", h.Retrieve)
	mux.HandleFunc("POST /api/v1/score", h.Score)
	mux.HandleFunc("POST /api/v1/evaluate", h.Evaluate)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	topK := h.evaluator.Options().TopK
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed < 1 {
			h.writeAppError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be a positive integer, got %q", kStr))
			return
		}
		topK = min(parsed, h.maxTopK)
	}

	results, err := h.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		log.Error("retrieval failed", "query", query, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "retrieval failed")
		return
	}
	log.Info("retrieval completed",
		"query", query,
		"top_k", topK,
		"returned", len(results),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, RetrieveResponse{Query: query, TopK: topK, Results: results})
}

func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	alpha := h.evaluator.Options().Alpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	result := scoring.Evaluate(req.QuestionID, req.Answer, req.ExpectedKeywords, req.GoldContext, alpha)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var q ingestion.Question
	if !h.decode(w, r, &q) {
		return
	}
	rec, err := h.evaluator.EvaluateOne(r.Context(), q)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("evaluation failed", "question_id", q.ID, "error", err)
			h.writeError(w, status, "evaluation failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeAppError(w http.ResponseWriter, err *apperrors.AppError) {
	h.writeError(w, apperrors.HTTPStatusCode(err), err.Message)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
