// Package mockapi is a local stand-in for the VOC REST backend. It serves the
// list and status-change endpoints the board consumes and can inject latency,
// failures and optimistic-lock conflicts.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vocautobot/vockanban/internal/voc"
	"github.com/vocautobot/vockanban/internal/vocapi"
	"github.com/vocautobot/vockanban/pkg/cerr"
	"github.com/vocautobot/vockanban/pkg/clog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 1000

	CodeInjectedFailure = "INJECTED_FAILURE"

	conflictMessage    = "The VOC was modified by another user. Please refresh and try again."
	unavailableMessage = "The VOC service is temporarily unavailable."
)

type Handler struct {
	repo         voc.Repository
	token        string
	failureRate  float64
	conflictRate float64
	latency      time.Duration
	now          func() time.Time
	roll         func() float64

	// serialises read-modify-write of a ticket
	mu sync.Mutex
}

type Option func(*Handler)

// WithToken requires "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(h *Handler) { h.token = token }
}

func WithFailureRate(rate float64) Option {
	return func(h *Handler) { h.failureRate = rate }
}

func WithConflictRate(rate float64) Option {
	return func(h *Handler) { h.conflictRate = rate }
}

func WithLatency(d time.Duration) Option {
	return func(h *Handler) { h.latency = d }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithRoll replaces the random source deciding injected faults. roll must
// return values in [0, 1).
func WithRoll(roll func() float64) Option {
	return func(h *Handler) { h.roll = roll }
}

func NewHandler(repo voc.Repository, opts ...Option) *Handler {
	h := &Handler{
		repo: repo,
		now:  time.Now,
		roll: rand.Float64,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router serves /health and the VOC endpoints under /api/v1.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api/v1", func(r chi.Router) {
		// list pages are read in bursts on every board reload
		r.Use(clog.SlogChiMiddleware(clog.WithChiFilter(func(r *http.Request) bool {
			return r.URL.Path != "/api/v1/vocs"
		})), h.authMiddleware)
		r.Get("/vocs", h.listVOCs)
		r.Get("/vocs/{id}", h.getVOC)
		r.Patch("/vocs/{id}/status", h.changeStatus)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", "not found")
		})
	})
	return r
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token != h.token {
				writeError(r.Context(), w, http.StatusUnauthorized, vocapi.CodeUnauthorized, "Authentication is required.")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) listVOCs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), 0)
	if err != nil || page < 0 {
		writeError(ctx, w, http.StatusBadRequest, vocapi.CodeInvalidInput, "page must be a non-negative integer")
		return
	}
	size, err := intParam(q.Get("size"), defaultPageSize)
	if err != nil || size <= 0 || size > maxPageSize {
		writeError(ctx, w, http.StatusBadRequest, vocapi.CodeInvalidInput, "size must be between 1 and 1000")
		return
	}
	var filter voc.ListFilter
	for _, raw := range q["status"] {
		s, err := voc.ParseStatus(raw)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, vocapi.CodeInvalidInput, err.Error())
			return
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	clog.AddAttributes(ctx, map[string]any{"page": page, "size": size})

	h.sleep(ctx)
	tickets, total, err := h.repo.List(ctx, filter, size, page*size)
	if err != nil {
		writeRepoError(ctx, w, err)
		return
	}
	if tickets == nil {
		tickets = []*voc.Ticket{}
	}
	writeJSON(ctx, w, http.StatusOK, vocapi.Response[[]*voc.Ticket]{
		Success:       true,
		Data:          tickets,
		Page:          page,
		Size:          size,
		TotalElements: int64(total),
		TotalPages:    (total + size - 1) / size,
	})
}

func (h *Handler) getVOC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.sleep(ctx)
	t, err := h.repo.Get(ctx, id)
	if err != nil {
		writeRepoError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, vocapi.OK(t))
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var change voc.StatusChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		writeError(ctx, w, http.StatusBadRequest, vocapi.CodeInvalidInput, "invalid status change request")
		return
	}
	clog.AddAttribute(ctx, clog.ToKey, string(change.Status))

	h.sleep(ctx)
	if h.hit(h.failureRate) {
		writeError(ctx, w, http.StatusServiceUnavailable, CodeInjectedFailure, unavailableMessage)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.repo.Get(ctx, id)
	if err != nil {
		writeRepoError(ctx, w, err)
		return
	}
	if h.hit(h.conflictRate) {
		writeError(ctx, w, http.StatusConflict, vocapi.CodeConflict, conflictMessage)
		return
	}
	if err := t.ApplyStatusChange(change, h.now()); err != nil {
		msg, _ := cerr.MessageOf(err)
		writeError(ctx, w, http.StatusBadRequest, vocapi.CodeInvalidStatusTransition, msg)
		return
	}
	if err := h.repo.Update(ctx, t); err != nil {
		writeRepoError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, vocapi.OK(t))
}

func (h *Handler) sleep(ctx context.Context) {
	if h.latency <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(h.latency):
	}
}

func (h *Handler) hit(rate float64) bool {
	return rate > 0 && h.roll() < rate
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(r.Context(), w, http.StatusBadRequest, vocapi.CodeInvalidInput, "id must be a positive integer")
		return 0, false
	}
	clog.AddTicket(r.Context(), id)
	return id, true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeRepoError(ctx context.Context, w http.ResponseWriter, err error) {
	if cerr.IsCode(err, cerr.NotFound) {
		writeError(ctx, w, http.StatusNotFound, vocapi.CodeVOCNotFound, "VOC not found.")
		return
	}
	clog.AddError(ctx, err)
	var cErr *cerr.Error
	status := http.StatusInternalServerError
	if errors.As(err, &cErr) {
		status = cErr.Code.HTTPCode()
	}
	writeError(ctx, w, status, vocapi.CodeInternalError, "An internal error occurred.")
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, msg string) {
	clog.AddAttribute(ctx, "error_code", code)
	writeJSON(ctx, w, status, vocapi.Fail(code, msg))
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		clog.AddError(ctx, err)
	}
}
