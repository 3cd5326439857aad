package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/LeventeLantos/zenvia-go/internal/repo"
	"github.com/LeventeLantos/zenvia-go/internal/scheduler"
)

// Reconciler is satisfied by *webhook.Controller.
type Reconciler interface {
	Reconcile(ctx context.Context) error
	Initialized() bool
	Manages() bool
}

type Handler struct {
	sched      *scheduler.Scheduler
	events     repo.EventRepository
	reconciler Reconciler
}

// NewHandler wires the handlers. sched and events may be nil when periodic
// reconciliation or the event store are disabled.
func NewHandler(s *scheduler.Scheduler, events repo.EventRepository, rec Reconciler) *Handler {
	return &Handler{sched: s, events: events, reconciler: rec}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"initialized": h.reconciler.Initialized(),
	})
}

func (h *Handler) ReconcilerStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireScheduler(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) ReconcilerStart(w http.ResponseWriter, r *http.Request) {
	if !h.requireScheduler(w) {
		return
	}
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) ReconcilerStop(w http.ResponseWriter, r *http.Request) {
	if !h.requireScheduler(w) {
		return
	}
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

// ReconcileNow runs one reconciliation in the request.
func (h *Handler) ReconcileNow(w http.ResponseWriter, r *http.Request) {
	if !h.reconciler.Manages() {
		writeError(w, http.StatusConflict, "subscription management is disabled")
		return
	}
	if err := h.reconciler.Reconcile(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reconciled": true})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event store is disabled")
		return
	}

	q := r.URL.Query()
	filter := repo.EventFilter{
		MessageID: q.Get("messageId"),
		Limit:     parseInt(q.Get("limit"), 50),
		Offset:    parseInt(q.Get("offset"), 0),
	}

	items, err := h.events.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []repo.StoredEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) requireScheduler(w http.ResponseWriter) bool {
	if h.sched == nil {
		writeError(w, http.StatusServiceUnavailable, "periodic reconciliation is disabled")
		return false
	}
	return true
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
