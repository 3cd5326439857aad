package api

import (
	"net/http"

	"github.com/LeventeLantos/zenvia-go/webhook"
)

// Router serves the API next to the webhook receiver.
func Router(h *Handler, wh *webhook.Controller) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/reconciler/status", h.ReconcilerStatus)
	mux.HandleFunc("POST /v1/reconciler/start", h.ReconcilerStart)
	mux.HandleFunc("POST /v1/reconciler/stop", h.ReconcilerStop)
	mux.HandleFunc("POST /v1/reconciler/run", h.ReconcileNow)

	mux.HandleFunc("GET /v1/events", h.ListEvents)

	wh.Register(mux)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("zenvia-go"))
	})

	return mux
}
