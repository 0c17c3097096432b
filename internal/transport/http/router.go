package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/domain"
)

// NewRouter wires the health check, session lookup and websocket endpoint.
func NewRouter(service *app.QuizService, ws *WSHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		session, err := service.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, domain.ErrSessionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(session.Snapshot())
	})
	r.Get("/ws", ws.ServeWS)
	return r
}
