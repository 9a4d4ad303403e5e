// Package api exposes a read-only view of running and finished
// acquisition sessions.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aakash-soni-git/bitalino/internal/session"
)

const defaultWindowSeconds = 10

type API struct {
	Registry *session.Registry
}

type Config struct {
	Registry *session.Registry
}

func New(cfg Config) *API {
	return &API{Registry: cfg.Registry}
}

// Router wires the read-only endpoints.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/session", a.GetCurrentSession)
	r.Get("/session/window", a.GetSessionWindow)
	r.Get("/sessions", a.ListSessions)
	r.Get("/sessions/{stamp}", a.GetSession)
	return r
}

func (a *API) GetCurrentSession(w http.ResponseWriter, r *http.Request) {
	cur := a.Registry.Current()
	if cur == nil {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}
	writeJSON(w, cur.Snapshot())
}

func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	stamp := chi.URLParam(r, "stamp")
	s, err := a.Registry.Get(stamp)
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.Snapshot())
}

func (a *API) GetSessionWindow(w http.ResponseWriter, r *http.Request) {
	seconds := defaultWindowSeconds
	if raw := r.URL.Query().Get("seconds"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid seconds parameter", http.StatusBadRequest)
			return
		}
		seconds = parsed
	}

	cur := a.Registry.Current()
	if cur == nil {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}

	writeJSON(w, GetWindowResponse{
		Stamp:   cur.Stamp(),
		Rate:    cur.Rate(),
		Seconds: seconds,
		Labels:  cur.Labels(),
		Values:  cur.Window(seconds * cur.Rate()),
	})
}

func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ListSessionsResponse{Sessions: a.Registry.List()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
