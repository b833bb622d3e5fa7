// Package server exposes the automation core to the extension UI: a local
// HTTP API for the settings popup and a websocket endpoint the in-page agent
// relay connects to.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Atik203/animexin-player-controller-extension/dom"
	"github.com/Atik203/animexin-player-controller-extension/history"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/Atik203/animexin-player-controller-extension/log"
	"github.com/Atik203/animexin-player-controller-extension/session"
	"github.com/spf13/viper"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Server serves the control API for one session.
type Server struct {
	router   chi.Router
	sess     *session.Session
	hist     *history.Store
	upgrader websocket.Upgrader

	// OnAgentPort receives the message port of every in-page agent that
	// connects to /ws. The caller wires it to the session's port opener.
	OnAgentPort func(dom.MessagePort)
}

// NewServer builds the control API around a session and an advance log.
func NewServer(sess *session.Session, hist *history.Store) *Server {
	s := &Server{
		router: chi.NewRouter(),
		sess:   sess,
		hist:   hist,
		upgrader: websocket.Upgrader{
			// The endpoint binds to loopback; the agent connects from the
			// extension origin, which never matches the Host header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router.Use(middleware.Recoverer)
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/state", s.handleState)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
		r.Post("/navigate", s.handleNavigate)
		r.Post("/panel", s.handlePanel)
		r.Get("/history", s.handleHistory)
	})

	s.router.Get("/ws", s.handleWS)
}

// Run serves the API until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := viper.GetString(key.ServerListen)
	if addr == "" {
		addr = "127.0.0.1:7496"
	}

	srv := &http.Server{Addr: addr, Handler: s}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("server: listening on %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"series_id": s.sess.SeriesID(),
		"attached":  s.sess.Attached(),
		"playback":  s.sess.State(),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	settings, err := s.sess.CurrentSettings()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in session.Settings
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed settings payload")
		return
	}

	if err := s.sess.UpdateSettings(in); err != nil {
		if errors.Is(err, session.ErrNotStarted) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	settings, err := s.sess.CurrentSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleNavigate(w http.ResponseWriter, _ *http.Request) {
	err := s.sess.NavigateNext()
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, session.ErrNoNextTarget):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handlePanel(w http.ResponseWriter, _ *http.Request) {
	if err := s.sess.ShowPanel(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var (
		entries []history.Entry
		err     error
	)
	if series := r.URL.Query().Get("series"); series != "" {
		entries, err = s.hist.BySeries(series, limit)
	} else {
		entries, err = s.hist.Recent(limit)
	}
	if err != nil {
		log.Warnf("server: history query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("server: websocket upgrade failed: %v", err)
		return
	}

	log.Info("server: in-page agent connected")
	port := newWSPort(conn)
	if s.OnAgentPort != nil {
		s.OnAgentPort(port)
	}
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
