package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gator-course-advisor/internal/domain"
	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/infra/logging"
	"gator-course-advisor/internal/infra/metrics"
	"gator-course-advisor/internal/usecase"
)

const (
	maxBodyBytes      = 16 << 10
	streamKeepAlive   = 25 * time.Second
	defaultReqTimeout = 15 * time.Second
)

// ServerConfig holds the optional parts of the API. A nil Auth disables
// authentication; a nil Limiter or zero SubmissionsPerMinute disables rate
// limiting.
type ServerConfig struct {
	RequestTimeout       time.Duration
	Auth                 *AuthManager
	Limiter              Limiter
	SubmissionsPerMinute int
	LimitKey             func(subject string) string
}

// Server exposes the advisor over HTTP.
type Server struct {
	advisor usecase.AdvisorUseCase
	saved   usecase.SavedCoursesUseCase
	hub     *Hub
	cfg     ServerConfig
	log     *zerolog.Logger
}

func NewServer(advisor usecase.AdvisorUseCase, saved usecase.SavedCoursesUseCase, hub *Hub, cfg ServerConfig, logger *zerolog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultReqTimeout
	}
	if cfg.LimitKey == nil {
		cfg.LimitKey = func(subject string) string { return "rate_limit:submit:" + subject }
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{advisor: advisor, saved: saved, hub: hub, cfg: cfg, log: logger}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.Auth != nil {
			r.Use(s.cfg.Auth.Middleware())
		}
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.cfg.RequestTimeout))

			r.Get("/view", s.handleView)
			r.Get("/pending", s.handlePending)

			r.Get("/sessions", s.handleListSessions)
			r.Post("/sessions", s.handleNewSession)
			r.Put("/sessions/{id}/active", s.handleSelectSession)
			r.Delete("/sessions/{id}", s.handleDeleteSession)
			r.Get("/sessions/{id}/messages", s.handleMessages)

			r.With(RateLimit(s.cfg.Limiter, s.cfg.SubmissionsPerMinute, s.cfg.LimitKey, s.log)).
				Post("/messages", s.handleSubmit)

			r.Get("/saved-courses", s.handleListSaved)
			r.Post("/saved-courses", s.handleAddSaved)
			r.Delete("/saved-courses/{code}", s.handleRemoveSaved)
		})
	})
	return r
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.advisor.View())
}

func (s *Server) handlePending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.advisor.Pending()})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.advisor.Sessions()})
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.advisor.NewChat(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	if err := s.advisor.SelectChat(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.advisor.View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.advisor.DeleteChat(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.advisor.Messages(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": msgs})
}

type submitRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.advisor.Submit(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !res.Submitted {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleListSaved(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.saved.List()})
}

func (s *Server) handleAddSaved(w http.ResponseWriter, r *http.Request) {
	var course model.Course
	if err := decodeBody(w, r, &course); err != nil {
		s.writeError(w, r, err)
		return
	}
	added, err := s.saved.Add(r.Context(), course)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"added": added})
}

func (s *Server) handleRemoveSaved(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if unescaped, err := url.PathUnescape(code); err == nil {
		code = unescaped
	}
	if _, err := s.saved.Remove(r.Context(), code); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams views as server-sent events. The first event is a
// snapshot of the current view.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stream unsupported"})
		return
	}
	log := logging.With(r.Context(), s.log)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe before the snapshot so nothing published in between is lost.
	ch, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	_ = writeSSEvent(w, StreamEvent{
		Seq:       s.hub.Seq(),
		Type:      "snapshot",
		View:      s.advisor.View(),
		Timestamp: time.Now(),
	})
	flusher.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()
	log.Debug().Msg("event stream opened")
	for {
		select {
		case <-r.Context().Done():
			log.Debug().Msg("event stream closed")
			return
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, domain.ErrInvalidArgument)
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrAlreadyExists):
		status = http.StatusConflict
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}
