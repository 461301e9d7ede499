// Package httpapi exposes the session engine over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/abhisek/quantiz/internal/config"
	"github.com/abhisek/quantiz/internal/metrics"
	"github.com/abhisek/quantiz/internal/session"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Server handles the HTTP routes. Sessions live in memory for the lifetime
// of the process.
type Server struct {
	engine   *session.Engine
	sessions *session.Registry
	metrics  *metrics.Collector
	logger   *zap.Logger
	cfg      config.ServerConfig

	// solveTimeout bounds block generation per request. Zero disables it.
	solveTimeout time.Duration
}

// New creates a Server. m and logger may be nil.
func New(engine *session.Engine, cfg config.ServerConfig, solveTimeout time.Duration,
	m *metrics.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:       engine,
		sessions:     session.NewRegistry(),
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
		solveTimeout: solveTimeout,
	}
}

// Routes returns the root handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(newRateLimiter(s.cfg.RateLimit, s.cfg.RateBurst).middleware)
		}
		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Get("/block", s.currentBlock)
			r.Post("/blocks/{index}/submit", s.submitBlock)
			r.Get("/history", s.history)
			r.Get("/summary", s.summary)
			r.Post("/restart", s.restart)
		})
	})
	return r
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions.Len() >= s.cfg.MaxSessions {
		respondError(w, http.StatusServiceUnavailable, "too many active sessions")
		return
	}
	st := s.engine.Start(r.Context())
	if !s.sessions.AddIfBelow(st, s.cfg.MaxSessions) {
		s.logger.Warn("session limit reached", zap.String("session_id", st.ID))
		respondError(w, http.StatusServiceUnavailable, "too many active sessions")
		return
	}
	respondJSON(w, http.StatusCreated, newSessionView(st))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	var view sessionView
	err := s.sessions.With(chi.URLParam(r, "id"), func(st *session.SessionState) error {
		view = newSessionView(st)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Remove(chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.solveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.solveTimeout)
		defer cancel()
	}

	var view blockView
	err := s.sessions.With(chi.URLParam(r, "id"), func(st *session.SessionState) error {
		b, err := s.engine.CurrentBlock(ctx, st)
		if err != nil {
			return err
		}
		view = newBlockView(b)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) submitBlock(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		respondError(w, http.StatusBadRequest, "block index must be a non-negative integer")
		return
	}

	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var view resultView
	err = s.sessions.With(chi.URLParam(r, "id"), func(st *session.SessionState) error {
		res, err := s.engine.Submit(r.Context(), st, index, req.Answers)
		if err != nil {
			return err
		}
		view = newResultView(res)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	var out []responseView
	err := s.sessions.With(chi.URLParam(r, "id"), func(st *session.SessionState) error {
		out = newResponseViews(st.Responses())
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

var errNotCompleted = errors.New("session not completed")

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	var view summaryView
	err := s.sessions.With(chi.URLParam(r, "id"), func(st *session.SessionState) error {
		if !st.Completed() {
			return errNotCompleted
		}
		view = newSummaryView(session.BuildSummary(st))
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	var view sessionView
	err := s.sessions.With(chi.URLParam(r, "id"), func(st *session.SessionState) error {
		s.engine.Restart(r.Context(), st)
		view = newSessionView(st)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// fail maps engine errors to status codes. Solver detail never reaches the
// client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrSessionCompleted):
		respondError(w, http.StatusConflict, "session already completed")
	case errors.Is(err, errNotCompleted):
		respondError(w, http.StatusConflict, "session not completed")
	case errors.Is(err, session.ErrBlockAlreadySubmitted):
		respondError(w, http.StatusConflict, "block already submitted")
	case errors.Is(err, session.ErrBlockNotGenerated):
		respondError(w, http.StatusConflict, "block is not the current block")
	case errors.Is(err, session.ErrIncompleteAnswers):
		respondError(w, http.StatusUnprocessableEntity, "every item in the block needs an answer")
	case errors.Is(err, session.ErrUnknownItem):
		respondError(w, http.StatusUnprocessableEntity, "answer for an item outside the block")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "block generation timed out")
	default:
		s.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
