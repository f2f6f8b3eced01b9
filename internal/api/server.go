package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/structcalc/async-deflection-calculator/internal/config"
	"github.com/structcalc/async-deflection-calculator/internal/deflection"
	"github.com/structcalc/async-deflection-calculator/internal/dispatcher"
	"github.com/structcalc/async-deflection-calculator/internal/metrics"
)

const serviceName = "async-deflection-calculator"

// Error messages mirror the companion service's contract, so they stay in the
// operators' language.
const (
	errMissingFields = "Ожидаются поля beam_deflection_id и items[]"
	errIDNotNumeric  = "beam_deflection_id должен быть числом"
	errItemsEmpty    = "items должен быть непустым массивом"
	msgJobAccepted   = "Async-расчёт прогиба запущен"
)

// Server wires HTTP handlers to the dispatcher.
type Server struct {
	router   chi.Router
	dispatch *dispatcher.Dispatcher
	clock    deflection.Clock
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	dispatch *dispatcher.Dispatcher,
	clock deflection.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dispatch: dispatch,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/api/health/", s.health)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Post("/api/v1/calculate-deflection/", s.calculateDeflection)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func (s *Server) calculateDeflection(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rawID, hasID := body["beam_deflection_id"]
	rawItems, hasItems := body["items"]
	if !hasID || !hasItems {
		writeError(w, http.StatusBadRequest, errMissingFields)
		return
	}

	jobID, err := deflection.ToInt(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, errIDNotNumeric)
		return
	}

	items, ok := rawItems.([]any)
	if !ok || len(items) == 0 {
		writeError(w, http.StatusBadRequest, errItemsEmpty)
		return
	}

	item := deflection.QueueItem{
		JobID:     jobID,
		Items:     items,
		Callback:  callbackTarget(body["callback"]),
		Submitted: s.clock.Now(),
	}
	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.dispatch.Enqueue(queueCtx, item); err != nil {
		s.logger.Error("job enqueue failed",
			zap.Int64("beam_deflection_id", jobID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	s.logger.Info("job accepted",
		zap.Int64("beam_deflection_id", jobID),
		zap.Int("items_count", len(items)),
	)

	lo, hi := s.cfg.DelayBounds()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":            msgJobAccepted,
		"beam_deflection_id": jobID,
		"items_count":        len(items),
		"estimated_time":     fmt.Sprintf("%d-%d секунд", lo, hi),
	})
}

// callbackTarget extracts the optional per-job delivery override. Blank or
// malformed values fall back to the configured defaults.
func callbackTarget(v any) deflection.CallbackTarget {
	m, ok := v.(map[string]any)
	if !ok {
		return deflection.CallbackTarget{}
	}
	var target deflection.CallbackTarget
	if raw, ok := m["url"].(string); ok {
		target.URL = strings.TrimSpace(raw)
	}
	switch tok := m["token"].(type) {
	case string:
		target.AuthToken = strings.TrimSpace(tok)
	case json.Number:
		target.AuthToken = tok.String()
	}
	return target
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
