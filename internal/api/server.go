// Package api exposes the monitor over a local HTTP control surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/activity_mon/internal/notify"
)

// DefaultKeepAlive is the SSE comment interval that keeps idle proxies from closing the stream.
const DefaultKeepAlive = 15 * time.Second

// Controller is the inbound control surface of the monitor.
// Implemented by daemon.Monitor.
type Controller interface {
	Start(ctx context.Context) (bool, error)
	Stop()
	Status() daemon.Status
	ActivityByDate(ctx context.Context, date string) (*domain.DayRecord, error)
	SaveGoals(ctx context.Context, goals []string) ([]string, error)
}

// Server routes HTTP requests to the controller and streams hub notifications.
type Server struct {
	ctrl      Controller
	hub       *notify.Hub
	logger    *zap.Logger
	keepAlive time.Duration
	router    chi.Router
}

// NewServer builds the router.
func NewServer(ctrl Controller, hub *notify.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ctrl:      ctrl,
		hub:       hub,
		logger:    logger,
		keepAlive: DefaultKeepAlive,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/monitor", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/activity/{date}", s.handleActivity)
	r.Put("/goals", s.handleGoals)
	r.Get("/events", s.handleEvents)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Open SSE streams end when the hub closes; Shutdown waits for them.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down api: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// StatusResponse is the body of GET /monitor/status.
type StatusResponse struct {
	daemon.Status
	RecentEvents []domain.SystemEvent `json:"recent_events"`
}

// failureResponse describes why the monitor could not start.
type failureResponse struct {
	Error       string                 `json:"error"`
	Category    domain.FailureCategory `json:"category,omitempty"`
	Remediation string                 `json:"remediation,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	started, err := s.ctrl.Start(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"started": started})
		return
	}

	body := failureResponse{Error: err.Error()}
	var pf *domain.ProbeFailure
	if errors.As(err, &pf) {
		body.Category = pf.Category
		body.Remediation = pf.Remediation
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		code = http.StatusForbidden
	case errors.Is(err, domain.ErrProbeUnavailable):
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.StateIdle)})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Status: s.ctrl.Status(), RecentEvents: []domain.SystemEvent{}}
	if s.hub != nil {
		resp.RecentEvents = s.hub.Recent()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	record, err := s.ctrl.ActivityByDate(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDate) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.logger.Error("failed to read day", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goals []string `json:"goals"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	saved, err := s.ctrl.SaveGoals(r.Context(), req.Goals)
	if err != nil {
		s.logger.Error("failed to save goals", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"goals": saved})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
