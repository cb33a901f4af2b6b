// Package web exposes the assistant over HTTP: session lifecycle, chat,
// booking, feedback, plus health/status/metrics endpoints.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumonmind/lumond/internal/assistant"
	"github.com/lumonmind/lumond/internal/config"
	"github.com/lumonmind/lumond/internal/extension"
	"github.com/lumonmind/lumond/internal/provider"
	"github.com/lumonmind/lumond/internal/session"
)

const version = "1.0.0"

type Server struct {
	logger    *slog.Logger
	cfg       *config.Config
	svc       *assistant.Service
	store     session.Store
	adapters  []provider.Adapter
	loader    *extension.Loader
	topics    []string
	promptLen int
	startTime time.Time
}

func NewServer(logger *slog.Logger, cfg *config.Config, svc *assistant.Service, store session.Store, adapters []provider.Adapter, loader *extension.Loader, topics []string, promptLen int) *Server {
	return &Server{
		logger:    logger.With("component", "web"),
		cfg:       cfg,
		svc:       svc,
		store:     store,
		adapters:  adapters,
		loader:    loader,
		topics:    topics,
		promptLen: promptLen,
		startTime: time.Now(),
	}
}

// Router builds the full route tree. Split out from Start so tests can drive
// it with httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Route("/api", func(api chi.Router) {
		api.Post("/session/new", instrumentHandler("session_new", s.createSessionHandler))
		api.Post("/session/{sessionID}/onboard", instrumentHandler("onboard", s.onboardHandler))
		api.Post("/session/{sessionID}/chat", instrumentHandler("session_chat", s.sessionChatHandler))
		api.Post("/session/{sessionID}/therapist", instrumentHandler("book_therapist", s.bookTherapistHandler))
		api.Post("/session/{sessionID}/end", instrumentHandler("end_session", s.endSessionHandler))
		api.Post("/session/{sessionID}/clear", instrumentHandler("clear_session", s.clearSessionHandler))
		api.Get("/session/{sessionID}", instrumentHandler("session_info", s.sessionInfoHandler))
		api.Delete("/session/{sessionID}", instrumentHandler("delete_session", s.deleteSessionHandler))
		api.Post("/chat", instrumentHandler("chat", s.chatHandler))
		api.Get("/conversations/{sessionID}", instrumentHandler("conversations", s.conversationsHandler))
		api.Post("/feedback", instrumentHandler("feedback", s.feedbackHandler))
		api.Get("/health", instrumentHandler("health", s.healthHandler))
		api.Get("/status", instrumentHandler("status", s.statusHandler))
	})

	r.Get("/healthz", instrumentHandler("healthz", s.healthzHandler))
	r.Method("GET", "/metrics", promhttp.Handler())

	return r
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.cfg.Server.ListenPort,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("web server shutdown failed", "error", err)
		}
	}()

	s.logger.Info("Starting web server", "port", s.cfg.Server.ListenPort)
	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, httpCode int, code, message string) {
	writeJSON(w, httpCode, errorResponse{Status: "error", Code: code, Message: message})
}
