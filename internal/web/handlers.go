package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumonmind/lumond/internal/assistant"
	"github.com/lumonmind/lumond/internal/session"
)

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := s.svc.CreateSession()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"session_id": id,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

type onboardRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

func (s *Server) onboardHandler(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "", "Missing request data")
		return
	}

	greeting, err := s.svc.Onboard(chi.URLParam(r, "sessionID"), req.Name, req.Language)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"greeting": greeting,
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) sessionChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		respondError(w, http.StatusBadRequest, "", "No message provided")
		return
	}

	result, err := s.svc.Chat(r.Context(), chi.URLParam(r, "sessionID"), req.Message)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	resp := map[string]any{
		"status":               "success",
		"response":             result.Reply,
		"is_therapist_request": result.HandoffRequested,
	}
	if result.Provider != "" {
		resp["model_used"] = result.Provider
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		respondError(w, http.StatusBadRequest, "", "Missing required fields: message and session_id")
		return
	}

	id, result, err := s.svc.QuickChat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	resp := map[string]any{
		"status":     "success",
		"message":    result.Reply,
		"model_used": result.Provider,
		"timestamp":  time.Now().Format(time.RFC3339),
		"session_id": id,
	}
	if result.HandoffRequested {
		resp["show_therapist_options"] = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) bookTherapistHandler(w http.ResponseWriter, r *http.Request) {
	var req assistant.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "", "No booking details provided")
		return
	}

	confirmation, err := s.svc.BookAppointment(chi.URLParam(r, "sessionID"), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "success",
		"confirmation_message": confirmation,
	})
}

func (s *Server) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	greeting, err := s.svc.EndConversation(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"greeting": greeting,
	})
}

func (s *Server) clearSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.svc.ClearConversation(id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"message":    "Session cleared successfully",
		"session_id": id,
	})
}

func (s *Server) sessionInfoHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Info(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"session": info,
	})
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSession(chi.URLParam(r, "sessionID")); err != nil {
		s.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Session deleted successfully",
	})
}

func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	history, err := s.svc.History(id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if history == nil {
		history = []session.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"session_id": id,
		"messages":   history,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

type feedbackRequest struct {
	SessionID string `json:"session_id"`
	Rating    *int   `json:"rating"`
	Feedback  string `json:"feedback"`
}

func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" || req.Rating == nil {
		respondError(w, http.StatusBadRequest, "", "Missing required fields: session_id and rating")
		return
	}

	if err := s.svc.SubmitFeedback(req.SessionID, *req.Rating, req.Feedback); err != nil {
		s.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Feedback submitted successfully",
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]bool, len(s.adapters))
	for _, a := range s.adapters {
		services[a.Name()] = a.Configured()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"timestamp":            time.Now().Format(time.RFC3339),
		"services":             services,
		"prompt_loaded":        s.promptLen > 0,
		"extensions_available": s.loader.Available(s.topics),
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	total := s.store.Count()
	active := s.store.ActiveCount()
	sessionsGauge.WithLabelValues("total").Set(float64(total))
	sessionsGauge.WithLabelValues("active").Set(float64(active))

	services := make(map[string]string, len(s.adapters))
	for _, a := range s.adapters {
		if a.Configured() {
			services[a.Name()] = "available"
		} else {
			services[a.Name()] = "unavailable"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "operational",
		"version":         version,
		"timestamp":       time.Now().Format(time.RFC3339),
		"uptime_seconds":  time.Since(s.startTime).Seconds(),
		"active_sessions": active,
		"total_sessions":  total,
		"api_services":    services,
		"system_prompt": map[string]any{
			"loaded": s.promptLen > 0,
			"length": s.promptLen,
		},
		"extensions": s.loader.Available(s.topics),
	})
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// respondServiceError maps assistant errors to HTTP responses.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var vErr *assistant.ValidationError
	switch {
	case errors.Is(err, assistant.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found")
	case errors.Is(err, assistant.ErrNotOnboarded):
		respondError(w, http.StatusBadRequest, "NOT_ONBOARDED", "User not onboarded")
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, "INVALID_FIELDS", vErr.Error())
	default:
		s.logger.Error("Unhandled service error", "error", err)
		respondError(w, http.StatusInternalServerError, "", "An unexpected error occurred")
	}
}
