package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumonmind/lumond/internal/assistant"
	"github.com/lumonmind/lumond/internal/config"
	"github.com/lumonmind/lumond/internal/extension"
	"github.com/lumonmind/lumond/internal/orchestrator"
	"github.com/lumonmind/lumond/internal/provider"
	"github.com/lumonmind/lumond/internal/session"
	"github.com/lumonmind/lumond/internal/testutil"
)

type staticResponder struct {
	reply    string
	provider string
}

func (s staticResponder) Respond(context.Context, orchestrator.Request) orchestrator.Result {
	return orchestrator.Result{Reply: s.reply, Provider: s.provider}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := testutil.TestLogger()

	store := session.NewMemoryStore()
	svc := assistant.New(logger, store, staticResponder{reply: "a supportive reply", provider: "qwen"}, testutil.NoopAuditStore{}, "You are a supportive assistant.")

	loader := extension.NewLoaderFromFS(logger, fstest.MapFS{
		"sleep_extension.md": {Data: []byte("sleep extension text")},
	})

	adapters := []provider.Adapter{
		&testutil.StaticAdapter{AdapterName: "qwen", HasKey: true},
		&testutil.StaticAdapter{AdapterName: "deepseek", HasKey: false},
		&testutil.StaticAdapter{AdapterName: "gemini", HasKey: false},
	}

	cfg := &config.Config{}
	cfg.Server.ListenPort = "8080"

	server := NewServer(logger, cfg, svc, store, adapters, loader, []string{"sleep", "anxiety"}, 42)
	return server.Router()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var payload map[string]any
	if resp.Body.Len() > 0 && resp.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	}
	return resp, payload
}

func createOnboardedSession(t *testing.T, handler http.Handler) string {
	t.Helper()
	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/new", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	id := payload["session_id"].(string)

	resp, _ = doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/onboard", map[string]string{
		"name": "Alex", "language": "English",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	return id
}

func TestCreateSessionEndpoint(t *testing.T) {
	handler := newTestHandler(t)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/new", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "success", payload["status"])
	assert.NotEmpty(t, payload["session_id"])
}

func TestOnboardEndpoint(t *testing.T) {
	handler := newTestHandler(t)

	_, payload := doJSON(t, handler, http.MethodPost, "/api/session/new", nil)
	id := payload["session_id"].(string)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/onboard", map[string]string{
		"name": "Alex",
	})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, payload["greeting"], "Hi Alex")
}

func TestOnboardEndpoint_UnknownSession(t *testing.T) {
	handler := newTestHandler(t)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/missing/onboard", map[string]string{
		"name": "Alex",
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", payload["code"])
}

func TestSessionChatEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	id := createOnboardedSession(t, handler)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/chat", map[string]string{
		"message": "I feel low today",
	})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "a supportive reply", payload["response"])
	assert.Equal(t, "qwen", payload["model_used"])
	assert.Equal(t, false, payload["is_therapist_request"])
}

func TestSessionChatEndpoint_NotOnboarded(t *testing.T) {
	handler := newTestHandler(t)

	_, payload := doJSON(t, handler, http.MethodPost, "/api/session/new", nil)
	id := payload["session_id"].(string)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/chat", map[string]string{
		"message": "hello",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "NOT_ONBOARDED", payload["code"])
}

func TestSessionChatEndpoint_HandoffRequest(t *testing.T) {
	handler := newTestHandler(t)
	id := createOnboardedSession(t, handler)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/chat", map[string]string{
		"message": "I want to talk to a therapist",
	})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, payload["is_therapist_request"])
	assert.Contains(t, payload["response"], "book an appointment")
	_, hasModel := payload["model_used"]
	assert.False(t, hasModel)
}

func TestSessionChatEndpoint_EmptyMessage(t *testing.T) {
	handler := newTestHandler(t)
	id := createOnboardedSession(t, handler)

	resp, _ := doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/chat", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestQuickChatEndpoint_AutoCreates(t *testing.T) {
	handler := newTestHandler(t)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/chat", map[string]string{
		"message": "hello there",
	})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "a supportive reply", payload["message"])
	assert.NotEmpty(t, payload["session_id"])
	assert.Equal(t, "qwen", payload["model_used"])
}

func TestBookTherapistEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	id := createOnboardedSession(t, handler)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/therapist", map[string]any{
		"name":             "Alex",
		"email":            "alex@example.com",
		"phone":            "555-123-4567",
		"therapist":        "Dr. Rivera",
		"appointment_date": "2026-03-10",
		"appointment_time": "14:00",
		"appointment_type": "video",
	})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, payload["confirmation_message"], "Dr. Rivera")
}

func TestBookTherapistEndpoint_InvalidPhone(t *testing.T) {
	handler := newTestHandler(t)
	id := createOnboardedSession(t, handler)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/therapist", map[string]any{
		"name":             "Alex",
		"email":            "alex@example.com",
		"phone":            "555-1234",
		"therapist":        "Dr. Rivera",
		"appointment_date": "2026-03-10",
		"appointment_time": "14:00",
		"appointment_type": "video",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "INVALID_FIELDS", payload["code"])
	assert.Contains(t, payload["message"], "phone")
}

func TestEndAndDeleteSessionEndpoints(t *testing.T) {
	handler := newTestHandler(t)
	id := createOnboardedSession(t, handler)

	resp, payload := doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/end", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, payload["greeting"], "starting a new conversation")

	resp, _ = doJSON(t, handler, http.MethodDelete, "/api/session/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, _ = doJSON(t, handler, http.MethodGet, "/api/conversations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestConversationsEndpoint_FiltersSystem(t *testing.T) {
	handler := newTestHandler(t)
	id := createOnboardedSession(t, handler)

	_, _ = doJSON(t, handler, http.MethodPost, "/api/session/"+id+"/chat", map[string]string{
		"message": "hello",
	})

	resp, payload := doJSON(t, handler, http.MethodGet, "/api/conversations/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	messages := payload["messages"].([]any)
	// greeting + user turn + assistant reply, no system prompt
	require.Len(t, messages, 3)
	for _, m := range messages {
		role := m.(map[string]any)["role"].(string)
		assert.NotEqual(t, "system", role)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	id := createOnboardedSession(t, handler)

	resp, _ := doJSON(t, handler, http.MethodPost, "/api/feedback", map[string]any{
		"session_id": id,
		"rating":     5,
		"feedback":   "very helpful",
	})
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, _ = doJSON(t, handler, http.MethodPost, "/api/feedback", map[string]any{
		"session_id": id,
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp, _ = doJSON(t, handler, http.MethodPost, "/api/feedback", map[string]any{
		"session_id": "missing",
		"rating":     2,
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t)

	resp, payload := doJSON(t, handler, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", payload["status"])

	services := payload["services"].(map[string]any)
	assert.Equal(t, true, services["qwen"])
	assert.Equal(t, false, services["deepseek"])

	extensions := payload["extensions_available"].(map[string]any)
	assert.Equal(t, true, extensions["sleep"])
	assert.Equal(t, false, extensions["anxiety"])
}

func TestStatusEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	createOnboardedSession(t, handler)

	resp, payload := doJSON(t, handler, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "operational", payload["status"])
	assert.Equal(t, float64(1), payload["total_sessions"])
	assert.Equal(t, float64(1), payload["active_sessions"])

	services := payload["api_services"].(map[string]any)
	assert.Equal(t, "available", services["qwen"])
	assert.Equal(t, "unavailable", services["gemini"])
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "OK", resp.Body.String())
}
