// Package assistant implements the conversation lifecycle on top of the
// session store and the response orchestrator: onboarding, chat turns,
// human-handoff escalation, therapist booking, conversation reset and
// deletion.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lumonmind/lumond/internal/audit"
	"github.com/lumonmind/lumond/internal/intent"
	"github.com/lumonmind/lumond/internal/orchestrator"
	"github.com/lumonmind/lumond/internal/session"
)

// handoffAcknowledgment answers a detected handoff request without a
// provider call.
const handoffAcknowledgment = "I understand you'd like to speak with a therapist. Let me help you book an appointment."

// Responder produces a reply for a conversation snapshot.
type Responder interface {
	Respond(ctx context.Context, req orchestrator.Request) orchestrator.Result
}

type Service struct {
	logger       *slog.Logger
	store        session.Store
	responder    Responder
	auditor      audit.Store
	validate     *validator.Validate
	systemPrompt string
	now          func() time.Time
	newID        func() string
}

func New(logger *slog.Logger, store session.Store, responder Responder, auditor audit.Store, systemPrompt string) *Service {
	return &Service{
		logger:       logger.With("component", "assistant"),
		store:        store,
		responder:    responder,
		auditor:      auditor,
		validate:     newBookingValidator(),
		systemPrompt: systemPrompt,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// CreateSession mints a new empty session and returns its identifier.
func (s *Service) CreateSession() string {
	id := s.newID()
	s.store.Put(session.New(id))
	recordSessionCreated()
	s.logger.Info("Created new session", "session_id", id)
	return id
}

// Onboard records the user's name and language, marks the session active and
// seeds the conversation with the system prompt and a personalized greeting.
// The greeting is returned so the caller can show it immediately.
func (s *Service) Onboard(id, name, language string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &ValidationError{Fields: []string{"name"}}
	}
	if language == "" {
		language = "English"
	}

	sess, ok := s.store.Get(id)
	if !ok {
		return "", ErrSessionNotFound
	}

	greeting := fmt.Sprintf("Hi %s, I'm LumonMind, your AI mental health companion. How are you feeling today?", name)
	if language == "Hindi" {
		greeting += "\n\nNamaste! Aap kaise feel kar rahe hain aaj?"
	}

	sess.Lock()
	defer sess.Unlock()
	sess.Name = name
	sess.Language = language
	sess.Onboarded = true
	sess.ChatStartedAt = s.now()
	sess.HandoffRequested = false
	sess.AppliedExtensions = nil
	sess.ExtensionsAppliedAt = time.Time{}
	sess.Messages = nil
	sess.Append(session.RoleSystem, s.systemPrompt)
	sess.Append(session.RoleAssistant, greeting)

	s.logger.Info("Onboarding completed", "session_id", id, "language", language)
	return greeting, nil
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Reply            string
	Provider         string
	HandoffRequested bool
}

// Chat runs one strict chat turn: the session must exist and be onboarded.
// A handoff request short-circuits with a fixed acknowledgment and never
// reaches a provider.
func (s *Service) Chat(ctx context.Context, id, text string) (ChatResult, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return ChatResult{}, ErrSessionNotFound
	}

	sess.Lock()
	if !sess.Onboarded {
		sess.Unlock()
		return ChatResult{}, ErrNotOnboarded
	}

	if intent.IsHandoffRequest(text) {
		sess.HandoffRequested = true
		sess.Unlock()
		recordHandoff("user_request")
		s.logger.Info("Handoff request detected", "session_id", id)
		return ChatResult{Reply: handoffAcknowledgment, HandoffRequested: true}, nil
	}

	result := s.runTurn(ctx, sess, text)
	handoff := sess.HandoffRequested
	sess.Unlock()

	s.logTurn(id, text, result)
	return ChatResult{Reply: result.Reply, Provider: result.Provider, HandoffRequested: handoff}, nil
}

// QuickChat is the lenient single-endpoint variant: a missing session is
// created on the fly and the conversation self-seeds with the system prompt.
// A handoff request still sets the flag but the turn proceeds to a provider.
func (s *Service) QuickChat(ctx context.Context, id, text string) (string, ChatResult, error) {
	if id == "" {
		id = s.CreateSession()
	}
	sess, ok := s.store.Get(id)
	if !ok {
		sess = session.New(id)
		s.store.Put(sess)
		recordSessionCreated()
		s.logger.Info("Auto-created session", "session_id", id)
	}

	sess.Lock()
	if sess.ChatStartedAt.IsZero() {
		sess.ChatStartedAt = s.now()
	}
	if intent.IsHandoffRequest(text) {
		sess.HandoffRequested = true
		recordHandoff("user_request")
		s.logger.Info("Handoff request detected", "session_id", id)
	}
	if len(sess.Messages) == 0 {
		sess.Append(session.RoleSystem, s.systemPrompt)
	}

	result := s.runTurn(ctx, sess, text)
	handoff := sess.HandoffRequested
	sess.Unlock()

	s.logTurn(id, text, result)
	return id, ChatResult{Reply: result.Reply, Provider: result.Provider, HandoffRequested: handoff}, nil
}

// runTurn appends the user message, asks the responder for a reply on a
// history snapshot, persists the extension bookkeeping and the reply.
// Caller holds the session lock.
func (s *Service) runTurn(ctx context.Context, sess *session.Session, text string) orchestrator.Result {
	sess.Append(session.RoleUser, text)

	result := s.responder.Respond(ctx, orchestrator.Request{
		History:       sess.HistoryCopy(),
		ChatStartedAt: sess.ChatStartedAt,
	})

	if len(result.AppliedExtensions) > 0 {
		sess.AppliedExtensions = result.AppliedExtensions
		sess.ExtensionsAppliedAt = s.now()
	}

	sess.Append(session.RoleAssistant, result.Reply)

	if intent.MentionsProfessionalHelp(result.Reply) && !sess.HandoffRequested {
		sess.HandoffRequested = true
		recordHandoff("assistant_mention")
		s.logger.Info("Professional-help mention in reply", "session_id", sess.ID)
	}

	recordChatTurn(result.Provider)
	return result
}

func (s *Service) logTurn(id, text string, result orchestrator.Result) {
	err := s.auditor.LogTurn(audit.Turn{
		SessionID:        id,
		UserMessage:      text,
		AssistantMessage: result.Reply,
		Provider:         result.Provider,
	})
	if err != nil {
		s.logger.Error("Failed to persist conversation turn", "session_id", id, "error", err)
	}
}

// BookAppointment validates and records a therapist booking. The session's
// handoff flag is left as-is; booking alone does not resolve the escalation.
func (s *Service) BookAppointment(id string, req BookingRequest) (string, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return "", ErrSessionNotFound
	}

	if err := s.validate.Struct(req); err != nil {
		return "", &ValidationError{Fields: validationFields(err)}
	}

	appt := &session.Appointment{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Therapist:   req.Therapist,
		Date:        req.Date,
		Time:        req.Time,
		Modality:    req.Modality,
		Specialties: req.Specialties,
		Reason:      req.Reason,
		BookedAt:    s.now(),
	}

	sess.Lock()
	sess.LastAppointment = appt
	sess.Unlock()

	err := s.auditor.LogAppointment(audit.AppointmentRecord{
		SessionID:   id,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Therapist:   req.Therapist,
		Date:        req.Date,
		Time:        req.Time,
		Modality:    req.Modality,
		Specialties: strings.Join(req.Specialties, ","),
		Reason:      req.Reason,
	})
	if err != nil {
		s.logger.Error("Failed to persist appointment", "session_id", id, "error", err)
	}

	recordBooking()
	s.logger.Info("Appointment booked", "session_id", id, "therapist", req.Therapist, "date", req.Date)
	return confirmationMessage(req), nil
}

// EndConversation closes the current conversation epoch: messages are
// reseeded, the chat clock restarts, the handoff flag clears, user info
// survives.
func (s *Service) EndConversation(id string) (string, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return "", ErrSessionNotFound
	}

	sess.Lock()
	defer sess.Unlock()

	greeting := fmt.Sprintf("Hi %s, I'm starting a new conversation. How can I help you today?", sess.Name)

	sess.Messages = nil
	sess.Append(session.RoleSystem, s.systemPrompt)
	sess.Append(session.RoleAssistant, greeting)
	sess.ChatStartedAt = s.now()
	sess.HandoffRequested = false
	sess.AppliedExtensions = nil
	sess.ExtensionsAppliedAt = time.Time{}

	s.logger.Info("Conversation ended", "session_id", id)
	return greeting, nil
}

// ClearConversation wipes the history without seeding a greeting; user info
// and onboarding state survive.
func (s *Service) ClearConversation(id string) error {
	sess, ok := s.store.Get(id)
	if !ok {
		return ErrSessionNotFound
	}

	sess.Lock()
	defer sess.Unlock()
	sess.Messages = nil
	sess.ChatStartedAt = s.now()
	sess.HandoffRequested = false
	sess.AppliedExtensions = nil
	sess.ExtensionsAppliedAt = time.Time{}

	s.logger.Info("Conversation cleared", "session_id", id)
	return nil
}

// DeleteSession removes the record; the identifier becomes invalid.
func (s *Service) DeleteSession(id string) error {
	if !s.store.Delete(id) {
		return ErrSessionNotFound
	}
	s.logger.Info("Session deleted", "session_id", id)
	return nil
}

// History returns the visible conversation: user and assistant messages only.
func (s *Service) History(id string) ([]session.Message, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	sess.Lock()
	snapshot := sess.HistoryCopy()
	sess.Unlock()

	visible := make([]session.Message, 0, len(snapshot))
	for _, msg := range snapshot {
		if msg.Role == session.RoleUser || msg.Role == session.RoleAssistant {
			visible = append(visible, msg)
		}
	}
	return visible, nil
}

// SessionInfo is a read-only snapshot of session state.
type SessionInfo struct {
	ID                string               `json:"session_id"`
	Name              string               `json:"name"`
	Language          string               `json:"language"`
	Onboarded         bool                 `json:"onboarded"`
	MessageCount      int                  `json:"message_count"`
	CreatedAt         time.Time            `json:"created_at"`
	ChatStartedAt     time.Time            `json:"chat_started_at,omitempty"`
	HandoffRequested  bool                 `json:"handoff_requested"`
	AppliedExtensions []string             `json:"applied_extensions,omitempty"`
	LastAppointment   *session.Appointment `json:"last_appointment,omitempty"`
}

func (s *Service) Info(id string) (SessionInfo, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return SessionInfo{}, ErrSessionNotFound
	}

	sess.Lock()
	defer sess.Unlock()
	return SessionInfo{
		ID:                sess.ID,
		Name:              sess.Name,
		Language:          sess.Language,
		Onboarded:         sess.Onboarded,
		MessageCount:      len(sess.Messages),
		CreatedAt:         sess.CreatedAt,
		ChatStartedAt:     sess.ChatStartedAt,
		HandoffRequested:  sess.HandoffRequested,
		AppliedExtensions: append([]string(nil), sess.AppliedExtensions...),
		LastAppointment:   sess.LastAppointment,
	}, nil
}

// SubmitFeedback records a rating and optional free text for a session.
func (s *Service) SubmitFeedback(id string, rating int, text string) error {
	if _, ok := s.store.Get(id); !ok {
		return ErrSessionNotFound
	}
	return s.auditor.LogFeedback(audit.FeedbackRecord{
		SessionID: id,
		Rating:    rating,
		Feedback:  text,
	})
}
