// Package session holds the in-memory conversation state. Sessions live for
// the lifetime of the process; durable storage of anything worth auditing is
// the audit package's job.
package session

import (
	"sync"
	"time"
)

// Message roles. The most recent system message in a history is the one
// augmentation targets.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Appointment records a therapist booking. Immutable once stored; a later
// booking replaces it wholesale.
type Appointment struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Therapist   string    `json:"therapist"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Modality    string    `json:"modality"`
	Specialties []string  `json:"specialties,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	BookedAt    time.Time `json:"booked_at"`
}

// Session is one user's conversation context, identified by an opaque token.
// All mutation must happen while holding the session lock; turns against the
// same session are serialized that way, turns against different sessions run
// in parallel.
type Session struct {
	mu sync.Mutex

	ID                  string
	Name                string
	Language            string
	Onboarded           bool
	Messages            []Message
	CreatedAt           time.Time
	ChatStartedAt       time.Time
	AppliedExtensions   []string
	ExtensionsAppliedAt time.Time
	HandoffRequested    bool
	LastAppointment     *Appointment
}

// New returns a fresh, not-yet-onboarded session.
func New(id string) *Session {
	return &Session{ID: id, CreatedAt: time.Now()}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds a message to the history. Caller must hold the lock.
func (s *Session) Append(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, CreatedAt: time.Now()})
}

// HistoryCopy returns a snapshot of the message history. The orchestrator
// mutates its outbound request copy freely; the canonical history stays
// untouched. Caller must hold the lock.
func (s *Session) HistoryCopy() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// LastSystemIndex returns the index of the most recent system message,
// or -1 if the history has none. Caller must hold the lock for live
// histories; safe on snapshots.
func LastSystemIndex(history []Message) int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleSystem {
			return i
		}
	}
	return -1
}
