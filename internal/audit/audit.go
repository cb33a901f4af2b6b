// Package audit is the append-only record of what the assistant did:
// conversation turns, booked appointments, and user feedback. Writes are
// best-effort; a failed write is logged and never fails the user-facing
// operation that triggered it.
package audit

import (
	"time"
)

// Turn is one completed chat exchange.
type Turn struct {
	ID               int64
	SessionID        string
	UserMessage      string
	AssistantMessage string
	Provider         string
	CreatedAt        time.Time
}

// AppointmentRecord is a booked appointment as submitted.
type AppointmentRecord struct {
	ID          int64
	SessionID   string
	Name        string
	Email       string
	Phone       string
	Therapist   string
	Date        string
	Time        string
	Modality    string
	Specialties string
	Reason      string
	CreatedAt   time.Time
}

// FeedbackRecord is one feedback submission.
type FeedbackRecord struct {
	ID        int64
	SessionID string
	Rating    int
	Feedback  string
	CreatedAt time.Time
}

// Store is the persistence surface the rest of the service writes to.
type Store interface {
	LogTurn(turn Turn) error
	LogAppointment(rec AppointmentRecord) error
	LogFeedback(rec FeedbackRecord) error
	RecentTurns(sessionID string, limit int) ([]Turn, error)
	Close() error
}
