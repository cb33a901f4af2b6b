package assistant

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound means the identifier has no session record.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotOnboarded means the session exists but onboarding never completed.
	ErrNotOnboarded = errors.New("user not onboarded")
)

// ValidationError reports which input fields failed validation. The booking
// handler surfaces Fields to the client; nothing is stored on failure.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid fields: %s", strings.Join(e.Fields, ", "))
}
