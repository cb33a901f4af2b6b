// Package intent detects requests to hand the conversation off to a human
// therapist. Detection is deliberately literal: case-insensitive substring
// matching against a fixed phrase list, no tokenization.
package intent

import "strings"

// handoffPhrases is the fixed set of escalation phrases. Matching is
// substring-based, so a phrase embedded in a longer sentence still matches.
var handoffPhrases = []string{
	"talk to a therapist",
	"speak to a therapist",
	"talk to a counselor",
	"speak to a counselor",
	"human therapist",
	"real therapist",
	"book appointment",
	"schedule appointment",
	"see a professional",
	"talk to a professional",
	"book a session",
	"talk to a human",
	"need real help",
	"want real help",
	"see a therapist",
	"therapist appointment",
	"need a therapist",
	"want a therapist",
	"consult with a counselor",
	"meet with a therapist",
}

// replyHandoffKeywords are scanned in assistant replies: when the model
// itself steers toward professional help, the booking flow is surfaced even
// though the user never asked for it explicitly.
var replyHandoffKeywords = []string{
	"therapist",
	"counselor",
	"professional help",
}

// IsHandoffRequest reports whether the user's utterance asks for a human
// therapist or an appointment. Pure function, no side effects.
func IsHandoffRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range handoffPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// MentionsProfessionalHelp reports whether an assistant reply references a
// therapist, counselor, or professional help.
func MentionsProfessionalHelp(reply string) bool {
	lower := strings.ToLower(reply)
	for _, kw := range replyHandoffKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
