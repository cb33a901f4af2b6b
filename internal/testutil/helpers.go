package testutil

import (
	"io"
	"log/slog"

	"github.com/lumonmind/lumond/internal/config"
)

// TestLogger returns a discarding logger for tests.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestChatConfig returns chat settings with sensible test defaults.
func TestChatConfig() config.ChatConfig {
	return config.ChatConfig{
		Temperature:       0.7,
		MaxTokens:         2000,
		RequestTimeout:    "5s",
		SuppressionWindow: "5m",
	}
}

// TestTopicsConfig returns detector settings matching the runtime defaults.
func TestTopicsConfig() config.TopicsConfig {
	return config.TopicsConfig{
		RecentMessages:   5,
		KeywordThreshold: 3,
		MaxExtensions:    2,
	}
}

// Ptr returns a pointer to the given value. Useful for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
