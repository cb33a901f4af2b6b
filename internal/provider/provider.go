// Package provider contains the adapters for the external LLM services the
// assistant can route a chat turn to. All adapters share one failure
// contract: any transport error, non-success status, or structurally
// unexpected response is caught, logged with provider detail, and returned
// as an ordinary error. Nothing panics past the adapter boundary; the
// orchestrator treats every error the same way and tries the next provider.
package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/lumonmind/lumond/internal/session"
)

// Provider labels as they appear in responses, logs, and metrics.
const (
	LabelQwen     = "qwen"
	LabelDeepSeek = "deepseek"
	LabelGemini   = "gemini"
	// LabelError marks the aggregate failure reply when every provider failed.
	LabelError = "error"
)

// ErrEmptyResponse signals a structurally valid reply with no usable text.
var ErrEmptyResponse = errors.New("provider returned an empty response")

// Params are the generation parameters passed with every request.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Adapter is the uniform capability the orchestrator depends on.
type Adapter interface {
	// Name returns the stable provider label.
	Name() string
	// Configured reports whether credentials are present. An unconfigured
	// adapter is skipped outright instead of making a doomed call.
	Configured() bool
	// Generate produces text for the given history, or an error. The context
	// carries the per-call timeout; an expired context is a plain failure.
	Generate(ctx context.Context, history []session.Message, params Params) (string, error)
}

// newHTTPClient builds the shared transport for all adapters. The overall
// client timeout is a backstop; per-call deadlines come from the context.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   10,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
