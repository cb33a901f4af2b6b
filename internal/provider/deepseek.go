package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumonmind/lumond/internal/config"
	"github.com/lumonmind/lumond/internal/session"
)

// DeepSeekAdapter posts directly to DeepSeek's REST chat endpoint, walking
// its own list of fallback base URLs. The wire format matches the Qwen
// adapter; the base URLs and error surface are DeepSeek's.
type DeepSeekAdapter struct {
	httpClient *http.Client
	apiKey     string
	model      string
	endpoints  []string
	logger     *slog.Logger
}

func NewDeepSeekAdapter(logger *slog.Logger, cfg config.ProviderConfig, timeout time.Duration) *DeepSeekAdapter {
	return &DeepSeekAdapter{
		httpClient: newHTTPClient(timeout),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoints:  cfg.Endpoints,
		logger:     logger.With("component", "deepseek_client"),
	}
}

func (a *DeepSeekAdapter) Name() string { return LabelDeepSeek }

func (a *DeepSeekAdapter) Configured() bool { return a.apiKey != "" }

func (a *DeepSeekAdapter) Generate(ctx context.Context, history []session.Message, params Params) (string, error) {
	req := chatCompletionRequest{
		Model:       a.model,
		Messages:    toWireMessages(history),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var lastErr error
	for i, base := range a.endpoints {
		if i > 0 {
			RecordFallback(LabelDeepSeek)
			a.logger.Warn("Falling back to alternate DeepSeek base URL",
				"base_url", base,
				"last_error", lastErr,
			)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		reply, err := a.tryBaseURL(ctx, base, body)
		if err != nil {
			lastErr = err
			continue
		}
		return reply, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no DeepSeek base URLs configured")
	}
	return "", fmt.Errorf("all DeepSeek base URLs failed: %w", lastErr)
}

func (a *DeepSeekAdapter) tryBaseURL(ctx context.Context, base string, body []byte) (string, error) {
	endpoint, err := url.JoinPath(base, "chat/completions")
	if err != nil {
		return "", err
	}

	a.logger.Info("Sending request to DeepSeek", "base_url", base, "model", a.model)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "lumond/1.0")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	responseBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("DeepSeek returned non-OK status", "status", resp.Status, "body", string(responseBody))
		return "", fmt.Errorf("deepseek API error: %s", resp.Status)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(responseBody, &chatResp); err != nil {
		a.logger.Error("Failed to decode DeepSeek response", "error", err, "body_length", len(responseBody))
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	reply := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyResponse
	}

	RecordTokens(LabelDeepSeek, chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens)
	a.logger.Info("DeepSeek response parsed successfully",
		"model", chatResp.Model,
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
	)
	return reply, nil
}
