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

// chatMessage is the OpenAI-compatible wire message shared by the Qwen and
// DeepSeek adapters.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func toWireMessages(history []session.Message) []chatMessage {
	msgs := make([]chatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// QwenAdapter calls Qwen through its OpenAI-compatible chat completions API.
// It walks the configured base URLs in order and settles on the first one
// that yields a non-empty reply.
type QwenAdapter struct {
	httpClient *http.Client
	apiKey     string
	model      string
	endpoints  []string
	logger     *slog.Logger
}

func NewQwenAdapter(logger *slog.Logger, cfg config.ProviderConfig, timeout time.Duration) *QwenAdapter {
	return &QwenAdapter{
		httpClient: newHTTPClient(timeout),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		endpoints:  cfg.Endpoints,
		logger:     logger.With("component", "qwen_client"),
	}
}

func (a *QwenAdapter) Name() string { return LabelQwen }

func (a *QwenAdapter) Configured() bool { return a.apiKey != "" }

func (a *QwenAdapter) Generate(ctx context.Context, history []session.Message, params Params) (string, error) {
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
			RecordFallback(LabelQwen)
			a.logger.Warn("Falling back to alternate Qwen endpoint",
				"endpoint", base,
				"last_error", lastErr,
			)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		reply, err := a.tryEndpoint(ctx, base, body)
		if err != nil {
			lastErr = err
			continue
		}
		return reply, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no Qwen endpoints configured")
	}
	return "", fmt.Errorf("all Qwen endpoints failed: %w", lastErr)
}

func (a *QwenAdapter) tryEndpoint(ctx context.Context, base string, body []byte) (string, error) {
	endpoint, err := url.JoinPath(base, "chat/completions")
	if err != nil {
		return "", err
	}

	a.logger.Info("Sending request to Qwen", "endpoint", base, "model", a.model)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
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
		a.logger.Error("Qwen returned non-OK status", "status", resp.Status, "body", string(responseBody))
		return "", fmt.Errorf("qwen API error: %s", resp.Status)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(responseBody, &chatResp); err != nil {
		a.logger.Error("Failed to decode Qwen response", "error", err, "body_length", len(responseBody))
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	reply := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyResponse
	}

	RecordTokens(LabelQwen, chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens)
	a.logger.Info("Qwen response parsed successfully",
		"model", chatResp.Model,
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
	)
	return reply, nil
}
