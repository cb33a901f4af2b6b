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

// Gemini speaks its own wire format: no system role, "model" instead of
// "assistant", and message text nested in content parts.
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings,omitempty"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Role  string       `json:"role"`
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

var geminiSafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// GeminiAdapter calls the Gemini generateContent API, falling back across
// model names instead of base URLs.
type GeminiAdapter struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	models      []string
	safetyBlock string
	logger      *slog.Logger
}

func NewGeminiAdapter(logger *slog.Logger, cfg config.GeminiConfig, timeout time.Duration) *GeminiAdapter {
	return &GeminiAdapter{
		httpClient:  newHTTPClient(timeout),
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		models:      cfg.Models,
		safetyBlock: cfg.SafetyBlock,
		logger:      logger.With("component", "gemini_client"),
	}
}

func (a *GeminiAdapter) Name() string { return LabelGemini }

func (a *GeminiAdapter) Configured() bool { return a.apiKey != "" }

func (a *GeminiAdapter) Generate(ctx context.Context, history []session.Message, params Params) (string, error) {
	req := geminiRequest{
		Contents:       toGeminiContents(history),
		SafetySettings: a.safetySettings(),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxTokens,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var lastErr error
	for i, model := range a.models {
		if i > 0 {
			RecordFallback(LabelGemini)
			a.logger.Warn("Falling back to alternate Gemini model",
				"model", model,
				"last_error", lastErr,
			)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		reply, err := a.tryModel(ctx, model, body)
		if err != nil {
			lastErr = err
			continue
		}
		return reply, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no Gemini models configured")
	}
	return "", fmt.Errorf("all Gemini models failed: %w", lastErr)
}

// toGeminiContents remaps the canonical conversation into Gemini's schema.
// The system prompt has no role of its own, so it is folded into the first
// user turn. Assistant turns become "model" turns.
func toGeminiContents(history []session.Message) []geminiContent {
	var system []string
	contents := make([]geminiContent, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case session.RoleSystem:
			system = append(system, m.Content)
		case session.RoleAssistant:
			contents = append(contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: m.Content}},
			})
		default:
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}
	if len(system) == 0 {
		return contents
	}

	preamble := strings.Join(system, "\n\n")
	for i := range contents {
		if contents[i].Role == "user" {
			contents[i].Parts[0].Text = preamble + "\n\n" + contents[i].Parts[0].Text
			return contents
		}
	}
	// No user turn to fold into; prepend the prompt as its own user turn.
	return append([]geminiContent{{
		Role:  "user",
		Parts: []geminiPart{{Text: preamble}},
	}}, contents...)
}

func (a *GeminiAdapter) safetySettings() []geminiSafetySetting {
	if a.safetyBlock == "" {
		return nil
	}
	settings := make([]geminiSafetySetting, 0, len(geminiSafetyCategories))
	for _, cat := range geminiSafetyCategories {
		settings = append(settings, geminiSafetySetting{Category: cat, Threshold: a.safetyBlock})
	}
	return settings
}

func (a *GeminiAdapter) tryModel(ctx context.Context, model string, body []byte) (string, error) {
	endpoint, err := url.JoinPath(a.baseURL, "models", model+":generateContent")
	if err != nil {
		return "", err
	}
	endpoint += "?key=" + url.QueryEscape(a.apiKey)

	a.logger.Info("Sending request to Gemini", "model", model)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
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
		a.logger.Error("Gemini returned non-OK status", "model", model, "status", resp.Status, "body", string(responseBody))
		return "", fmt.Errorf("gemini API error for %s: %s", model, resp.Status)
	}

	var genResp geminiResponse
	if err := json.Unmarshal(responseBody, &genResp); err != nil {
		a.logger.Error("Failed to decode Gemini response", "error", err, "body_length", len(responseBody))
		return "", err
	}

	if len(genResp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", ErrEmptyResponse
	}

	RecordTokens(LabelGemini, genResp.UsageMetadata.PromptTokenCount, genResp.UsageMetadata.CandidatesTokenCount)
	a.logger.Info("Gemini response parsed successfully",
		"model", model,
		"prompt_tokens", genResp.UsageMetadata.PromptTokenCount,
		"completion_tokens", genResp.UsageMetadata.CandidatesTokenCount,
	)
	return reply, nil
}
