// Package orchestrator turns a conversation snapshot into an assistant reply.
// It runs the pre-call prompt pipeline (early-conversation referral
// suppression, then topic extensions) on a working copy of the history and
// walks the provider chain in a fixed order until one returns usable text.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lumonmind/lumond/internal/config"
	"github.com/lumonmind/lumond/internal/extension"
	"github.com/lumonmind/lumond/internal/provider"
	"github.com/lumonmind/lumond/internal/session"
	"github.com/lumonmind/lumond/internal/topic"
)

// ApologyMessage is returned verbatim when every provider fails. The caller
// records it as a normal assistant turn.
const ApologyMessage = "I'm sorry, I'm having connectivity issues right now. Please try again later. The server team has been notified of this issue."

// suppressionDirective is appended to the system prompt while a conversation
// is still inside its opening window, steering the model away from premature
// counselor referrals.
const suppressionDirective = "## IMPORTANT TEMPORARY INSTRUCTION\n" +
	"For the first 5 minutes of this conversation, DO NOT suggest or refer the user to a counselor " +
	"UNLESS they express crisis-level concerns (suicidal thoughts, self-harm, harm to others, or severe " +
	"emotional distress). Focus on providing direct support and coping strategies yourself instead."

// Request is one reply request. History must be the caller's own copy; the
// orchestrator mutates it while assembling the outgoing prompt and never
// touches the canonical session record.
type Request struct {
	History       []session.Message
	ChatStartedAt time.Time
}

// Result carries the reply plus the bookkeeping the caller must persist.
// AppliedExtensions is valid even when the reply is the apology; extensions
// that entered the outgoing prompt count as applied regardless of how the
// provider call went.
type Result struct {
	Reply             string
	Provider          string
	Topics            []string
	AppliedExtensions []string
}

type Orchestrator struct {
	logger            *slog.Logger
	adapters          []provider.Adapter
	detector          *topic.Detector
	extensions        *extension.Loader
	params            provider.Params
	requestTimeout    time.Duration
	suppressionWindow time.Duration
	maxExtensions     int
	now               func() time.Time
}

// New builds an orchestrator. Adapter order is the fallback order.
func New(logger *slog.Logger, cfg config.ChatConfig, topicsCfg config.TopicsConfig, detector *topic.Detector, extensions *extension.Loader, adapters ...provider.Adapter) *Orchestrator {
	return &Orchestrator{
		logger:            logger.With("component", "orchestrator"),
		adapters:          adapters,
		detector:          detector,
		extensions:        extensions,
		params:            provider.Params{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
		requestTimeout:    cfg.GetRequestTimeout(),
		suppressionWindow: cfg.GetSuppressionWindow(),
		maxExtensions:     topicsCfg.MaxExtensions,
		now:               time.Now,
	}
}

// Respond runs the full pipeline and always returns a usable Result; total
// provider failure yields the apology with the "error" provider label.
func (o *Orchestrator) Respond(ctx context.Context, req Request) Result {
	result := Result{}
	history := req.History

	if o.withinSuppressionWindow(req.ChatStartedAt) {
		history = o.applySuppression(history)
	}

	history, result.Topics, result.AppliedExtensions = o.applyExtensions(history)

	reply, name := o.callProviders(ctx, history)
	result.Reply = reply
	result.Provider = name
	return result
}

// withinSuppressionWindow reports whether the conversation is still in its
// opening window. A zero start time means chat never started; no window.
func (o *Orchestrator) withinSuppressionWindow(chatStartedAt time.Time) bool {
	if chatStartedAt.IsZero() {
		return false
	}
	elapsed := o.now().Sub(chatStartedAt)
	return elapsed >= 0 && elapsed < o.suppressionWindow
}

func (o *Orchestrator) applySuppression(history []session.Message) []session.Message {
	idx := session.LastSystemIndex(history)
	if idx < 0 {
		o.logger.Warn("No system message found to carry suppression directive")
		return history
	}
	history[idx].Content += "\n\n" + suppressionDirective
	o.logger.Debug("Applied referral suppression directive", "system_index", idx)
	return history
}

// applyExtensions detects topics in the recent user messages and folds the
// extension texts for the top-ranked topics into the most recent system
// message. Without a system message the history passes through unchanged.
func (o *Orchestrator) applyExtensions(history []session.Message) ([]session.Message, []string, []string) {
	topics := o.detector.Detect(history)
	if len(topics) == 0 {
		return history, nil, nil
	}

	idx := session.LastSystemIndex(history)
	if idx < 0 {
		o.logger.Warn("No system message found to carry topic extensions", "topics", topics)
		return history, topics, nil
	}

	selected := topics
	if len(selected) > o.maxExtensions {
		selected = selected[:o.maxExtensions]
	}

	var texts []string
	var applied []string
	for _, name := range selected {
		text, ok := o.extensions.Load(name)
		if !ok {
			continue
		}
		texts = append(texts, text)
		applied = append(applied, name)
		recordExtensionApplied(name)
	}
	if len(texts) == 0 {
		return history, topics, nil
	}

	history[idx].Content += "\n\n" + strings.Join(texts, "\n\n")
	o.logger.Info("Applied topic extensions", "topics", applied)
	return history, topics, applied
}

// callProviders walks the adapter chain in order. Unconfigured adapters are
// skipped without an attempt; the first non-empty reply wins.
func (o *Orchestrator) callProviders(ctx context.Context, history []session.Message) (string, string) {
	for _, adapter := range o.adapters {
		if !adapter.Configured() {
			o.logger.Debug("Skipping unconfigured provider", "provider", adapter.Name())
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
		start := o.now()
		reply, err := adapter.Generate(callCtx, history, o.params)
		cancel()
		duration := o.now().Sub(start)

		if err == nil && strings.TrimSpace(reply) == "" {
			err = provider.ErrEmptyResponse
		}
		provider.RecordRequest(adapter.Name(), duration.Seconds(), err == nil)
		if err != nil {
			o.logger.Warn("Provider attempt failed",
				"provider", adapter.Name(),
				"duration", duration,
				"error", err,
			)
			continue
		}

		o.logger.Info("Provider attempt succeeded",
			"provider", adapter.Name(),
			"duration", duration,
			"reply_length", len(reply),
		)
		return reply, adapter.Name()
	}

	o.logger.Error("All providers failed, returning apology")
	recordExhausted()
	return ApologyMessage, provider.LabelError
}
