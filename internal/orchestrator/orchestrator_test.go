package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumonmind/lumond/internal/extension"
	"github.com/lumonmind/lumond/internal/session"
	"github.com/lumonmind/lumond/internal/testutil"
	"github.com/lumonmind/lumond/internal/topic"
)

func newTestOrchestrator(t *testing.T, adapters ...*testutil.StaticAdapter) *Orchestrator {
	t.Helper()
	logger := testutil.TestLogger()

	detector, err := topic.NewDetector(logger, topic.DefaultRecentMessages, topic.DefaultKeywordThreshold)
	require.NoError(t, err)

	loader := extension.NewLoaderFromFS(logger, fstest.MapFS{
		"sleep_extension.md":   {Data: []byte("Focus on sleep hygiene and routines.")},
		"anxiety_extension.md": {Data: []byte("Offer grounding techniques for anxious moments.")},
	})

	o := New(logger, testutil.TestChatConfig(), testutil.TestTopicsConfig(), detector, loader)
	for _, a := range adapters {
		o.adapters = append(o.adapters, a)
	}
	return o
}

func baseHistory() []session.Message {
	return []session.Message{
		{Role: session.RoleSystem, Content: "You are a supportive assistant."},
		{Role: session.RoleAssistant, Content: "Hi Alex, how are you feeling today?"},
		{Role: session.RoleUser, Content: "Feeling a bit low."},
	}
}

func TestRespond_FirstProviderWins(t *testing.T) {
	primary := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Reply: "primary reply"}
	fallback := &testutil.StaticAdapter{AdapterName: "deepseek", HasKey: true, Reply: "fallback reply"}
	o := newTestOrchestrator(t, primary, fallback)

	result := o.Respond(context.Background(), Request{History: baseHistory()})

	assert.Equal(t, "primary reply", result.Reply)
	assert.Equal(t, "qwen", result.Provider)
	assert.Equal(t, 1, primary.Calls)
	assert.Equal(t, 0, fallback.Calls)
	assert.Equal(t, 0.7, primary.LastParams.Temperature)
	assert.Equal(t, 2000, primary.LastParams.MaxTokens)
}

func TestRespond_FailuresFallThrough(t *testing.T) {
	primary := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Err: errors.New("boom")}
	second := &testutil.StaticAdapter{AdapterName: "deepseek", HasKey: true, Err: errors.New("also boom")}
	third := &testutil.StaticAdapter{AdapterName: "gemini", HasKey: true, Reply: "third time lucky"}
	o := newTestOrchestrator(t, primary, second, third)

	result := o.Respond(context.Background(), Request{History: baseHistory()})

	assert.Equal(t, "third time lucky", result.Reply)
	assert.Equal(t, "gemini", result.Provider)
	assert.Equal(t, 1, primary.Calls)
	assert.Equal(t, 1, second.Calls)
}

func TestRespond_UnconfiguredSkippedWithoutAttempt(t *testing.T) {
	unconfigured := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: false, Reply: "should never be used"}
	configured := &testutil.StaticAdapter{AdapterName: "deepseek", HasKey: true, Reply: "used"}
	o := newTestOrchestrator(t, unconfigured, configured)

	result := o.Respond(context.Background(), Request{History: baseHistory()})

	assert.Equal(t, "used", result.Reply)
	assert.Equal(t, "deepseek", result.Provider)
	assert.Equal(t, 0, unconfigured.Calls)
}

func TestRespond_AllFailReturnsApology(t *testing.T) {
	first := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Err: errors.New("down")}
	second := &testutil.StaticAdapter{AdapterName: "deepseek", HasKey: false}
	third := &testutil.StaticAdapter{AdapterName: "gemini", HasKey: true, Err: errors.New("down too")}
	o := newTestOrchestrator(t, first, second, third)

	result := o.Respond(context.Background(), Request{History: baseHistory()})

	assert.Equal(t, ApologyMessage, result.Reply)
	assert.Equal(t, "error", result.Provider)
}

func TestRespond_EmptyReplyTreatedAsFailure(t *testing.T) {
	empty := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Reply: "   "}
	backup := &testutil.StaticAdapter{AdapterName: "deepseek", HasKey: true, Reply: "real text"}
	o := newTestOrchestrator(t, empty, backup)

	result := o.Respond(context.Background(), Request{History: baseHistory()})

	assert.Equal(t, "real text", result.Reply)
	assert.Equal(t, "deepseek", result.Provider)
}

func TestRespond_SuppressionDirectiveWithinWindow(t *testing.T) {
	adapter := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Reply: "ok"}
	o := newTestOrchestrator(t, adapter)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return start.Add(2 * time.Minute) }

	history := baseHistory()
	o.Respond(context.Background(), Request{History: history, ChatStartedAt: start})

	require.NotEmpty(t, adapter.LastHistory)
	sent := adapter.LastHistory[0].Content
	assert.Contains(t, sent, "IMPORTANT TEMPORARY INSTRUCTION")
	assert.Contains(t, sent, "You are a supportive assistant.")
}

func TestRespond_NoDirectiveAfterWindow(t *testing.T) {
	adapter := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Reply: "ok"}
	o := newTestOrchestrator(t, adapter)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return start.Add(5*time.Minute + time.Second) }

	o.Respond(context.Background(), Request{History: baseHistory(), ChatStartedAt: start})

	assert.NotContains(t, adapter.LastHistory[0].Content, "IMPORTANT TEMPORARY INSTRUCTION")
}

func TestRespond_NoDirectiveWithoutChatStart(t *testing.T) {
	adapter := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Reply: "ok"}
	o := newTestOrchestrator(t, adapter)

	o.Respond(context.Background(), Request{History: baseHistory()})

	assert.NotContains(t, adapter.LastHistory[0].Content, "IMPORTANT TEMPORARY INSTRUCTION")
}

func TestRespond_TopicExtensionAppended(t *testing.T) {
	adapter := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Reply: "ok"}
	o := newTestOrchestrator(t, adapter)

	history := baseHistory()
	history = append(history, session.Message{
		Role:    session.RoleUser,
		Content: "I can't sleep at night, my sleep is broken and even a nap feels impossible. I'm so tired and the insomnia is wearing me down.",
	})

	result := o.Respond(context.Background(), Request{History: history})

	assert.Contains(t, result.Topics, "sleep")
	assert.Equal(t, []string{"sleep"}, result.AppliedExtensions)
	assert.Contains(t, adapter.LastHistory[0].Content, "Focus on sleep hygiene and routines.")
}

func TestRespond_ExtensionWithoutFileIsNotApplied(t *testing.T) {
	adapter := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Reply: "ok"}
	o := newTestOrchestrator(t, adapter)

	// "depression" meets the threshold but has no extension file in the
	// test FS; the topic is still reported.
	history := baseHistory()
	history = append(history, session.Message{
		Role:    session.RoleUser,
		Content: "I feel so depressed lately. This depression makes everything hopeless and I feel worthless and empty.",
	})

	result := o.Respond(context.Background(), Request{History: history})

	assert.Contains(t, result.Topics, "depression")
	assert.Empty(t, result.AppliedExtensions)
	assert.NotContains(t, adapter.LastHistory[0].Content, "depression")
}

func TestRespond_CanonicalHistoryCopyOnly(t *testing.T) {
	adapter := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Reply: "ok"}
	o := newTestOrchestrator(t, adapter)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return start.Add(time.Minute) }

	sess := session.New("sess-1")
	sess.Append(session.RoleSystem, "You are a supportive assistant.")
	sess.Append(session.RoleUser, "I can't sleep, sleep just won't come, no sleep for days.")

	// The request works on a snapshot; the canonical record must come back
	// byte-identical.
	o.Respond(context.Background(), Request{History: sess.HistoryCopy(), ChatStartedAt: start})

	canonical := sess.HistoryCopy()
	assert.Equal(t, "You are a supportive assistant.", canonical[0].Content)
	for _, msg := range canonical {
		assert.False(t, strings.Contains(msg.Content, "IMPORTANT TEMPORARY INSTRUCTION"))
		assert.False(t, strings.Contains(msg.Content, "sleep hygiene"))
	}
}

func TestRespond_NoSystemMessagePassesThrough(t *testing.T) {
	adapter := &testutil.StaticAdapter{AdapterName: "qwen", HasKey: true, Reply: "ok"}
	o := newTestOrchestrator(t, adapter)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return start.Add(time.Minute) }

	history := []session.Message{
		{Role: session.RoleUser, Content: "I can't sleep, sleep eludes me, sleep is gone."},
	}
	result := o.Respond(context.Background(), Request{History: history, ChatStartedAt: start})

	assert.Contains(t, result.Topics, "sleep")
	assert.Empty(t, result.AppliedExtensions)
	require.Len(t, adapter.LastHistory, 1)
	assert.Equal(t, "I can't sleep, sleep eludes me, sleep is gone.", adapter.LastHistory[0].Content)
}
