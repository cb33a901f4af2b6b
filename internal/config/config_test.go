package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file for testing
	content := `
server:
  listen_port: "9001"
providers:
  qwen:
    api_key: "qwen-key"
    model: "qwen-max"
    endpoints:
      - https://example.com/v1
  deepseek:
    api_key: "ds-key"
  gemini:
    api_key: "gem-key"
database:
  path: "test.db"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name()) // clean up

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "9001", cfg.Server.ListenPort)
	assert.Equal(t, "qwen-key", cfg.Providers.Qwen.APIKey)
	assert.Equal(t, "qwen-max", cfg.Providers.Qwen.Model)
	assert.Equal(t, []string{"https://example.com/v1"}, cfg.Providers.Qwen.Endpoints)
	assert.Equal(t, "ds-key", cfg.Providers.DeepSeek.APIKey)
	assert.Equal(t, "gem-key", cfg.Providers.Gemini.APIKey)
	assert.Equal(t, "test.db", cfg.Database.Path)

	// Values not present in the user file keep the embedded defaults.
	assert.Equal(t, "deepseek-chat", cfg.Providers.DeepSeek.Model)
	assert.Equal(t, 5, cfg.Topics.RecentMessages)
	assert.Equal(t, 3, cfg.Topics.KeywordThreshold)
	assert.Equal(t, 2, cfg.Topics.MaxExtensions)
}

func TestLoad_FileNotExists_FallsBackToDefault(t *testing.T) {
	cfg, err := Load("non_existent_file.yaml")
	assert.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.Server.ListenPort)
}

func TestLoadDefault(t *testing.T) {
	cfg, err := LoadDefault()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.Server.ListenPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 0.7, cfg.Chat.Temperature)
	assert.Equal(t, 2000, cfg.Chat.MaxTokens)
	assert.Len(t, cfg.Providers.Gemini.Models, 3)
}

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("QWEN_API_KEY", "qwen-from-env")
	t.Setenv("GEMINI_API_KEY", "gemini-from-env")
	t.Setenv("LUMOND_SERVER_PORT", "9090")

	cfg, err := LoadDefault()
	assert.NoError(t, err)
	assert.Equal(t, "qwen-from-env", cfg.Providers.Qwen.APIKey)
	assert.Equal(t, "gemini-from-env", cfg.Providers.Gemini.APIKey)
	assert.Equal(t, "", cfg.Providers.DeepSeek.APIKey)
	assert.Equal(t, "9090", cfg.Server.ListenPort)
}

func TestChatConfig_Durations(t *testing.T) {
	c := ChatConfig{}
	assert.Equal(t, DefaultRequestTimeout, c.GetRequestTimeout())
	assert.Equal(t, DefaultSuppressionWindow, c.GetSuppressionWindow())

	c = ChatConfig{RequestTimeout: "30s", SuppressionWindow: "10m"}
	assert.Equal(t, 30*time.Second, c.GetRequestTimeout())
	assert.Equal(t, 10*time.Minute, c.GetSuppressionWindow())

	c = ChatConfig{RequestTimeout: "bogus", SuppressionWindow: "bogus"}
	assert.Equal(t, DefaultRequestTimeout, c.GetRequestTimeout())
	assert.Equal(t, DefaultSuppressionWindow, c.GetSuppressionWindow())
}

func TestValidate(t *testing.T) {
	cfg, err := LoadDefault()
	assert.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	// No credentials at all is still a valid configuration: the assistant
	// degrades to the fixed apology instead of refusing to start.
	cfg.Providers = ProvidersConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Failures(t *testing.T) {
	cfg, err := LoadDefault()
	assert.NoError(t, err)

	cfg.Database.Path = ""
	cfg.Topics.KeywordThreshold = 0
	cfg.Chat.RequestTimeout = "not-a-duration"
	cfg.Providers.Qwen.APIKey = "key"
	cfg.Providers.Qwen.Endpoints = nil

	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
	assert.Contains(t, err.Error(), "topics.keyword_threshold")
	assert.Contains(t, err.Error(), "chat.request_timeout")
	assert.Contains(t, err.Error(), "providers.qwen.endpoints")
}
