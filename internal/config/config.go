package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// ProviderConfig describes one upstream LLM provider. An empty APIKey means
// the provider is skipped during the fallback sequence, not an error.
type ProviderConfig struct {
	APIKey    string   `yaml:"api_key"`
	Model     string   `yaml:"model"`
	Endpoints []string `yaml:"endpoints"`
}

// GeminiConfig differs from the other providers: instead of endpoint
// fallbacks it tries model names in order against a single base URL.
type GeminiConfig struct {
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Models      []string `yaml:"models"`
	SafetyBlock string   `yaml:"safety_block"`
}

type ProvidersConfig struct {
	Qwen     ProviderConfig `yaml:"qwen"`
	DeepSeek ProviderConfig `yaml:"deepseek"`
	Gemini   GeminiConfig   `yaml:"gemini"`
}

// ChatConfig holds generation parameters shared by all providers and the
// per-session conversation rules.
type ChatConfig struct {
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestTimeout    string  `yaml:"request_timeout"`
	SuppressionWindow string  `yaml:"suppression_window"`
}

// DefaultRequestTimeout bounds a single provider call.
const DefaultRequestTimeout = 60 * time.Second

// DefaultSuppressionWindow is the post-onboarding interval during which
// unprompted counselor referrals are discouraged.
const DefaultSuppressionWindow = 5 * time.Minute

// GetRequestTimeout returns the parsed per-provider call timeout.
// Falls back to DefaultRequestTimeout if not configured or invalid.
func (c *ChatConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == "" {
		return DefaultRequestTimeout
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return DefaultRequestTimeout
	}
	return d
}

// GetSuppressionWindow returns the parsed escalation-suppression window.
func (c *ChatConfig) GetSuppressionWindow() time.Duration {
	if c.SuppressionWindow == "" {
		return DefaultSuppressionWindow
	}
	d, err := time.ParseDuration(c.SuppressionWindow)
	if err != nil {
		return DefaultSuppressionWindow
	}
	return d
}

// TopicsConfig controls keyword-based topic detection.
type TopicsConfig struct {
	RecentMessages   int `yaml:"recent_messages" env:"LUMOND_TOPICS_RECENT_MESSAGES"`
	KeywordThreshold int `yaml:"keyword_threshold" env:"LUMOND_TOPICS_KEYWORD_THRESHOLD"`
	MaxExtensions    int `yaml:"max_extensions"`
}

type Config struct {
	Log struct {
		Level string `yaml:"level" env:"LUMOND_LOG_LEVEL"`
	} `yaml:"log"`
	Server struct {
		ListenPort string `yaml:"listen_port" env:"LUMOND_SERVER_PORT"`
	} `yaml:"server"`
	Prompt struct {
		Path string `yaml:"path" env:"LUMOND_PROMPT_PATH"`
	} `yaml:"prompt"`
	Extensions struct {
		Dir string `yaml:"dir" env:"LUMOND_EXTENSIONS_DIR"`
	} `yaml:"extensions"`
	Topics    TopicsConfig    `yaml:"topics"`
	Chat      ChatConfig      `yaml:"chat"`
	Providers ProvidersConfig `yaml:"providers"`
	Database  struct {
		Path string `yaml:"path" env:"LUMOND_DATABASE_PATH"`
	} `yaml:"database"`
}

// Load loads configuration from the specified file path.
// It first loads the embedded default configuration, then merges the user
// config on top, then overrides values with environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			expandedData := []byte(os.ExpandEnv(string(data)))
			if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
				return nil, err
			}
			slog.Info("loaded user config", "path", path)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	// Provider API keys come from the same variables the original deployment
	// used, so an existing .env keeps working without a config file.
	if v := os.Getenv("QWEN_API_KEY"); v != "" {
		cfg.Providers.Qwen.APIKey = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		cfg.Providers.DeepSeek.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Providers.Gemini.APIKey = v
	}

	return &cfg, nil
}

// LoadDefault loads the embedded default configuration.
func LoadDefault() (*Config, error) {
	return Load("")
}

// DefaultConfigBytes returns the raw embedded default configuration.
// Useful for generating example config files.
func DefaultConfigBytes() []byte {
	return defaultConfig
}

// Validate checks configuration for required fields and valid ranges.
// Returns an error describing all validation failures. Missing provider
// credentials are deliberately not an error: an unconfigured provider is
// skipped at request time and the assistant degrades to the apology reply.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ListenPort == "" {
		errs = append(errs, errors.New("server.listen_port is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if c.Topics.RecentMessages <= 0 {
		errs = append(errs, fmt.Errorf("topics.recent_messages must be positive, got %d", c.Topics.RecentMessages))
	}
	if c.Topics.KeywordThreshold <= 0 {
		errs = append(errs, fmt.Errorf("topics.keyword_threshold must be positive, got %d", c.Topics.KeywordThreshold))
	}
	if c.Topics.MaxExtensions <= 0 {
		errs = append(errs, fmt.Errorf("topics.max_extensions must be positive, got %d", c.Topics.MaxExtensions))
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, fmt.Errorf("chat.temperature must be between 0 and 2, got %f", c.Chat.Temperature))
	}
	if c.Chat.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("chat.max_tokens must be positive, got %d", c.Chat.MaxTokens))
	}
	if c.Chat.RequestTimeout != "" {
		if _, err := time.ParseDuration(c.Chat.RequestTimeout); err != nil {
			errs = append(errs, fmt.Errorf("chat.request_timeout: invalid duration format %q: %w", c.Chat.RequestTimeout, err))
		}
	}
	if c.Chat.SuppressionWindow != "" {
		if _, err := time.ParseDuration(c.Chat.SuppressionWindow); err != nil {
			errs = append(errs, fmt.Errorf("chat.suppression_window: invalid duration format %q: %w", c.Chat.SuppressionWindow, err))
		}
	}

	if c.Providers.Qwen.APIKey != "" && len(c.Providers.Qwen.Endpoints) == 0 {
		errs = append(errs, errors.New("providers.qwen.endpoints must not be empty when an API key is set"))
	}
	if c.Providers.DeepSeek.APIKey != "" && len(c.Providers.DeepSeek.Endpoints) == 0 {
		errs = append(errs, errors.New("providers.deepseek.endpoints must not be empty when an API key is set"))
	}
	if c.Providers.Gemini.APIKey != "" && len(c.Providers.Gemini.Models) == 0 {
		errs = append(errs, errors.New("providers.gemini.models must not be empty when an API key is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
