package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lumonmind/lumond/internal/assistant"
	"github.com/lumonmind/lumond/internal/audit"
	"github.com/lumonmind/lumond/internal/config"
	"github.com/lumonmind/lumond/internal/extension"
	"github.com/lumonmind/lumond/internal/orchestrator"
	"github.com/lumonmind/lumond/internal/prompt"
	"github.com/lumonmind/lumond/internal/provider"
	"github.com/lumonmind/lumond/internal/session"
	"github.com/lumonmind/lumond/internal/topic"
	"github.com/lumonmind/lumond/internal/web"
)

var Version = "dev"

var buildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "lumond",
		Name:      "build_info",
		Help:      "Build information with version and Go runtime details",
	},
	[]string{"version", "go_version"},
)

func init() {
	buildInfo.WithLabelValues(Version, runtime.Version()).Set(1)
}

func runHealthcheck(configPath string) int {
	cfg, err := config.Load(configPath)
	port := "8080"
	if err == nil && cfg.Server.ListenPort != "" {
		port = cfg.Server.ListenPort
	} else if envPort := os.Getenv("LUMOND_SERVER_PORT"); envPort != "" {
		port = envPort
	}

	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Healthcheck returned status: %d\n", resp.StatusCode)
		return 1
	}
	return 0
}

func main() {
	// JSON logging early, reconfigured with the proper level once config
	// is loaded.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found or failed to load, relying on environment variables")
	}

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	healthcheck := flag.Bool("healthcheck", false, "run healthcheck and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("lumond", Version)
		os.Exit(0)
	}

	if *healthcheck {
		os.Exit(runHealthcheck(*configPath))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		slog.Warn("unknown log level, defaulting to info", "level", cfg.Log.Level)
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger.Info("Config loaded successfully")

	systemPrompt, err := prompt.Load(cfg.Prompt.Path)
	if err != nil {
		logger.Error("failed to load system prompt", "error", err)
		os.Exit(1)
	}
	logger.Info("System prompt loaded", "length", len(systemPrompt))

	detector, err := topic.NewDetector(logger, cfg.Topics.RecentMessages, cfg.Topics.KeywordThreshold)
	if err != nil {
		logger.Error("failed to build topic detector", "error", err)
		os.Exit(1)
	}
	loader := extension.NewLoader(logger, cfg.Extensions.Dir)

	auditStore, err := audit.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		logger.Error("failed to create audit store", "error", err)
		os.Exit(1)
	}
	defer auditStore.Close()

	if err := auditStore.Init(); err != nil {
		logger.Error("failed to initialize audit store", "error", err)
		os.Exit(1)
	}
	logger.Info("Audit database initialized successfully.")

	timeout := cfg.Chat.GetRequestTimeout()
	adapters := []provider.Adapter{
		provider.NewQwenAdapter(logger, cfg.Providers.Qwen, timeout),
		provider.NewDeepSeekAdapter(logger, cfg.Providers.DeepSeek, timeout),
		provider.NewGeminiAdapter(logger, cfg.Providers.Gemini, timeout),
	}
	configured := 0
	for _, a := range adapters {
		if a.Configured() {
			configured++
		}
	}
	if configured == 0 {
		logger.Warn("No provider API keys configured; chat turns will answer with the apology message")
	}

	responder := orchestrator.New(logger, cfg.Chat, cfg.Topics, detector, loader, adapters...)
	store := session.NewMemoryStore()
	svc := assistant.New(logger, store, responder, auditStore, systemPrompt)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := web.NewServer(logger, cfg, svc, store, adapters, loader, detector.Names(), len(systemPrompt))

	logger.Info("Starting lumond", "version", Version)
	if err := server.Start(ctx); err != nil {
		logger.Error("web server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
