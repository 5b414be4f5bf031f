package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atelier/internal/config"
	"atelier/internal/durable"
	"atelier/internal/llm"
	"atelier/internal/llm/mockclient"
	"atelier/internal/logging"
	"atelier/internal/pipeline"
	"atelier/internal/provider"
	"atelier/internal/server"
	"atelier/internal/store"
)

// Version is set via -ldflags during build
var Version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "atelier.yaml", "Path to the YAML config file")
		listenAddr  = flag.String("listen", "", "Override the listen address")
		dbPath      = flag.String("db", "", "Override the sqlite database path")
		versionFlag = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Atelier version %s\n", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	if closer := logging.Setup(cfg.LogPath); closer != nil {
		defer closer.Close()
	}
	logger := logging.NewStructuredLogger(nil, "atelier", cfg.LogJSON)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("open database", map[string]interface{}{"path": cfg.DatabasePath, "error": err.Error()})
		os.Exit(1)
	}
	defer st.Close()

	client, err := buildClient(cfg)
	if err != nil {
		logger.Error("configure provider", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	engine := durable.NewEngine(st)
	pipe := pipeline.New(st, client, engine, pipeline.Options{
		Model:          cfg.Model,
		TitleModel:     cfg.TitleModel,
		Temperature:    *cfg.Temperature,
		MaxTurns:       cfg.MaxTurns,
		TitleMaxTokens: cfg.TitleMaxTokens,
		LLMTimeout:     time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		ScrapeTimeout:  time.Duration(cfg.ScrapeTimeoutSeconds) * time.Second,
		SystemPrompt:   cfg.SystemPrompt,
	}, logger.WithComponent("pipeline"))

	srv := server.New(st, pipe, logger.WithComponent("http"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("listening", map[string]interface{}{
		"addr":     cfg.ListenAddr,
		"provider": cfg.Provider,
		"model":    cfg.Model,
	})
	if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("server stopped", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

// buildClient selects the chat completion backend. The mock provider keeps
// the service runnable without credentials.
func buildClient(cfg config.Config) (llm.Client, error) {
	switch cfg.Provider {
	case "mock":
		return mockclient.New(), nil
	case "", "openai":
		apiKey := os.Getenv("ATELIER_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ATELIER_API_KEY is not set (use provider: mock for local testing)")
		}
		timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		return provider.NewClient(cfg.BaseURL, apiKey, timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
