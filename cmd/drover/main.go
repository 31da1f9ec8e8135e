// Package main provides the drover command. It runs one browser automation
// task headless and prints its events as NDJSON, or serves the HTTP API with
// the embedded session viewer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/drover/pkg/config"
	"github.com/entrhq/drover/pkg/engine"
	"github.com/entrhq/drover/pkg/server"
	"github.com/entrhq/drover/pkg/types"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 15 * time.Second
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	ConfigFile  string
	Task        string
	Serve       bool
	Addr        string
	Timeout     time.Duration
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("drover v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		cancel()
	}()

	if err := run(ctx, cliConfig); err != nil {
		cancel()
		log.Printf("drover failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags.
func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.APIKey, "api-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key")
	flag.StringVar(&cliConfig.BaseURL, "base-url", os.Getenv("OPENAI_BASE_URL"), "OpenAI API base URL")
	flag.StringVar(&cliConfig.Model, "model", "", "Model to use (overrides the config file)")
	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cliConfig.Task, "task", "", "Task instruction to run headless")
	flag.BoolVar(&cliConfig.Serve, "serve", false, "Run the HTTP server instead of a one-shot task")
	flag.StringVar(&cliConfig.Addr, "addr", "", "Server listen address (overrides the config file)")
	flag.DurationVar(&cliConfig.Timeout, "timeout", 0, "Per-task wall-clock budget (overrides the config file)")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "drover - LLM-driven browser automation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: drover [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run one task and stream its events as NDJSON\n")
		fmt.Fprintf(os.Stderr, "  drover -task \"Search for cricket on Google\"\n\n")
		fmt.Fprintf(os.Stderr, "  # Serve the HTTP API and session viewer\n")
		fmt.Fprintf(os.Stderr, "  drover -serve -addr :8940\n\n")
		fmt.Fprintf(os.Stderr, "  # Run with a config file\n")
		fmt.Fprintf(os.Stderr, "  drover -config drover.yaml -task \"Check the order status\"\n\n")
	}

	flag.Parse()
	return cliConfig
}

func run(ctx context.Context, cliConfig *CLIConfig) error {
	cfg, err := loadConfig(cliConfig)
	if err != nil {
		return err
	}

	switch {
	case cliConfig.Serve:
		return runServer(ctx, cfg)
	case cliConfig.Task != "":
		return runTask(ctx, cfg, cliConfig.Task)
	default:
		flag.Usage()
		return errors.New("either -task or -serve is required")
	}
}

// loadConfig reads the config file when one is given and applies CLI
// overrides on top.
func loadConfig(cliConfig *CLIConfig) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cliConfig.ConfigFile != "" {
		loaded, err := config.LoadFile(cliConfig.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cliConfig.APIKey != "" {
		cfg.LLM.APIKey = cliConfig.APIKey
	}
	if cliConfig.BaseURL != "" {
		cfg.LLM.BaseURL = cliConfig.BaseURL
	}
	if cliConfig.Model != "" {
		cfg.LLM.Model = cliConfig.Model
	}
	if cliConfig.Addr != "" {
		cfg.Server.Addr = cliConfig.Addr
	}
	if cliConfig.Timeout > 0 {
		cfg.Task.MaxDuration = cliConfig.Timeout
	}
	return cfg, nil
}

// runTask executes one instruction and writes each event to stdout as a JSON
// line. The exit status reflects the task's terminal state.
func runTask(ctx context.Context, cfg *config.Config, instruction string) error {
	eng, err := engine.New(engine.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer shutdownEngine(eng)

	handle, err := eng.StartTask(ctx, instruction)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	for event := range handle.Events() {
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}

	result := handle.Result()
	if result == nil {
		return errors.New("task finished without a result")
	}
	if result.Status != types.TaskStatusCompleted {
		return fmt.Errorf("task %s: %s", result.Status, result.Reason)
	}
	return nil
}

// runServer serves the HTTP API until ctx is cancelled, then stops the HTTP
// surface before shutting the engine down behind it.
func runServer(ctx context.Context, cfg *config.Config) error {
	metrics, err := server.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}
	eng, err := engine.New(engine.WithConfig(cfg), engine.WithReporter(metrics))
	if err != nil {
		return err
	}
	defer shutdownEngine(eng)

	srv := server.New(eng, cfg.Server)
	log.Printf("serving on %s", cfg.Server.Addr)
	return srv.Run(ctx)
}

func shutdownEngine(eng *engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := eng.Shutdown(ctx); err != nil {
		log.Printf("engine shutdown: %v", err)
	}
}
