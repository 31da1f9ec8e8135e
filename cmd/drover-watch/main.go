// Package main provides drover-watch, which runs one browser automation task
// and renders its event stream in an interactive terminal view.
package main

import (
	"context"
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
	"github.com/entrhq/drover/pkg/tui"
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
	Timeout     time.Duration
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("drover-watch v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cliConfig); err != nil && !errors.Is(err, context.Canceled) {
		cancel()
		log.Printf("drover-watch failed: %v", err)
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
	flag.StringVar(&cliConfig.Task, "task", "", "Task instruction to run and watch (required)")
	flag.DurationVar(&cliConfig.Timeout, "timeout", 0, "Per-task wall-clock budget (overrides the config file)")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "drover-watch - watch a browser automation task live\n\n")
		fmt.Fprintf(os.Stderr, "Usage: drover-watch -task \"...\" [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Watch a task against the default headless browser\n")
		fmt.Fprintf(os.Stderr, "  drover-watch -task \"Search for cricket on Google\"\n\n")
		fmt.Fprintf(os.Stderr, "  # Watch with a visible browser window\n")
		fmt.Fprintf(os.Stderr, "  drover-watch -config headful.yaml -task \"Check the order status\"\n\n")
	}

	flag.Parse()
	return cliConfig
}

func run(ctx context.Context, cliConfig *CLIConfig) error {
	if cliConfig.Task == "" {
		flag.Usage()
		return errors.New("-task is required")
	}

	cfg, err := loadConfig(cliConfig)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer shutdownEngine(eng)

	handle, err := eng.StartTask(ctx, cliConfig.Task)
	if err != nil {
		return err
	}

	return tui.NewWatcher(handle, cliConfig.Task).Run(ctx)
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
	if cliConfig.Timeout > 0 {
		cfg.Task.MaxDuration = cliConfig.Timeout
	}
	return cfg, nil
}

func shutdownEngine(eng *engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := eng.Shutdown(ctx); err != nil {
		log.Printf("engine shutdown: %v", err)
	}
}
