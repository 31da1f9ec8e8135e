// Package config defines the engine's file configuration: one YAML document
// with a section per subsystem, loaded into defaults so a partial file only
// overrides what it names.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a drover process.
type Config struct {
	// LLM configures the model provider and the translator's prompt budget.
	LLM LLMConfig `yaml:"llm" json:"llm"`

	// Browser configures session launch and snapshot bounds.
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Humanize configures typing cadence and pacing.
	Humanize HumanizeConfig `yaml:"humanize" json:"humanize"`

	// Task configures budgets and retry policy.
	Task TaskConfig `yaml:"task" json:"task"`

	// Server configures the network surface.
	Server ServerConfig `yaml:"server" json:"server"`
}

// LLMConfig configures the provider and prompt composition.
type LLMConfig struct {
	// Model is the chat model used for action translation.
	Model string `yaml:"model" json:"model"`

	// BaseURL overrides the API endpoint for OpenAI-compatible gateways.
	// Empty falls back to OPENAI_BASE_URL, then the standard endpoint.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKey authenticates against the provider. Empty falls back to
	// OPENAI_API_KEY.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Temperature is the sampling temperature for translation calls.
	// Translation runs low so the model picks the obvious next step.
	Temperature float64 `yaml:"temperature" json:"temperature"`

	// RequestTimeout bounds one API call at the HTTP client level.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// MaxPromptTokens bounds the composed translation prompt.
	MaxPromptTokens int `yaml:"max_prompt_tokens" json:"max_prompt_tokens"`

	// MaxPromptHTMLBytes caps the page HTML included in a prompt.
	MaxPromptHTMLBytes int `yaml:"max_prompt_html_bytes" json:"max_prompt_html_bytes"`

	// MaxPromptElements caps the interactive elements listed in a prompt.
	MaxPromptElements int `yaml:"max_prompt_elements" json:"max_prompt_elements"`

	// MaxHistory caps the recent action results included in a prompt.
	MaxHistory int `yaml:"max_history" json:"max_history"`
}

// BrowserConfig configures session launch and snapshot bounds.
type BrowserConfig struct {
	// Headless controls whether browsers run without a visible window.
	Headless bool `yaml:"headless" json:"headless"`

	// OperationTimeout is the default deadline for one page operation.
	OperationTimeout time.Duration `yaml:"operation_timeout" json:"operation_timeout"`

	// AllowedURLs and BlockedURLs are glob patterns over navigation
	// targets. A block match always wins; an empty allow list allows
	// everything not blocked.
	AllowedURLs []string `yaml:"allowed_urls" json:"allowed_urls"`
	BlockedURLs []string `yaml:"blocked_urls" json:"blocked_urls"`

	// MaxHTMLBytes caps the sanitized HTML in snapshots.
	MaxHTMLBytes int `yaml:"max_html_bytes" json:"max_html_bytes"`

	// MaxElements caps the interactive elements in snapshots.
	MaxElements int `yaml:"max_elements" json:"max_elements"`

	// MaxExtractBytes caps the text returned by extract actions.
	MaxExtractBytes int `yaml:"max_extract_bytes" json:"max_extract_bytes"`

	// MaxSessions caps concurrently open browser sessions.
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`

	// MaxScreenshots caps each session's screenshot history.
	MaxScreenshots int `yaml:"max_screenshots" json:"max_screenshots"`
}

// HumanizeConfig configures human-like pacing.
type HumanizeConfig struct {
	// TypoProbability is the chance per character of a corrected typo.
	TypoProbability float64 `yaml:"typo_probability" json:"typo_probability"`

	// Keystroke delay bounds.
	MinKeyDelay time.Duration `yaml:"min_key_delay" json:"min_key_delay"`
	MaxKeyDelay time.Duration `yaml:"max_key_delay" json:"max_key_delay"`

	// Pause bounds between consecutive actions.
	MinActionDelay time.Duration `yaml:"min_action_delay" json:"min_action_delay"`
	MaxActionDelay time.Duration `yaml:"max_action_delay" json:"max_action_delay"`

	// Pause bounds after a navigation.
	MinSettleDelay time.Duration `yaml:"min_settle_delay" json:"min_settle_delay"`
	MaxSettleDelay time.Duration `yaml:"max_settle_delay" json:"max_settle_delay"`
}

// TaskConfig configures budgets and retry policy.
type TaskConfig struct {
	// MaxSteps aborts a task after this many executed actions.
	MaxSteps int `yaml:"max_steps" json:"max_steps"`

	// MaxDuration aborts a task after this much wall-clock time.
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`

	// TranslationRetries bounds retries of a failed translation per step.
	TranslationRetries int `yaml:"translation_retries" json:"translation_retries"`

	// ActionRetries bounds retries of a transient action failure.
	ActionRetries int `yaml:"action_retries" json:"action_retries"`

	// RetryBackoff is the initial retry pause; it doubles per attempt.
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`

	// ActionTimeout bounds one browser action attempt.
	ActionTimeout time.Duration `yaml:"action_timeout" json:"action_timeout"`

	// TranslateTimeout bounds one model call.
	TranslateTimeout time.Duration `yaml:"translate_timeout" json:"translate_timeout"`

	// StopOnActionError fails a task on the first action failure instead
	// of surfacing the failure to the next translation.
	StopOnActionError bool `yaml:"stop_on_action_error" json:"stop_on_action_error"`

	// CaptureScreenshots takes a screenshot after each completed action.
	CaptureScreenshots bool `yaml:"capture_screenshots" json:"capture_screenshots"`
}

// ServerConfig configures the HTTP and websocket surface.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" json:"addr"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:              "gpt-4o",
			Temperature:        0.1,
			RequestTimeout:     90 * time.Second,
			MaxPromptTokens:    6000,
			MaxPromptHTMLBytes: 20000,
			MaxPromptElements:  40,
			MaxHistory:         10,
		},
		Browser: BrowserConfig{
			Headless:         true,
			OperationTimeout: 30 * time.Second,
			MaxHTMLBytes:     40000,
			MaxElements:      80,
			MaxExtractBytes:  10000,
			MaxSessions:      5,
			MaxScreenshots:   20,
		},
		Humanize: HumanizeConfig{
			TypoProbability: 0.08,
			MinKeyDelay:     50 * time.Millisecond,
			MaxKeyDelay:     200 * time.Millisecond,
			MinActionDelay:  300 * time.Millisecond,
			MaxActionDelay:  1500 * time.Millisecond,
			MinSettleDelay:  1 * time.Second,
			MaxSettleDelay:  3 * time.Second,
		},
		Task: TaskConfig{
			MaxSteps:           25,
			MaxDuration:        5 * time.Minute,
			TranslationRetries: 2,
			ActionRetries:      2,
			RetryBackoff:       500 * time.Millisecond,
			ActionTimeout:      60 * time.Second,
			TranslateTimeout:   60 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8940",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Validate checks the configuration and fills empty fields with defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()

	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %g", c.LLM.Temperature)
	}
	if c.LLM.RequestTimeout < 0 {
		return fmt.Errorf("llm.request_timeout cannot be negative")
	}
	if c.LLM.MaxPromptTokens < 0 {
		return fmt.Errorf("llm.max_prompt_tokens cannot be negative")
	}

	if c.Browser.OperationTimeout < 0 {
		return fmt.Errorf("browser.operation_timeout cannot be negative")
	}
	if c.Browser.MaxSessions < 0 {
		return fmt.Errorf("browser.max_sessions cannot be negative")
	}

	if c.Humanize.TypoProbability < 0 || c.Humanize.TypoProbability > 1 {
		return fmt.Errorf("humanize.typo_probability must be in [0, 1], got %g", c.Humanize.TypoProbability)
	}
	if c.Humanize.MinKeyDelay < 0 || c.Humanize.MinActionDelay < 0 || c.Humanize.MinSettleDelay < 0 {
		return fmt.Errorf("humanize delays cannot be negative")
	}
	if c.Humanize.MaxKeyDelay != 0 && c.Humanize.MaxKeyDelay < c.Humanize.MinKeyDelay {
		return fmt.Errorf("humanize.max_key_delay is below min_key_delay")
	}
	if c.Humanize.MaxActionDelay != 0 && c.Humanize.MaxActionDelay < c.Humanize.MinActionDelay {
		return fmt.Errorf("humanize.max_action_delay is below min_action_delay")
	}
	if c.Humanize.MaxSettleDelay != 0 && c.Humanize.MaxSettleDelay < c.Humanize.MinSettleDelay {
		return fmt.Errorf("humanize.max_settle_delay is below min_settle_delay")
	}

	if c.Task.MaxSteps < 0 {
		return fmt.Errorf("task.max_steps cannot be negative")
	}
	if c.Task.MaxDuration < 0 {
		return fmt.Errorf("task.max_duration cannot be negative")
	}
	if c.Task.TranslationRetries < 0 || c.Task.ActionRetries < 0 {
		return fmt.Errorf("task retry counts cannot be negative")
	}

	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	return nil
}

// LoadFile reads a YAML configuration file into the defaults, so the file
// only needs to name the fields it changes.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
