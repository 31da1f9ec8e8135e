package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 0.1, cfg.LLM.Temperature)
	assert.Equal(t, 6000, cfg.LLM.MaxPromptTokens)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 0.08, cfg.Humanize.TypoProbability)
	assert.Equal(t, 25, cfg.Task.MaxSteps)
	assert.Equal(t, 5*time.Minute, cfg.Task.MaxDuration)
	assert.Equal(t, ":8940", cfg.Server.Addr)

	require.NoError(t, cfg.Validate())
}

func TestValidateFillsEmptyFields(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, ":8940", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestValidateRejectsNonsense(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.LLM.Temperature = 3.5 },
			wantErr: "llm.temperature",
		},
		{
			name:    "negative request timeout",
			mutate:  func(c *Config) { c.LLM.RequestTimeout = -time.Second },
			wantErr: "llm.request_timeout",
		},
		{
			name:    "typo probability above one",
			mutate:  func(c *Config) { c.Humanize.TypoProbability = 1.2 },
			wantErr: "humanize.typo_probability",
		},
		{
			name:    "key delay bounds inverted",
			mutate:  func(c *Config) { c.Humanize.MinKeyDelay = time.Second; c.Humanize.MaxKeyDelay = time.Millisecond },
			wantErr: "max_key_delay",
		},
		{
			name:    "negative step budget",
			mutate:  func(c *Config) { c.Task.MaxSteps = -1 },
			wantErr: "task.max_steps",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Task.TranslationRetries = -1 },
			wantErr: "retry counts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFileMergesIntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drover.yaml")
	doc := `
llm:
  model: gpt-4o-mini
  temperature: 0
task:
  max_steps: 5
  max_duration: 2m
browser:
  headless: false
  blocked_urls:
    - "*://*.internal.example.com/*"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// Named fields are overridden, everything else keeps its default.
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Zero(t, cfg.LLM.Temperature)
	assert.Equal(t, 5, cfg.Task.MaxSteps)
	assert.Equal(t, 2*time.Minute, cfg.Task.MaxDuration)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"*://*.internal.example.com/*"}, cfg.Browser.BlockedURLs)

	assert.Equal(t, 6000, cfg.LLM.MaxPromptTokens)
	assert.Equal(t, 2, cfg.Task.TranslationRetries)
	assert.Equal(t, ":8940", cfg.Server.Addr)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFileMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFileRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	doc := "humanize:\n  typo_probability: 7\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
