package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TOKEN_URL", "https://auth.example/token")
	t.Setenv("TOKEN_API_KEY", "test-key")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.RecognizerSampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", cfg.RecognizerSampleRate)
	}
	if cfg.FrameDuration != 100*time.Millisecond {
		t.Errorf("Expected default frame duration 100ms, got %v", cfg.FrameDuration)
	}
	if cfg.TokenMaxAttempts != 3 {
		t.Errorf("Expected default token attempts 3, got %d", cfg.TokenMaxAttempts)
	}
	if cfg.ReconnectMaxAttempts != 8 {
		t.Errorf("Expected default reconnect attempts 8, got %d", cfg.ReconnectMaxAttempts)
	}
	if cfg.FeedbackInterval != 10*time.Second {
		t.Errorf("Expected default feedback interval 10s, got %v", cfg.FeedbackInterval)
	}
	if cfg.FeedbackWindow != 30*time.Second {
		t.Errorf("Expected default feedback window 30s, got %v", cfg.FeedbackWindow)
	}
	if cfg.WarningDebounce != 3*time.Second {
		t.Errorf("Expected default warning debounce 3s, got %v", cfg.WarningDebounce)
	}
	if cfg.DeviceIndex != -1 {
		t.Errorf("Expected default device index -1, got %d", cfg.DeviceIndex)
	}
	if cfg.ReportDir != "reports" {
		t.Errorf("Expected default report dir 'reports', got %s", cfg.ReportDir)
	}
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("TOKEN_URL", "")
	t.Setenv("TOKEN_API_KEY", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RECOGNIZER_SAMPLE_RATE", "8000")
	t.Setenv("FRAME_DURATION", "50ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}

	if cfg.RecognizerSampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", cfg.RecognizerSampleRate)
	}
	if cfg.FrameDuration != 50*time.Millisecond {
		t.Errorf("Expected frame duration 50ms, got %v", cfg.FrameDuration)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			TokenURL:             "https://auth.example/token",
			TokenAPIKey:          "key",
			RecognizerSampleRate: 16000,
			FrameDuration:        100 * time.Millisecond,
			ReconnectMaxAttempts: 8,
		}
	}

	if err := base().Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token url", func(c *Config) { c.TokenURL = "" }},
		{"missing api key", func(c *Config) { c.TokenAPIKey = "" }},
		{"zero sample rate", func(c *Config) { c.RecognizerSampleRate = 0 }},
		{"zero frame duration", func(c *Config) { c.FrameDuration = 0 }},
		{"zero reconnect attempts", func(c *Config) { c.ReconnectMaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestFrameSamples(t *testing.T) {
	cfg := &Config{RecognizerSampleRate: 16000, FrameDuration: 100 * time.Millisecond}
	if got := cfg.FrameSamples(); got != 1600 {
		t.Errorf("Expected 1600 samples per frame, got %d", got)
	}
}

func TestReconnectConfig(t *testing.T) {
	cfg := &Config{
		ReconnectMaxAttempts:    5,
		ReconnectInitialBackoff: time.Second,
		ReconnectMaxBackoff:     30 * time.Second,
	}

	rc := cfg.ReconnectConfig()
	if rc.MaxAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", rc.MaxAttempts)
	}
	if rc.Backoff != time.Second {
		t.Errorf("Expected 1s initial backoff, got %v", rc.Backoff)
	}
	if rc.Multiplier != 2.0 {
		t.Errorf("Expected multiplier 2.0, got %f", rc.Multiplier)
	}
	if rc.MaxBackoff != 30*time.Second {
		t.Errorf("Expected 30s max backoff, got %v", rc.MaxBackoff)
	}
}
