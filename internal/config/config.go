package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/speakcoach/live-coach/internal/resilience"
)

// Config holds all configuration for the live coaching service
type Config struct {
	// Metrics/health HTTP server
	Port string `envconfig:"PORT" default:"8080"`

	// Recognition service configuration
	RecognizerURL        string `envconfig:"RECOGNIZER_URL" default:"wss://api.recognizer.example/v2/realtime/ws"`
	RecognizerSampleRate int    `envconfig:"RECOGNIZER_SAMPLE_RATE" default:"16000"` // Hz, PCM16 mono

	// Token provider (short-lived credentials for the recognizer)
	TokenURL         string        `envconfig:"TOKEN_URL" required:"true"`
	TokenAPIKey      string        `envconfig:"TOKEN_API_KEY" required:"true"`
	TokenMaxAttempts int           `envconfig:"TOKEN_MAX_ATTEMPTS" default:"3"`
	TokenRetryDelay  time.Duration `envconfig:"TOKEN_RETRY_DELAY" default:"500ms"`

	// Audio capture configuration
	FrameDuration time.Duration `envconfig:"FRAME_DURATION" default:"100ms"` // per-frame audio length
	DeviceIndex   int           `envconfig:"DEVICE_INDEX" default:"-1"`      // -1 selects the default input device

	// Link resilience configuration
	ReconnectMaxAttempts       int           `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"8"`
	ReconnectInitialBackoff    time.Duration `envconfig:"RECONNECT_INITIAL_BACKOFF" default:"1s"`
	ReconnectMaxBackoff        time.Duration `envconfig:"RECONNECT_MAX_BACKOFF" default:"30s"`
	CircuitBreakerMaxFailures  int           `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout time.Duration `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30s"`

	// Coaching configuration
	FeedbackInterval time.Duration `envconfig:"FEEDBACK_INTERVAL" default:"10s"` // coaching tick cadence
	FeedbackWindow   time.Duration `envconfig:"FEEDBACK_WINDOW" default:"30s"`   // final-transcript lookback per tick
	WarningDebounce  time.Duration `envconfig:"WARNING_DEBOUNCE" default:"3s"`   // sustained breach before a warning
	StopGracePeriod  time.Duration `envconfig:"STOP_GRACE_PERIOD" default:"2s"`  // wait for trailing finals on stop

	// Report output
	ReportDir string `envconfig:"REPORT_DIR" default:"reports"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("TOKEN_URL is required")
	}
	if c.TokenAPIKey == "" {
		return fmt.Errorf("TOKEN_API_KEY is required")
	}
	if c.RecognizerSampleRate <= 0 {
		return fmt.Errorf("RECOGNIZER_SAMPLE_RATE must be positive, got %d", c.RecognizerSampleRate)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("FRAME_DURATION must be positive, got %v", c.FrameDuration)
	}
	if c.ReconnectMaxAttempts < 1 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be at least 1, got %d", c.ReconnectMaxAttempts)
	}
	return nil
}

// FrameSamples returns the number of PCM16 samples in one audio frame
func (c *Config) FrameSamples() int {
	return int(float64(c.RecognizerSampleRate) * c.FrameDuration.Seconds())
}

// ReconnectConfig returns the link reconnection policy
func (c *Config) ReconnectConfig() *resilience.ReconnectConfig {
	return &resilience.ReconnectConfig{
		MaxAttempts: c.ReconnectMaxAttempts,
		Backoff:     c.ReconnectInitialBackoff,
		Multiplier:  2.0,
		MaxBackoff:  c.ReconnectMaxBackoff,
	}
}
