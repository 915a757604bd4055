package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speakcoach/live-coach/internal/audio"
	"github.com/speakcoach/live-coach/internal/config"
	"github.com/speakcoach/live-coach/internal/feedback"
	"github.com/speakcoach/live-coach/internal/observability"
	"github.com/speakcoach/live-coach/internal/resilience"
	"github.com/speakcoach/live-coach/internal/session"
	"github.com/speakcoach/live-coach/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("recognizer_url", cfg.RecognizerURL).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Live Coach starting")

	// Token fetches are guarded so a dead auth endpoint fails fast
	breaker := resilience.NewCircuitBreaker("token-provider",
		cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetTimeout)
	tokens := stt.NewHTTPTokenProvider(cfg.TokenURL, cfg.TokenAPIKey, breaker)

	manager := session.NewManager(cfg,
		session.NewDefaultLinkFactory(cfg, tokens),
		func() (audio.FrameSource, error) {
			return audio.NewDeviceSource(cfg.DeviceIndex, cfg.RecognizerSampleRate, cfg.FrameSamples()), nil
		},
		session.Callbacks{
			OnTranscript: func(text string) {
				logger.Info().Str("text", text).Msg("Transcript")
			},
			OnFeedback: func(items []feedback.Item) {
				for _, item := range items {
					logger.Info().
						Str("type", item.Type).
						Str("level", item.Level).
						Str("message", item.Message).
						Str("suggestion", item.Suggestion).
						Msg("Coaching feedback")
				}
			},
			OnWarning: func(metric string, message *string) {
				if message == nil {
					logger.Info().Str("metric", metric).Msg("Warning cleared")
					return
				}
				logger.Warn().Str("metric", metric).Str("message", *message).Msg("Live warning")
			},
			OnConnectionChange: func(connected bool) {
				logger.Info().Bool("connected", connected).Msg("Connection state changed")
			},
			OnNotice: func(message string) {
				logger.Info().Str("message", message).Msg("Coaching notice")
			},
		})

	// Create HTTP server for health and metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := manager.Start(startCtx, "live"); err != nil {
		startCancel()
		logger.Error().Err(err).Msg("Failed to start coaching session")
		os.Exit(1)
	}
	startCancel()

	// Run until interrupted
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	reportPath, err := manager.Stop(stopCtx)
	if err != nil {
		logger.Error().Err(err).Msg("Session stop reported an error")
	}
	if reportPath != "" {
		logger.Info().Str("report", reportPath).Msg("Session report written")
		fmt.Println(reportPath)
	}

	if err := server.Shutdown(stopCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Exited gracefully")
}
