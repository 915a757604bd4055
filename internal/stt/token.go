package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/speakcoach/live-coach/internal/resilience"
)

// TokenProvider supplies short-lived credentials for the recognition service
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// HTTPTokenProvider fetches temporary tokens from an HTTP endpoint. The
// endpoint is guarded by a circuit breaker so a dead auth backend fails
// fast instead of stalling every reconnection cycle.
type HTTPTokenProvider struct {
	url     string
	apiKey  string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// tokenResponse is the expected shape of the token endpoint's reply
type tokenResponse struct {
	Token string `json:"token"`
}

// NewHTTPTokenProvider creates a token provider for the given endpoint
func NewHTTPTokenProvider(url, apiKey string, breaker *resilience.CircuitBreaker) *HTTPTokenProvider {
	return &HTTPTokenProvider{
		url:     url,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: breaker,
	}
}

// Token requests a fresh short-lived credential
func (p *HTTPTokenProvider) Token(ctx context.Context) (string, error) {
	var token string

	fetch := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, nil)
		if err != nil {
			return fmt.Errorf("failed to build token request: %w", err)
		}
		req.Header.Set("Authorization", p.apiKey)

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("token request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
		}

		var tr tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return fmt.Errorf("failed to decode token response: %w", err)
		}
		if tr.Token == "" {
			return fmt.Errorf("token endpoint returned an empty token")
		}

		token = tr.Token
		return nil
	}

	var err error
	if p.breaker != nil {
		err = p.breaker.Call(fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// StaticTokenProvider returns a fixed token. Used by tests and by
// deployments where the credential is provisioned out of band.
type StaticTokenProvider struct {
	Value string
}

// Token returns the fixed token
func (p StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.Value == "" {
		return "", fmt.Errorf("no token configured")
	}
	return p.Value, nil
}
