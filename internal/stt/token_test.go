package stt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/speakcoach/live-coach/internal/resilience"
)

func TestHTTPTokenProvider_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "secret-key" {
			t.Errorf("Expected Authorization header, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"token":"short-lived-token"}`))
	}))
	defer server.Close()

	provider := NewHTTPTokenProvider(server.URL, "secret-key", nil)

	token, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if token != "short-lived-token" {
		t.Errorf("Expected token 'short-lived-token', got %q", token)
	}
}

func TestHTTPTokenProvider_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	provider := NewHTTPTokenProvider(server.URL, "secret-key", nil)

	if _, err := provider.Token(context.Background()); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestHTTPTokenProvider_EmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":""}`))
	}))
	defer server.Close()

	provider := NewHTTPTokenProvider(server.URL, "secret-key", nil)

	if _, err := provider.Token(context.Background()); err == nil {
		t.Error("Expected error for empty token")
	}
}

func TestHTTPTokenProvider_CircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := resilience.NewCircuitBreaker("token-provider", 2, time.Minute)
	provider := NewHTTPTokenProvider(server.URL, "secret-key", breaker)

	for i := 0; i < 2; i++ {
		provider.Token(context.Background())
	}

	_, err := provider.Token(context.Background())
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen after repeated failures, got %v", err)
	}
}

func TestStaticTokenProvider(t *testing.T) {
	provider := StaticTokenProvider{Value: "fixed"}
	token, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if token != "fixed" {
		t.Errorf("Expected 'fixed', got %q", token)
	}

	empty := StaticTokenProvider{}
	if _, err := empty.Token(context.Background()); err == nil {
		t.Error("Expected error for empty static token")
	}
}
