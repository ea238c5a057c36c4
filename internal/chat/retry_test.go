package chat

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialInterval != 500*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 500ms", cfg.InitialInterval)
	}
	if cfg.MaxInterval != 10*time.Second {
		t.Errorf("MaxInterval = %v, want 10s", cfg.MaxInterval)
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		// Rate limiting
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota", errors.New("quota exceeded for model"), true},
		{"status 429", errors.New("googleapi: Error 429: Resource exhausted"), true},

		// Transient server errors
		{"status 500", errors.New("unexpected status 500"), true},
		{"status 503", errors.New("503 Service Unavailable"), true},
		{"unavailable", errors.New("model temporarily UNAVAILABLE"), true},

		// Network errors
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"timeout", errors.New("dial tcp: i/o timeout"), true},

		// Wrapped errors still match
		{"wrapped 429", fmt.Errorf("generate: %w", errors.New("429 too many requests")), true},

		// Non-retryable
		{"nil", nil, false},
		{"validation", errors.New("invalid argument: unknown field"), false},
		{"auth", errors.New("API key not valid"), false},
		{"not found", errors.New("model not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       string
		substrs []string
		want    bool
	}{
		{"exact match", "rate limit", []string{"rate limit"}, true},
		{"case insensitive", "Rate Limit Exceeded", []string{"rate limit"}, true},
		{"substring match", "error: connection reset by peer", []string{"connection reset"}, true},
		{"second substring matches", "quota exceeded", []string{"rate limit", "quota"}, true},
		{"no match", "invalid argument", []string{"rate limit", "quota"}, false},
		{"empty substrings", "anything", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := containsAny(tt.s, tt.substrs...); got != tt.want {
				t.Errorf("containsAny(%q, %v) = %v, want %v", tt.s, tt.substrs, got, tt.want)
			}
		})
	}
}
