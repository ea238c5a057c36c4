package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	var seenID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = requestIDFromContext(r.Context())
	})
	handler := requestIDMiddleware()(inner)

	t.Run("generates an ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get("X-Request-ID")
		if id == "" {
			t.Fatal("X-Request-ID header missing")
		}
		if seenID != id {
			t.Errorf("context ID %q != header ID %q", seenID, id)
		}
	})

	t.Run("honors inbound ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "trace-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "trace-123" {
			t.Errorf("X-Request-ID = %q, want trace-123", got)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})
	handler := recoveryMiddleware(testLogger())(panicking)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "internal server error" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := corsMiddleware([]string{"http://localhost:4200"})(inner)

	t.Run("allowed origin gets headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("Origin", "http://localhost:4200")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
		req.Header.Set("Origin", "http://localhost:4200")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
			t.Error("preflight missing Allow-Methods")
		}
	})
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		xRealIP    string
		xff        string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.10:52341",
			want:       "192.0.2.10",
		},
		{
			name:       "proxy headers ignored when untrusted",
			remoteAddr: "192.0.2.10:52341",
			xRealIP:    "203.0.113.5",
			trustProxy: false,
			want:       "192.0.2.10",
		},
		{
			name:       "x-real-ip wins when trusted",
			remoteAddr: "10.0.0.1:80",
			xRealIP:    "203.0.113.5",
			trustProxy: true,
			want:       "203.0.113.5",
		},
		{
			name:       "first x-forwarded-for entry",
			remoteAddr: "10.0.0.1:80",
			xff:        "203.0.113.9, 10.0.0.2, 10.0.0.3",
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "invalid header values fall back to remote addr",
			remoteAddr: "10.0.0.1:80",
			xRealIP:    "not-an-ip",
			xff:        "also-not-an-ip",
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1, 2)

	// Burst of 2, then empty.
	if !rl.allow("192.0.2.1") {
		t.Error("first request should pass")
	}
	if !rl.allow("192.0.2.1") {
		t.Error("second request should pass (burst)")
	}
	if rl.allow("192.0.2.1") {
		t.Error("third request should be limited")
	}

	// Separate IPs get separate buckets.
	if !rl.allow("192.0.2.2") {
		t.Error("different IP should have its own bucket")
	}
}

func TestRateLimiterSweepsStaleVisitors(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(1, 1)
	rl.allow("192.0.2.10")

	// Age the entry past the idle threshold and open the sweep window.
	rl.visitors["192.0.2.10"].lastSeen = time.Now().Add(-visitorMaxIdle - time.Minute)
	rl.lastSweep = time.Now().Add(-visitorSweepInterval - time.Minute)

	if !rl.allow("192.0.2.11") {
		t.Error("fresh IP should be allowed")
	}
	if _, ok := rl.visitors["192.0.2.10"]; ok {
		t.Error("stale visitor should have been swept")
	}
}
