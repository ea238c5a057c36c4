package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/medevs/hr-agent/internal/chat"
	"github.com/medevs/hr-agent/internal/thread"
)

// mockRunner implements Runner for testing.
type mockRunner struct {
	response *chat.Response
	runErr   error

	lastThreadID uuid.UUID
	lastInput    string
	callCount    int
}

func (m *mockRunner) Run(ctx context.Context, threadID uuid.UUID, input string) (*chat.Response, error) {
	m.callCount++
	m.lastThreadID = threadID
	m.lastInput = input
	if m.runErr != nil {
		return nil, m.runErr
	}
	if m.response != nil {
		return m.response, nil
	}
	return &chat.Response{FinalText: "mock answer"}, nil
}

// mockThreadStore implements ThreadStore for testing.
type mockThreadStore struct {
	createID  uuid.UUID
	createErr error
	exists    bool
	existsErr error
}

func (m *mockThreadStore) Create(ctx context.Context) (uuid.UUID, error) {
	if m.createErr != nil {
		return uuid.Nil, m.createErr
	}
	if m.createID == uuid.Nil {
		m.createID = uuid.New()
	}
	return m.createID, nil
}

func (m *mockThreadStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.exists, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, runner *mockRunner, threads *mockThreadStore, opts ...func(*ServerConfig)) http.Handler {
	t.Helper()

	cfg := ServerConfig{
		Logger:  testLogger(),
		Runner:  runner,
		Threads: threads,
		// High enough that tests never trip the limiter unless they mean to.
		RateLimit: 1000,
		RateBurst: 1000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv.Handler()
}

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("response is not JSON: %v (body %q)", err, rec.Body.String())
	}
	return m
}

func TestNewServer_RequiredConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(ServerConfig{Threads: &mockThreadStore{}}); err == nil {
		t.Error("NewServer without runner should fail")
	}
	if _, err := NewServer(ServerConfig{Runner: &mockRunner{}}); err == nil {
		t.Error("NewServer without thread store should fail")
	}
}

func TestNewChat(t *testing.T) {
	t.Parallel()

	threadID := uuid.New()
	runner := &mockRunner{response: &chat.Response{FinalText: "Jane Doe works in R&D."}}
	threads := &mockThreadStore{createID: threadID}
	handler := newTestServer(t, runner, threads)

	rec := postJSON(handler, "/chat", `{"message": "Who is Jane Doe?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["threadId"] != threadID.String() {
		t.Errorf("threadId = %v, want %s", body["threadId"], threadID)
	}
	if body["response"] != "Jane Doe works in R&D." {
		t.Errorf("response = %v", body["response"])
	}
	if runner.lastThreadID != threadID {
		t.Errorf("runner got thread %s, want %s", runner.lastThreadID, threadID)
	}
	if runner.lastInput != "Who is Jane Doe?" {
		t.Errorf("runner got input %q", runner.lastInput)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestContinueChat(t *testing.T) {
	t.Parallel()

	threadID := uuid.New()
	runner := &mockRunner{response: &chat.Response{FinalText: "continued"}}
	threads := &mockThreadStore{exists: true}
	handler := newTestServer(t, runner, threads)

	rec := postJSON(handler, "/chat/"+threadID.String(), `{"message": "And who else?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["response"] != "continued" {
		t.Errorf("response = %v", body["response"])
	}
	if _, hasThreadID := body["threadId"]; hasThreadID {
		t.Error("continue response must not include threadId")
	}
	if runner.lastThreadID != threadID {
		t.Errorf("runner got thread %s, want %s", runner.lastThreadID, threadID)
	}
}

func TestContinueChat_InvalidThreadID(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, &mockRunner{}, &mockThreadStore{exists: true})

	rec := postJSON(handler, "/chat/not-a-uuid", `{"message": "hello"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "invalid thread id" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestContinueChat_UnknownThread(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{}
	handler := newTestServer(t, runner, &mockThreadStore{exists: false})

	rec := postJSON(handler, "/chat/"+uuid.NewString(), `{"message": "hello"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "thread not found" {
		t.Errorf("error = %v", body["error"])
	}
	if runner.callCount != 0 {
		t.Errorf("runner called %d times, want 0", runner.callCount)
	}
}

func TestChat_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message": ""}`},
		{"whitespace message", `{"message": "   "}`},
		{"missing message", `{}`},
		{"unknown field", `{"message": "hi", "extra": true}`},
		{"malformed JSON", `{"message": `},
		{"not JSON", `hello`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &mockRunner{}
			handler := newTestServer(t, runner, &mockThreadStore{})

			rec := postJSON(handler, "/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %q)", rec.Code, rec.Body.String())
			}
			if body := decodeBody(t, rec); body["error"] == nil {
				t.Error("error payload missing")
			}
			if runner.callCount != 0 {
				t.Errorf("runner called %d times, want 0", runner.callCount)
			}
		})
	}
}

func TestChat_RunFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		runErr     error
		wantStatus int
		wantError  string
	}{
		{"internal failure masked", errors.New("pgx: connection refused"), http.StatusInternalServerError, "internal server error"},
		{"turn limit masked", chat.ErrTurnLimit, http.StatusInternalServerError, "internal server error"},
		{"stale thread maps to 404", thread.ErrNotFound, http.StatusNotFound, "thread not found"},
		{"empty input maps to 400", chat.ErrEmptyInput, http.StatusBadRequest, "message must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &mockRunner{runErr: tt.runErr}
			handler := newTestServer(t, runner, &mockThreadStore{exists: true})

			rec := postJSON(handler, "/chat", `{"message": "hello"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
			// Internal details must never leak to clients.
			if strings.Contains(rec.Body.String(), "pgx") {
				t.Error("response leaked internal error detail")
			}
		})
	}
}

func TestNewChat_CreateFailure(t *testing.T) {
	t.Parallel()

	threads := &mockThreadStore{createErr: errors.New("db down")}
	handler := newTestServer(t, &mockRunner{}, threads)

	rec := postJSON(handler, "/chat", `{"message": "hello"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, &mockRunner{}, &mockThreadStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("health status = %v", body["status"])
	}

	// Nil pool degrades /ready to a liveness response.
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /ready = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, &mockRunner{}, &mockThreadStore{}, func(cfg *ServerConfig) {
		cfg.RateLimit = 1
		cfg.RateBurst = 2
	})

	var got429 bool
	for i := 0; i < 5; i++ {
		rec := postJSON(handler, "/chat", `{"message": "hello"}`)
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			if ra := rec.Header().Get("Retry-After"); ra != "1" {
				t.Errorf("Retry-After = %q, want 1", ra)
			}
			break
		}
	}
	if !got429 {
		t.Error("burst of requests never hit the rate limit")
	}

	// Health probes bypass the limiter entirely.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200 even when rate limited", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, &mockRunner{}, &mockThreadStore{})
	rec := postJSON(handler, "/chat", `{"message": "hello"}`)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestMethodRouting(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, &mockRunner{}, &mockThreadStore{})

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /chat = %d, want 405", rec.Code)
	}
}
