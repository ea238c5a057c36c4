package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/medevs/hr-agent/internal/chat"
	"github.com/medevs/hr-agent/internal/thread"
)

// maxChatBodyBytes caps the request body size for chat endpoints (1MB).
const maxChatBodyBytes = 1 << 20

// Runner is the slice of the chat agent the HTTP layer needs.
type Runner interface {
	Run(ctx context.Context, threadID uuid.UUID, input string) (*chat.Response, error)
}

// ThreadStore is the slice of the thread store the HTTP layer needs.
type ThreadStore interface {
	Create(ctx context.Context) (uuid.UUID, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// chatHandler serves the chat endpoints.
type chatHandler struct {
	runner  Runner
	threads ThreadStore
	logger  *slog.Logger
}

// chatRequest is the request body for both chat endpoints.
type chatRequest struct {
	Message string `json:"message"`
}

// newChatResponse is returned by POST /chat.
type newChatResponse struct {
	ThreadID string `json:"threadId"`
	Response string `json:"response"`
}

// continueChatResponse is returned by POST /chat/{threadID}.
type continueChatResponse struct {
	Response string `json:"response"`
}

// newChat handles POST /chat: creates a fresh thread and runs the first turn.
func (h *chatHandler) newChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	threadID, err := h.threads.Create(r.Context())
	if err != nil {
		h.logger.Error("creating thread", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp, err := h.runner.Run(r.Context(), threadID, req.Message)
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newChatResponse{
		ThreadID: threadID.String(),
		Response: resp.FinalText,
	})
}

// continueChat handles POST /chat/{threadID}: runs one more turn on an
// existing thread.
func (h *chatHandler) continueChat(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(r.PathValue("threadID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	exists, err := h.threads.Exists(r.Context(), threadID)
	if err != nil {
		h.logger.Error("checking thread", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}

	resp, err := h.runner.Run(r.Context(), threadID, req.Message)
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, continueChatResponse{Response: resp.FinalText})
}

// decodeRequest parses and validates the chat request body.
// Writes the error response itself and returns ok=false on failure.
func (h *chatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return chatRequest{}, false
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return chatRequest{}, false
	}
	return req, true
}

// writeRunError maps agent run failures onto HTTP responses.
// Internal failure detail is logged, never sent to the client.
func (h *chatHandler) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "message must not be empty")
	case errors.Is(err, chat.ErrInvalidThread), errors.Is(err, thread.ErrNotFound):
		writeError(w, http.StatusNotFound, "thread not found")
	default:
		h.logger.Error("chat run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
