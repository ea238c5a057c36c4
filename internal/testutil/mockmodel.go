package testutil

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModelName is the provider-qualified name the mock registers under.
const MockModelName = "mock/chat-model"

// MockTurn is one scripted model response.
type MockTurn struct {
	Text         string
	ToolRequests []*ai.ToolRequest
	Err          error // returned instead of a response when set
}

// MockModel provides scripted, deterministic model responses for testing.
//
// Each call consumes the next turn in the script; when the script runs out
// the last turn repeats. That makes both "tool call then answer" sequences
// and "never stops calling tools" scenarios trivial to express.
//
// Thread-safe for concurrent use.
type MockModel struct {
	mu       sync.Mutex
	script   []MockTurn
	calls    int
	requests []*ai.ModelRequest
}

// NewMockModel creates a mock model that plays back the given turns in order.
func NewMockModel(turns ...MockTurn) *MockModel {
	return &MockModel{script: turns}
}

// Calls returns how many times the model was invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of every request the model received.
func (m *MockModel) Requests() []*ai.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*ai.ModelRequest, len(m.requests))
	copy(cp, m.requests)
	return cp
}

// Register registers the mock as a Genkit model and returns a reference.
func (m *MockModel) Register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Chat Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
			Media:      false,
		},
	}, m.generate)
}

// generate is the Genkit model function.
func (m *MockModel) generate(_ context.Context, req *ai.ModelRequest, _ ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	m.mu.Lock()
	turn := MockTurn{Text: "ok"}
	if len(m.script) > 0 {
		idx := m.calls
		if idx >= len(m.script) {
			idx = len(m.script) - 1
		}
		turn = m.script[idx]
	}
	m.calls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if turn.Err != nil {
		return nil, turn.Err
	}

	var parts []*ai.Part
	for _, tr := range turn.ToolRequests {
		parts = append(parts, &ai.Part{
			Kind:        ai.PartToolRequest,
			ToolRequest: tr,
		})
	}
	if turn.Text != "" || len(parts) == 0 {
		parts = append(parts, ai.NewTextPart(turn.Text))
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: parts,
		},
	}, nil
}
