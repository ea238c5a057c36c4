// Package chat implements the conversational agent: a two-node loop between
// model calls and tool execution, with history persisted per thread.
//
// One run restores the thread's history, appends the user message, then
// alternates agent (model call) and tools (tool execution) supersteps until
// the model emits a plain answer or the superstep ceiling aborts the run.
// Every message produced by the run is appended to the thread afterwards.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// DefaultMaxSupersteps bounds the agent/tools loop per run.
	DefaultMaxSupersteps = 15

	// fallbackResponseMessage is returned when the model produces an empty
	// final response.
	fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// systemPromptFormat is the fixed system instruction. Filled with the
// available tool names and the current date on every model call.
const systemPromptFormat = `You are a helpful HR assistant answering questions about the company's employees.

You have access to the following tools: %s.
Use employee_lookup to retrieve the employee records relevant to the question before answering. Base your answers only on retrieved records. If no relevant records are found, say so instead of inventing details. Do not disclose salaries unless explicitly asked.

Current date: %s.`

// ThreadStore is the slice of the thread store the agent needs.
// Interfaces are defined by the consumer, not the provider.
type ThreadStore interface {
	History(ctx context.Context, id uuid.UUID) ([]*ai.Message, error)
	AppendMessages(ctx context.Context, id uuid.UUID, messages []*ai.Message) error
}

// Response represents the complete result of an agent run.
type Response struct {
	FinalText    string            // Model's final text output
	ToolRequests []*ai.ToolRequest // Tool requests made during the run
	Supersteps   int               // Loop iterations consumed
}

// Config contains all required parameters for the Agent.
type Config struct {
	Genkit  *genkit.Genkit
	Threads ThreadStore
	Logger  *slog.Logger
	Tools   []ai.Tool // Pre-registered tools from tools.Register()

	// Configuration values
	ModelName     string  // Provider-qualified model name (e.g., "googleai/gemini-2.5-flash")
	Temperature   float32 // 0 = deterministic tool routing
	MaxSupersteps int     // Loop ceiling (0 = DefaultMaxSupersteps)

	// Resilience configuration
	RetryConfig RetryConfig   // Model call retry settings (zero-value uses defaults)
	RateLimiter *rate.Limiter // Optional: proactive rate limiting (nil = disabled)
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Threads == nil {
		return errors.New("thread store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Agent runs retrieval-augmented conversations over the employee store.
//
// Agent is stateless between runs; all conversation state lives in the
// thread store. All configuration is captured immutably at construction
// time, so an Agent is safe for concurrent use.
type Agent struct {
	modelName     string
	temperature   float32
	maxSupersteps int

	retryConfig RetryConfig
	rateLimiter *rate.Limiter

	g         *genkit.Genkit
	threads   ThreadStore
	logger    *slog.Logger
	toolRefs  []ai.ToolRef // ai.Tool implements ai.ToolRef
	toolNames string       // comma-separated, for the system prompt and logs
}

// New creates a new Agent with required configuration.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}

	maxSupersteps := cfg.MaxSupersteps
	if maxSupersteps <= 0 {
		maxSupersteps = DefaultMaxSupersteps
	}

	retryConfig := cfg.RetryConfig
	if retryConfig == (RetryConfig{}) {
		retryConfig = DefaultRetryConfig()
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	return &Agent{
		modelName:     cfg.ModelName,
		temperature:   cfg.Temperature,
		maxSupersteps: maxSupersteps,
		retryConfig:   retryConfig,
		rateLimiter:   cfg.RateLimiter,
		g:             cfg.Genkit,
		threads:       cfg.Threads,
		logger:        cfg.Logger,
		toolRefs:      toolRefs,
		toolNames:     strings.Join(names, ", "),
	}, nil
}

// Run executes one conversation turn for the given thread.
//
// The thread's history is loaded, the user message appended, and the
// agent/tools loop executed until the model answers in plain text.
// On success all messages the run produced (user, model, tool) are appended
// to the thread in order; a persistence failure aborts the run.
func (a *Agent) Run(ctx context.Context, threadID uuid.UUID, input string) (*Response, error) {
	if threadID == uuid.Nil {
		return nil, ErrInvalidThread
	}
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	start := time.Now()
	a.logger.Info("run started", "thread_id", threadID, "input_len", len(input))

	history, err := a.threads.History(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// Deep copy: Genkit's renderMessages() mutates message content in-place,
	// so concurrent runs must not share message objects.
	messages := deepCopyMessages(history)

	userMsg := ai.NewUserMessage(ai.NewTextPart(input))
	messages = append(messages, userMsg)
	newMessages := []*ai.Message{userMsg}

	var (
		finalText    string
		toolRequests []*ai.ToolRequest
		supersteps   int
	)

	for {
		supersteps++
		if supersteps > a.maxSupersteps {
			a.logTurnLimit(threadID, newMessages)
			return nil, fmt.Errorf("%w: aborted after %d supersteps", ErrTurnLimit, a.maxSupersteps)
		}

		resp, err := a.generate(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("agent superstep %d: %w", supersteps, err)
		}
		if resp.Message == nil {
			return nil, fmt.Errorf("%w: model returned no message", ErrUnexpectedRole)
		}
		if resp.Message.Role != ai.RoleModel {
			// The loop decision inspects the last message; anything but a
			// model role here is a protocol violation, not undefined routing.
			return nil, fmt.Errorf("%w: got %q, want %q", ErrUnexpectedRole, resp.Message.Role, ai.RoleModel)
		}

		messages = append(messages, resp.Message)
		newMessages = append(newMessages, resp.Message)

		reqs := resp.ToolRequests()
		if len(reqs) == 0 {
			finalText = resp.Text()
			break
		}

		toolRequests = append(toolRequests, reqs...)

		supersteps++
		if supersteps > a.maxSupersteps {
			a.logTurnLimit(threadID, newMessages)
			return nil, fmt.Errorf("%w: aborted after %d supersteps", ErrTurnLimit, a.maxSupersteps)
		}

		toolMsg, err := a.runTools(ctx, reqs)
		if err != nil {
			return nil, fmt.Errorf("tools superstep %d: %w", supersteps, err)
		}

		messages = append(messages, toolMsg)
		newMessages = append(newMessages, toolMsg)
	}

	if strings.TrimSpace(finalText) == "" {
		a.logger.Warn("model returned empty final response", "thread_id", threadID)
		finalText = fallbackResponseMessage
	}

	// Persist the full run. History is append-only: a failed append aborts
	// the run rather than silently dropping state.
	if err := a.threads.AppendMessages(ctx, threadID, newMessages); err != nil {
		return nil, fmt.Errorf("persisting conversation: %w", err)
	}

	a.logger.Info("run finished",
		"thread_id", threadID,
		"supersteps", supersteps,
		"tool_calls", len(toolRequests),
		"elapsed", time.Since(start),
	)

	return &Response{
		FinalText:    finalText,
		ToolRequests: toolRequests,
		Supersteps:   supersteps,
	}, nil
}

// logTurnLimit records the last model text produced before an aborted run,
// so the partial answer survives in the logs even though nothing is persisted.
func (a *Agent) logTurnLimit(threadID uuid.UUID, msgs []*ai.Message) {
	var lastText string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == ai.RoleModel {
			lastText = msgs[i].Text()
			break
		}
	}
	a.logger.Warn("turn limit reached",
		"thread_id", threadID,
		"max_supersteps", a.maxSupersteps,
		"last_model_text", lastText,
	)
}

// generate performs one model call with tools bound. WithReturnToolRequests
// keeps the tool loop in Run's hands instead of Genkit's internal turn loop.
func (a *Agent) generate(ctx context.Context, messages []*ai.Message) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(a.systemPrompt()),
		ai.WithMessages(messages...),
		ai.WithTools(a.toolRefs...),
		ai.WithReturnToolRequests(true),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(a.temperature),
		}),
	}
	return a.generateWithRetry(ctx, opts)
}

// runTools executes every tool request of one model message and returns the
// tool message carrying the responses in request order.
//
// Requests within one message are independent reads, so they fan out
// concurrently; the first failure cancels the rest and aborts the run.
func (a *Agent) runTools(ctx context.Context, reqs []*ai.ToolRequest) (*ai.Message, error) {
	parts := make([]*ai.Part, len(reqs))

	grp, grpCtx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		grp.Go(func() error {
			tool := genkit.LookupTool(a.g, req.Name)
			if tool == nil {
				return fmt.Errorf("%w: %q", ErrUnknownTool, req.Name)
			}

			a.logger.Debug("executing tool", "tool", req.Name)
			out, err := tool.RunRaw(grpCtx, req.Input)
			if err != nil {
				return fmt.Errorf("%w: tool %q: %v", ErrExecutionFailed, req.Name, err)
			}

			parts[i] = ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   req.Name,
				Ref:    req.Ref,
				Output: out,
			})
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	return ai.NewMessage(ai.RoleTool, nil, parts...), nil
}

// systemPrompt renders the fixed system instruction with the available tool
// names and the current date.
func (a *Agent) systemPrompt() string {
	return fmt.Sprintf(systemPromptFormat, a.toolNames, time.Now().Format("2006-01-02"))
}

// deepCopyMessages creates independent copies of messages so Genkit's
// in-place prompt rendering cannot race with another run sharing the same
// loaded history.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			if part == nil {
				continue
			}
			cp := *part
			parts[j] = &cp
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// shallowCopyMap copies map keys and values but not nested structures.
func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
