// Package tools defines the Genkit tools the chat model may invoke.
//
// Currently there is a single tool, employee_lookup, which wraps the
// employee store's embedding + similarity search behind a schema-validated
// function the model can call.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/medevs/hr-agent/internal/employee"
)

// EmployeeLookupName is the Genkit tool name for employee similarity search.
const EmployeeLookupName = "employee_lookup"

// MaxQueryLength caps the lookup query size before it reaches the embedder.
const MaxQueryLength = 2000

// LookupInput defines input for the employee_lookup tool.
type LookupInput struct {
	Query string `json:"query" jsonschema_description:"Natural-language description of the employees to find"`
	N     int    `json:"n,omitempty" jsonschema_description:"Maximum results to return (1-50), default 10"`
}

// Searcher is the slice of the employee store the lookup tool needs.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]employee.Match, error)
}

// Lookup holds dependencies for the employee_lookup handler.
type Lookup struct {
	searcher Searcher
	logger   *slog.Logger
	defaultN int
	maxN     int
}

// NewLookup creates a Lookup instance.
// defaultN is used when the model omits n; maxN caps whatever it asks for.
func NewLookup(searcher Searcher, logger *slog.Logger, defaultN, maxN int) (*Lookup, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if defaultN <= 0 {
		defaultN = employee.DefaultTopK
	}
	if maxN <= 0 {
		maxN = employee.MaxTopK
	}
	return &Lookup{searcher: searcher, logger: logger, defaultN: defaultN, maxN: maxN}, nil
}

// Register registers the employee_lookup tool with Genkit.
func Register(g *genkit.Genkit, lk *Lookup) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if lk == nil {
		return nil, fmt.Errorf("Lookup is required")
	}

	tool := genkit.DefineTool(g, EmployeeLookupName,
		"Search employee records using semantic similarity over their profile summaries. "+
			"Finds employees whose name, job, department, skills, reviews, or notes match the query. "+
			"Returns: matched records with similarity scores, highest first. "+
			"Use this to: answer any question about specific employees or groups of employees. "+
			"Default n: 10. Maximum n: 50.",
		lk.Lookup)

	return []ai.Tool{tool}, nil
}

// Lookup executes an employee similarity search for the model.
//
// Validation failures (empty query, negative n) come back as a structured
// error Result with a nil Go error, so the model can correct its arguments
// and retry. Embedding or database failures are returned as Go errors and
// abort the run.
func (l *Lookup) Lookup(ctx *ai.ToolContext, input LookupInput) (Result, error) {
	l.logger.Info("employee_lookup called", "query", input.Query, "n", input.N)

	if strings.TrimSpace(input.Query) == "" {
		return Result{
			Status: StatusError,
			Error: &Error{
				Code:    ErrCodeValidation,
				Message: "query must be a non-empty string",
			},
		}, nil
	}
	if len(input.Query) > MaxQueryLength {
		return Result{
			Status: StatusError,
			Error: &Error{
				Code:    ErrCodeValidation,
				Message: fmt.Sprintf("query length %d exceeds maximum %d", len(input.Query), MaxQueryLength),
			},
		}, nil
	}
	if input.N < 0 {
		return Result{
			Status: StatusError,
			Error: &Error{
				Code:    ErrCodeValidation,
				Message: fmt.Sprintf("n must be a positive integer, got %d", input.N),
			},
		}, nil
	}

	n := input.N
	if n == 0 {
		n = l.defaultN
	}
	if n > l.maxN {
		n = l.maxN
	}

	matches, err := l.searcher.Search(ctx, input.Query, n)
	if err != nil {
		l.logger.Warn("employee_lookup failed", "query", input.Query, "error", err)
		return Result{}, fmt.Errorf("searching employees: %w", err)
	}

	l.logger.Info("employee_lookup succeeded", "query", input.Query, "result_count", len(matches))
	return Result{
		Status: StatusSuccess,
		Data: map[string]any{
			"query":        input.Query,
			"result_count": len(matches),
			"results":      matches,
		},
	}, nil
}
