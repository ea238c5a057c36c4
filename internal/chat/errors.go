package chat

import "errors"

// Sentinel errors for agent runs. Callers check these with errors.Is() to
// map failures onto HTTP status codes.
var (
	// ErrEmptyInput indicates the user message was empty or whitespace.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidThread indicates the thread ID is missing or malformed.
	ErrInvalidThread = errors.New("invalid thread")

	// ErrTurnLimit indicates the agent/tools loop exceeded the superstep
	// ceiling. Fatal: the run produced no answer.
	ErrTurnLimit = errors.New("turn limit exceeded")

	// ErrUnexpectedRole indicates the model response carried a role other
	// than model at the loop decision point.
	ErrUnexpectedRole = errors.New("unexpected message role")

	// ErrUnknownTool indicates the model requested a tool that is not
	// registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrExecutionFailed indicates a tool body or model call failed.
	ErrExecutionFailed = errors.New("execution failed")
)
