package tools

// Status indicates whether a tool call succeeded.
type Status string

const (
	// StatusSuccess indicates the tool produced a usable result.
	StatusSuccess Status = "success"
	// StatusError indicates the tool failed; Error carries details the
	// model can act on.
	StatusError Status = "error"
)

// Error codes returned in Result.Error.Code.
const (
	// ErrCodeValidation marks malformed arguments the model can correct
	// and retry.
	ErrCodeValidation = "validation_error"
	// ErrCodeExecution marks a failure inside the tool body.
	ErrCodeExecution = "execution_error"
)

// Error is a structured tool error for model consumption.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform envelope every tool returns to the model.
// A validation failure is reported here with a nil Go error so the model
// can retry with corrected arguments; infrastructure failures are returned
// as Go errors and abort the run.
type Result struct {
	Status Status         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Error  *Error         `json:"error,omitempty"`
}
