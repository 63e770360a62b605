package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeDecode      = "DECODE_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeExpression  = "EXPRESSION_ERROR"
	ErrCodeUnsupported = "UNSUPPORTED_OPERATOR"
)

// TreeError is the structured error type for all calltree operations.
type TreeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *TreeError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *TreeError) Unwrap() error {
	return e.Cause
}

// NewError creates a new TreeError.
func NewError(code, message string) *TreeError {
	return &TreeError{Code: code, Message: message}
}

// NewErrorf creates a new TreeError with a formatted message.
func NewErrorf(code, format string, args ...any) *TreeError {
	return &TreeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *TreeError) WithNode(nodeID string) *TreeError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *TreeError) WithCause(err error) *TreeError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *TreeError) WithDetails(details map[string]any) *TreeError {
	e.Details = details
	return e
}
