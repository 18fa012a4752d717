package tool

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ToolErrorCodeInvalidRequest is returned when a call request is malformed.
	ToolErrorCodeInvalidRequest = "INVALID_REQUEST"
	// ToolErrorCodeToolNotFound is returned when no exposed command matches a tool name.
	ToolErrorCodeToolNotFound = "TOOL_NOT_FOUND"
	// ToolErrorCodeDescribeFailed is returned when command metadata cannot be fetched.
	ToolErrorCodeDescribeFailed = "DESCRIBE_FAILED"
	// ToolErrorCodeMappingFailed is returned when arguments cannot be coerced to the schema.
	ToolErrorCodeMappingFailed = "MAPPING_FAILED"
	// ToolErrorCodeExecutionFailed is returned when the host could not run the command.
	ToolErrorCodeExecutionFailed = "EXECUTION_FAILED"
	// ToolErrorCodeCommandFailed is returned when the command reported an error result.
	ToolErrorCodeCommandFailed = "COMMAND_FAILED"
	// ToolErrorCodeCanceled marks calls abandoned because the caller went away.
	ToolErrorCodeCanceled = "CANCELED"
)

// ToolError is a structured adapter error. Its Message is what remote
// clients see after the "Error: " prefix.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	switch {
	case code == "" && msg == "":
		return ToolErrorCodeExecutionFailed
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newToolError(code, message string, cause error) *ToolError {
	cleanCode := strings.TrimSpace(code)
	if cleanCode == "" {
		cleanCode = ToolErrorCodeExecutionFailed
	}
	cleanMsg := strings.TrimSpace(message)
	if cleanMsg == "" && cause != nil {
		cleanMsg = cause.Error()
	}
	return &ToolError{
		Code:    cleanCode,
		Message: cleanMsg,
		Cause:   cause,
	}
}

func withToolErrorDetails(err *ToolError, details map[string]any) *ToolError {
	if err == nil {
		return nil
	}
	if len(details) == 0 {
		return err
	}
	if err.Details == nil {
		err.Details = make(map[string]any, len(details))
	}
	for key, value := range details {
		err.Details[key] = value
	}
	return err
}

func toolErrorFrom(err error) (*ToolError, bool) {
	if err == nil {
		return nil, false
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}

func toolErrorCode(err error) string {
	if toolErr, ok := toolErrorFrom(err); ok && toolErr != nil {
		return toolErr.Code
	}
	return ""
}

// userMessage is the text shown to remote clients for a failed call.
func userMessage(err error) string {
	if toolErr, ok := toolErrorFrom(err); ok && strings.TrimSpace(toolErr.Message) != "" {
		return toolErr.Message
	}
	return err.Error()
}

// MappingError reports an argument that cannot be coerced to its declared type.
type MappingError struct {
	Path     string
	Expected string
	Value    any
	Reason   string
}

func (e *MappingError) Error() string {
	if e == nil {
		return ""
	}
	if e.Reason != "" {
		return fmt.Sprintf("parameter %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("parameter %q: expected %s, got %s", e.Path, e.Expected, describeValue(e.Value))
}

func describeValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", typed)
	case bool:
		return fmt.Sprintf("boolean %t", typed)
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("number %v", typed)
	case []any:
		return fmt.Sprintf("array of %d item(s)", len(typed))
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
