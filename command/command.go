package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Command is a named, invocable operation owned by a Host.
type Command interface {
	Name() string
	// Describe returns fresh metadata; it may reflect live state.
	Describe(ctx context.Context) (Metadata, error)
	// Execute runs the command once. Failures the command wants to report as
	// its outcome belong in Result.Err; the returned error is reserved for
	// failures to run at all, including cancellation.
	Execute(ctx context.Context, inv Invocation) (Result, error)
}

// Parameters is the coerced parameter set handed to a command.
type Parameters map[string]any

// Invocation is the per-call context of one execution. A new one is built for
// every call so overlapping invocations never share mutable state.
type Invocation struct {
	ID         string
	Parameters Parameters
	Logger     *slog.Logger
}

// Log returns the invocation logger, never nil.
func (inv Invocation) Log() *slog.Logger {
	if inv.Logger == nil {
		return slog.Default()
	}
	return inv.Logger
}

// FuncHandler is the body of an in-process command.
type FuncHandler func(ctx context.Context, inv Invocation) (Result, error)

// Func is an in-process command backed by static metadata and a Go function.
type Func struct {
	metadata Metadata
	handler  FuncHandler
}

// NewFunc creates an in-process command.
func NewFunc(metadata Metadata, handler FuncHandler) (*Func, error) {
	if strings.TrimSpace(metadata.Name) == "" {
		return nil, errors.New("command: func command requires a name")
	}
	if handler == nil {
		return nil, errors.New("command: func command requires a handler")
	}
	if diags := ValidateSchema(metadata.Schema); HasErrors(diags) {
		return nil, &SchemaError{Command: metadata.Name, Diagnostics: diags}
	}
	metadata.Properties = metadata.Properties.Clone()
	return &Func{metadata: metadata, handler: handler}, nil
}

// Name returns the command name.
func (f *Func) Name() string {
	return f.metadata.Name
}

// Describe returns a copy of the static metadata.
func (f *Func) Describe(ctx context.Context) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}
	metadata := f.metadata
	metadata.Properties = f.metadata.Properties.Clone()
	return metadata, nil
}

// Execute calls the handler.
func (f *Func) Execute(ctx context.Context, inv Invocation) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return f.handler(ctx, inv)
}

// SchemaError reports an invalid parameter schema.
type SchemaError struct {
	Command     string
	Diagnostics []Diagnostic
}

func (e *SchemaError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		if d.Severity != SeverityError {
			continue
		}
		parts = append(parts, d.Field+": "+d.Message)
	}
	return "command: invalid schema for " + e.Command + ": " + strings.Join(parts, "; ")
}
