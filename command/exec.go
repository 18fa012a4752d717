package command

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// DefaultExecTimeout bounds a subprocess when no timeout is declared.
const DefaultExecTimeout = 120 * time.Second

// execWaitDelay caps how long output pipes are drained after the process is killed.
const execWaitDelay = 2 * time.Second

// ExecSpec declares a subprocess-backed command.
type ExecSpec struct {
	Metadata Metadata
	Command  string
	Args     []string
	Env      map[string]string
	Dir      string
	Timeout  time.Duration
}

// Exec runs a subprocess per invocation. Parameters are written to stdin as
// one JSON object; every non-empty stdout line becomes one record.
type Exec struct {
	spec ExecSpec
}

// NewExec validates spec and returns a subprocess command.
func NewExec(spec ExecSpec) (*Exec, error) {
	if strings.TrimSpace(spec.Metadata.Name) == "" {
		return nil, errors.New("command: exec command requires a name")
	}
	if strings.TrimSpace(spec.Command) == "" {
		return nil, fmt.Errorf("command: exec command %q requires an executable", spec.Metadata.Name)
	}
	if spec.Timeout < 0 {
		return nil, fmt.Errorf("command: exec command %q has negative timeout", spec.Metadata.Name)
	}
	if diags := ValidateSchema(spec.Metadata.Schema); HasErrors(diags) {
		return nil, &SchemaError{Command: spec.Metadata.Name, Diagnostics: diags}
	}
	if spec.Timeout == 0 {
		spec.Timeout = DefaultExecTimeout
	}
	spec.Args = slices.Clone(spec.Args)
	spec.Metadata.Properties = spec.Metadata.Properties.Clone()
	return &Exec{spec: spec}, nil
}

// Name returns the command name.
func (e *Exec) Name() string {
	return e.spec.Metadata.Name
}

// Describe returns the declared metadata.
func (e *Exec) Describe(ctx context.Context) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}
	metadata := e.spec.Metadata
	metadata.Properties = e.spec.Metadata.Properties.Clone()
	return metadata, nil
}

// Execute runs the subprocess once.
func (e *Exec) Execute(ctx context.Context, inv Invocation) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	params := inv.Parameters
	if params == nil {
		params = Parameters{}
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return Result{}, fmt.Errorf("command: encode parameters for %q: %w", e.Name(), err)
	}

	execCtx, cancel := withExecTimeout(ctx, e.spec.Timeout)
	defer cancel()

	// #nosec G204 -- executable and arguments come from the local declaration file.
	cmd := exec.CommandContext(execCtx, e.spec.Command, e.spec.Args...)
	cmd.Dir = e.spec.Dir
	if len(e.spec.Env) > 0 {
		cmd.Env = append(os.Environ(), flattenEnv(e.spec.Env)...)
	}
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = execWaitDelay

	logger := inv.Log().With("command", e.Name(), "invocation_id", inv.ID)
	start := time.Now()
	runErr := cmd.Run()
	logger.Debug("exec command finished", "duration_ms", time.Since(start).Milliseconds(), "error", runErr)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return Failed(fmt.Errorf("command %s timed out after %s", e.Name(), e.spec.Timeout)), nil
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Result{}, fmt.Errorf("command: start %q: %w", e.Name(), runErr)
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = runErr.Error()
		}
		result := decodeExecOutput(stdout.Bytes())
		result.Err = fmt.Errorf("command %s failed: %s", e.Name(), message)
		return result, nil
	}

	return decodeExecOutput(stdout.Bytes()), nil
}

// withExecTimeout applies the declared timeout even under a parent deadline;
// the earlier of the two wins.
func withExecTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

// decodeExecOutput turns stdout lines into records. JSON objects become
// structured records, JSON null becomes a null record, anything else is text.
func decodeExecOutput(stdout []byte) Result {
	records := make([]Record, 0)
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		records = append(records, decodeExecLine(line))
	}
	if err := scanner.Err(); err != nil {
		records = append(records, Text(string(stdout)))
	}
	return Result{Records: records}
}

func decodeExecLine(line string) Record {
	if line == "null" {
		return Null()
	}
	if strings.HasPrefix(line, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(line), &fields); err == nil {
			return Structured(fields)
		}
	}
	return Text(line)
}

func flattenEnv(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(values))
	for _, key := range keys {
		out = append(out, key+"="+values[key])
	}
	return out
}
