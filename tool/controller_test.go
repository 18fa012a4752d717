package tool

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petal-labs/commandry/command"
	"github.com/petal-labs/commandry/tool/mcp"
)

func exposedProperties(extra map[string]string) command.Properties {
	props := command.Properties{}
	props.Set(command.PropertyRole, command.RoleMCPTool)
	for key, value := range extra {
		props.Set(key, value)
	}
	return props
}

func newTestCommand(t *testing.T, metadata command.Metadata, handler command.FuncHandler) *command.Func {
	t.Helper()
	if handler == nil {
		handler = func(context.Context, command.Invocation) (command.Result, error) {
			return command.NewResult("ok"), nil
		}
	}
	cmd, err := command.NewFunc(metadata, handler)
	if err != nil {
		t.Fatalf("NewFunc(%q) error = %v", metadata.Name, err)
	}
	return cmd
}

func newTestController(t *testing.T, cmds ...command.Command) (*Controller, *command.MemHost) {
	t.Helper()
	host := command.NewMemHost(command.MemHostConfig{})
	if len(cmds) > 0 {
		if err := host.Register(cmds...); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	controller, err := NewController(ControllerConfig{Host: host})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(func() { _ = controller.Close() })
	return controller, host
}

// failingDescribe is a command whose metadata cannot be fetched.
type failingDescribe struct {
	name string
	err  error
}

func (f failingDescribe) Name() string { return f.name }

func (f failingDescribe) Describe(context.Context) (command.Metadata, error) {
	return command.Metadata{}, f.err
}

func (f failingDescribe) Execute(context.Context, command.Invocation) (command.Result, error) {
	return command.Result{}, errors.New("not callable")
}

// blockingDescribe blocks in Describe until ctx is done.
type blockingDescribe struct {
	name    string
	started chan struct{}
}

func (b blockingDescribe) Name() string { return b.name }

func (b blockingDescribe) Describe(ctx context.Context) (command.Metadata, error) {
	close(b.started)
	<-ctx.Done()
	return command.Metadata{}, ctx.Err()
}

func (b blockingDescribe) Execute(context.Context, command.Invocation) (command.Result, error) {
	return command.Result{}, nil
}

// staticCommand ignores ctx in Describe and Execute and counts executions.
type staticCommand struct {
	name     string
	metadata command.Metadata
	executed *int
}

func (s staticCommand) Name() string { return s.name }

func (s staticCommand) Describe(context.Context) (command.Metadata, error) {
	return s.metadata, nil
}

func (s staticCommand) Execute(context.Context, command.Invocation) (command.Result, error) {
	if s.executed != nil {
		*s.executed++
	}
	return command.NewResult("ran " + s.name), nil
}

func toolNames(result mcp.ToolsListResult) []string {
	names := make([]string, 0, len(result.Tools))
	for _, t := range result.Tools {
		names = append(names, t.Name)
	}
	return names
}

func TestNewControllerRequiresHost(t *testing.T) {
	if _, err := NewController(ControllerConfig{}); err == nil {
		t.Fatal("NewController() error = nil, want error")
	}
}

func TestListToolsFiltersOnExposureMarker(t *testing.T) {
	hidden := command.Properties{}
	hidden.Set(command.PropertyRole, "Console")
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "visible", Properties: exposedProperties(nil)}, nil),
		newTestCommand(t, command.Metadata{Name: "no_props"}, nil),
		newTestCommand(t, command.Metadata{Name: "console_only", Properties: hidden}, nil),
	)

	result, err := controller.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if got := toolNames(result); !reflect.DeepEqual(got, []string{"visible"}) {
		t.Fatalf("ListTools() names = %v, want [visible]", got)
	}
}

func TestListToolsMultiValuedRole(t *testing.T) {
	props := command.Properties{}
	props.Set(command.PropertyRole, "Console", "mcp tool")
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "both", Properties: props}, nil),
	)

	result, err := controller.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(result.Tools) != 1 {
		t.Fatalf("len(Tools) = %d, want 1", len(result.Tools))
	}
}

func TestListToolsNameOverrideAndOrder(t *testing.T) {
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "zeta", Properties: exposedProperties(nil)}, nil),
		newTestCommand(t, command.Metadata{
			Name:       "alpha",
			Properties: exposedProperties(map[string]string{command.PropertyName: "renamed"}),
		}, nil),
		newTestCommand(t, command.Metadata{Name: "mid", Properties: exposedProperties(nil)}, nil),
	)

	result, err := controller.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	want := []string{"zeta", "renamed", "mid"}
	if got := toolNames(result); !reflect.DeepEqual(got, want) {
		t.Fatalf("ListTools() names = %v, want %v", got, want)
	}
}

func TestListToolsIsIdempotent(t *testing.T) {
	cmds := make([]command.Command, 0, 20)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		cmds = append(cmds, newTestCommand(t, command.Metadata{
			Name:        name,
			Description: "command " + name,
			Properties:  exposedProperties(map[string]string{command.PropertyReadOnlyHint: "true"}),
			Schema: command.Schema{Parameters: map[string]command.FieldSpec{
				"x": {Type: command.TypeInteger, Required: true},
			}},
		}, nil))
	}
	controller, _ := newTestController(t, cmds...)

	first, err := controller.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := controller.ListTools(context.Background())
		if err != nil {
			t.Fatalf("ListTools() error = %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ListTools() differs between calls:\nfirst=%+v\nagain=%+v", first, again)
		}
	}
}

func TestListToolsBuildsToolFromMetadata(t *testing.T) {
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{
			Name:        "deploy",
			Title:       "Deploy service",
			Description: "Deploys one service",
			Properties: exposedProperties(map[string]string{
				command.PropertyDestructiveHint: "TRUE",
				command.PropertyIdempotentHint:  "yes",
			}),
			Schema: command.Schema{Parameters: map[string]command.FieldSpec{
				"service":  {Type: command.TypeString, Required: true},
				"replicas": {Type: command.TypeInteger},
			}},
		}, nil),
	)

	result, err := controller.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	got := result.Tools[0]
	if got.Description != "Deploys one service" {
		t.Fatalf("Description = %q", got.Description)
	}
	if got.InputSchema.Type != "object" || !reflect.DeepEqual(got.InputSchema.Required, []string{"service"}) {
		t.Fatalf("InputSchema = %+v", got.InputSchema)
	}
	if got.InputSchema.Properties["replicas"].Type != "integer" {
		t.Fatalf("replicas schema = %+v", got.InputSchema.Properties["replicas"])
	}

	annotations := got.Annotations
	if annotations == nil {
		t.Fatal("Annotations = nil")
	}
	if annotations.Title != "Deploy service" {
		t.Fatalf("Title = %q, want Deploy service", annotations.Title)
	}
	if annotations.DestructiveHint == nil || !*annotations.DestructiveHint {
		t.Fatalf("DestructiveHint = %v, want true", annotations.DestructiveHint)
	}
	if annotations.IdempotentHint == nil || *annotations.IdempotentHint {
		t.Fatalf("IdempotentHint = %v, want false", annotations.IdempotentHint)
	}
	if annotations.ReadOnlyHint != nil || annotations.OpenWorldHint != nil {
		t.Fatalf("absent hints should be unset, got %+v", annotations)
	}
}

func TestListToolsDescribeFailureAbortsListing(t *testing.T) {
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "fine", Properties: exposedProperties(nil)}, nil),
		failingDescribe{name: "broken", err: errors.New("backend offline")},
	)

	_, err := controller.ListTools(context.Background())
	if err == nil {
		t.Fatal("ListTools() error = nil, want describe failure")
	}
	if code := toolErrorCode(err); code != ToolErrorCodeDescribeFailed {
		t.Fatalf("error code = %q, want %q", code, ToolErrorCodeDescribeFailed)
	}
	if !strings.Contains(err.Error(), "backend offline") {
		t.Fatalf("error = %v, want cause text", err)
	}
}

func TestListToolsCancellation(t *testing.T) {
	started := make(chan struct{})
	controller, _ := newTestController(t, blockingDescribe{name: "slow", started: started})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := controller.ListTools(ctx)
		errCh <- err
	}()

	<-started
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ListTools() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListTools() did not return after cancellation")
	}
}

func TestListToolsPreCancelledContext(t *testing.T) {
	controller, _ := newTestController(t, staticCommand{
		name:     "static",
		metadata: command.Metadata{Name: "static", Properties: exposedProperties(nil)},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := controller.ListTools(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("ListTools() error = %v, want context.Canceled", err)
	}
}

func assertErrorResult(t *testing.T, result mcp.ToolsCallResult, substr string) {
	t.Helper()
	if !result.IsError {
		t.Fatal("IsError = false, want true")
	}
	if len(result.Content) != 1 {
		t.Fatalf("len(Content) = %d, want 1", len(result.Content))
	}
	block := result.Content[0]
	if block.Type != mcp.ContentTypeText {
		t.Fatalf("Content[0].Type = %q, want text", block.Type)
	}
	if !strings.HasPrefix(block.Text, ErrorPrefix) {
		t.Fatalf("Content[0].Text = %q, want %q prefix", block.Text, ErrorPrefix)
	}
	if !strings.Contains(block.Text, substr) {
		t.Fatalf("Content[0].Text = %q, want substring %q", block.Text, substr)
	}
}

func TestCallToolMissingName(t *testing.T) {
	controller, _ := newTestController(t)

	tests := []struct {
		name   string
		params *mcp.ToolsCallParams
	}{
		{name: "nil params", params: nil},
		{name: "empty name", params: &mcp.ToolsCallParams{}},
		{name: "blank name", params: &mcp.ToolsCallParams{Name: "   "}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := controller.CallTool(context.Background(), tc.params, nil)
			if err != nil {
				t.Fatalf("CallTool() error = %v", err)
			}
			assertErrorResult(t, result, "tool name is missing")
		})
	}
}

func TestCallToolUnknownTool(t *testing.T) {
	controller, _ := newTestController(t)

	result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: "ghost"}, nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	assertErrorResult(t, result, "ghost")
}

func TestCallToolHiddenCommandIsNotFound(t *testing.T) {
	called := false
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "internal"}, func(context.Context, command.Invocation) (command.Result, error) {
			called = true
			return command.NewResult("ran"), nil
		}),
	)

	result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: "internal"}, nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	assertErrorResult(t, result, "tool internal was not found")
	if called {
		t.Fatal("hidden command was executed")
	}
}

func TestCallToolResolvesNameOverride(t *testing.T) {
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{
			Name:       "Get-Thing",
			Properties: exposedProperties(map[string]string{command.PropertyName: "get_thing"}),
		}, func(context.Context, command.Invocation) (command.Result, error) {
			return command.NewResult("thing"), nil
		}),
	)

	for _, name := range []string{"get_thing", "Get-Thing"} {
		result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: name}, nil)
		if err != nil {
			t.Fatalf("CallTool(%q) error = %v", name, err)
		}
		if result.IsError || len(result.Content) != 1 || result.Content[0].Text != "thing" {
			t.Fatalf("CallTool(%q) = %+v", name, result)
		}
	}
}

func TestCallToolSuccessMapsRecords(t *testing.T) {
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "mixed", Properties: exposedProperties(nil)},
			func(context.Context, command.Invocation) (command.Result, error) {
				return command.NewResult("plain", nil, map[string]any{"k": "v"}, 42, nil), nil
			}),
	)

	result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: "mixed"}, nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("IsError = true, content = %+v", result.Content)
	}
	if len(result.Content) != 3 {
		t.Fatalf("len(Content) = %d, want 3 (nulls dropped)", len(result.Content))
	}
	if result.Content[0].Text != "plain" || result.Content[0].IsStructured() {
		t.Fatalf("Content[0] = %+v, want text plain", result.Content[0])
	}
	if !result.Content[1].IsStructured() || result.Content[1].Structured["k"] != "v" {
		t.Fatalf("Content[1] = %+v, want structured", result.Content[1])
	}
	if result.Content[2].Text != "42" || result.Content[2].Type != mcp.ContentTypeText {
		t.Fatalf("Content[2] = %+v, want text 42", result.Content[2])
	}
	if result.StructuredContent != nil {
		t.Fatalf("StructuredContent = %v, want nil for multi-record result", result.StructuredContent)
	}
}

func TestCallToolSingleStructuredRecord(t *testing.T) {
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "status", Properties: exposedProperties(nil)},
			func(context.Context, command.Invocation) (command.Result, error) {
				return command.NewResult(map[string]any{"healthy": true}), nil
			}),
	)

	result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: "status"}, nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if result.StructuredContent["healthy"] != true {
		t.Fatalf("StructuredContent = %v", result.StructuredContent)
	}
	if result.Content[0].Text != `{"healthy":true}` {
		t.Fatalf("Content[0].Text = %q", result.Content[0].Text)
	}
}

func TestCallToolEmptyResult(t *testing.T) {
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "quiet", Properties: exposedProperties(nil)},
			func(context.Context, command.Invocation) (command.Result, error) {
				return command.NewResult(nil), nil
			}),
	)

	result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: "quiet"}, nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if result.IsError || result.Content == nil || len(result.Content) != 0 {
		t.Fatalf("CallTool() = %+v, want empty non-error content", result)
	}
}

func TestCallToolMapsArguments(t *testing.T) {
	var got command.Parameters
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{
			Name:       "scale",
			Properties: exposedProperties(nil),
			Schema: command.Schema{Parameters: map[string]command.FieldSpec{
				"replicas": {Type: command.TypeInteger, Required: true},
				"dry_run":  {Type: command.TypeBoolean, Default: false},
			}},
		}, func(_ context.Context, inv command.Invocation) (command.Result, error) {
			got = inv.Parameters
			return command.NewResult(), nil
		}),
	)

	result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{
		Name:      "scale",
		Arguments: map[string]any{"replicas": float64(3), "unknown": "ignored"},
	}, nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("IsError = true, content = %+v", result.Content)
	}
	want := command.Parameters{"replicas": int64(3), "dry_run": false}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parameters = %#v, want %#v", got, want)
	}
}

func TestCallToolAbsentArgumentsWithEmptySchema(t *testing.T) {
	var got command.Parameters
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "noargs", Properties: exposedProperties(nil)},
			func(_ context.Context, inv command.Invocation) (command.Result, error) {
				got = inv.Parameters
				return command.NewResult("done"), nil
			}),
	)

	result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: "noargs"}, nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("IsError = true, content = %+v", result.Content)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Parameters = %#v, want empty non-nil set", got)
	}
}

func TestCallToolFailures(t *testing.T) {
	schema := command.Schema{Parameters: map[string]command.FieldSpec{
		"count": {Type: command.TypeInteger, Required: true},
	}}
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "typed", Properties: exposedProperties(nil), Schema: schema}, nil),
		newTestCommand(t, command.Metadata{Name: "reports_error", Properties: exposedProperties(nil)},
			func(context.Context, command.Invocation) (command.Result, error) {
				return command.Failed(errors.New("disk full")), nil
			}),
		newTestCommand(t, command.Metadata{Name: "cannot_run", Properties: exposedProperties(nil)},
			func(context.Context, command.Invocation) (command.Result, error) {
				return command.Result{}, errors.New("runner unavailable")
			}),
		newTestCommand(t, command.Metadata{Name: "panics", Properties: exposedProperties(nil)},
			func(context.Context, command.Invocation) (command.Result, error) {
				panic("boom")
			}),
	)

	tests := []struct {
		name   string
		params *mcp.ToolsCallParams
		substr string
	}{
		{name: "mapping", params: &mcp.ToolsCallParams{Name: "typed", Arguments: map[string]any{"count": "many"}}, substr: `parameter "count"`},
		{name: "missing required", params: &mcp.ToolsCallParams{Name: "typed"}, substr: "is required"},
		{name: "result error", params: &mcp.ToolsCallParams{Name: "reports_error"}, substr: "disk full"},
		{name: "execution error", params: &mcp.ToolsCallParams{Name: "cannot_run"}, substr: "runner unavailable"},
		{name: "panic", params: &mcp.ToolsCallParams{Name: "panics"}, substr: "boom"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := controller.CallTool(context.Background(), tc.params, nil)
			if err != nil {
				t.Fatalf("CallTool() error = %v", err)
			}
			assertErrorResult(t, result, tc.substr)
		})
	}
}

func TestCallToolCancellationIsDistinct(t *testing.T) {
	started := make(chan struct{})
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{Name: "wait", Properties: exposedProperties(nil)},
			func(ctx context.Context, _ command.Invocation) (command.Result, error) {
				close(started)
				<-ctx.Done()
				return command.Result{}, ctx.Err()
			}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	type callResult struct {
		result mcp.ToolsCallResult
		err    error
	}
	done := make(chan callResult, 1)
	go func() {
		result, err := controller.CallTool(ctx, &mcp.ToolsCallParams{Name: "wait"}, nil)
		done <- callResult{result: result, err: err}
	}()

	<-started
	cancel()
	select {
	case got := <-done:
		if !errors.Is(got.err, context.Canceled) {
			t.Fatalf("CallTool() error = %v, want context.Canceled", got.err)
		}
		if len(got.result.Content) != 0 || got.result.IsError {
			t.Fatalf("CallTool() result = %+v, want zero result on cancellation", got.result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CallTool() did not return after cancellation")
	}
}

func TestCallToolPreCancelledContextSkipsExecution(t *testing.T) {
	executed := 0
	controller, _ := newTestController(t, staticCommand{
		name:     "static",
		metadata: command.Metadata{Name: "static", Properties: exposedProperties(nil)},
		executed: &executed,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := controller.CallTool(ctx, &mcp.ToolsCallParams{Name: "static"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("CallTool() error = %v, want context.Canceled", err)
	}
	if result.IsError || len(result.Content) != 0 {
		t.Fatalf("CallTool() result = %+v, want zero result", result)
	}
	if executed != 0 {
		t.Fatalf("executed = %d, want 0", executed)
	}
}

func TestCallToolResolvesDescribedName(t *testing.T) {
	executed := 0
	controller, _ := newTestController(t, staticCommand{
		name:     "registry-name",
		metadata: command.Metadata{Name: "advertised", Properties: exposedProperties(nil)},
		executed: &executed,
	})

	list, err := controller.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if got := toolNames(list); !reflect.DeepEqual(got, []string{"advertised"}) {
		t.Fatalf("tools = %v, want [advertised]", got)
	}

	result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: "advertised"}, nil)
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if result.IsError || len(result.Content) != 1 || result.Content[0].Text != "ran registry-name" {
		t.Fatalf("CallTool() = %+v", result)
	}
	if executed != 1 {
		t.Fatalf("executed = %d, want 1", executed)
	}
}

func TestCallToolFreshInvocationPerCall(t *testing.T) {
	var (
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	controller, _ := newTestController(t,
		newTestCommand(t, command.Metadata{
			Name:       "echo",
			Properties: exposedProperties(nil),
			Schema: command.Schema{Parameters: map[string]command.FieldSpec{
				"n": {Type: command.TypeInteger, Required: true},
			}},
		}, func(_ context.Context, inv command.Invocation) (command.Result, error) {
			mu.Lock()
			ids[inv.ID] = true
			mu.Unlock()
			return command.NewResult(inv.Parameters["n"]), nil
		}),
	)

	const calls = 16
	var wg sync.WaitGroup
	errs := make(chan string, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{
				Name:      "echo",
				Arguments: map[string]any{"n": n},
			}, nil)
			if err != nil || result.IsError {
				errs <- "call failed"
				return
			}
			if want := strings.TrimSpace(result.Content[0].Text); want != strconv.Itoa(n) {
				errs <- "got " + want + " want " + strconv.Itoa(n)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
	if len(ids) != calls {
		t.Fatalf("distinct invocation IDs = %d, want %d", len(ids), calls)
	}
}

func TestControllerForwardsEveryChangeEvent(t *testing.T) {
	controller, host := newTestController(t)
	sub := controller.Monitor().Subscribe()
	defer sub.Close()

	const n = 5
	for i := 0; i < n; i++ {
		name := "cmd" + strconv.Itoa(i)
		if err := host.Register(newTestCommand(t, command.Metadata{Name: name}, nil)); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	if got := controller.Monitor().Version(); got != n {
		t.Fatalf("Version() = %d, want %d", got, n)
	}
	select {
	case <-sub.Changes():
	default:
		t.Fatal("subscription did not receive a signal")
	}
	if !controller.Monitor().Observe() {
		t.Fatal("Observe() = false after changes")
	}
	if controller.Monitor().Observe() {
		t.Fatal("Observe() = true with no new changes")
	}
}

func TestControllerCloseStopsForwarding(t *testing.T) {
	controller, host := newTestController(t)
	if err := controller.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := host.Register(newTestCommand(t, command.Metadata{Name: "late"}, nil)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := controller.Monitor().Version(); got != 0 {
		t.Fatalf("Version() = %d after Close, want 0", got)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	lists   []ListObservation
	calls   []CallObservation
	changes []ChangeObservation
}

func (r *recordingObserver) ObserveList(o ListObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, o)
}

func (r *recordingObserver) ObserveCall(o CallObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, o)
}

func (r *recordingObserver) ObserveChange(o ChangeObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, o)
}

func TestControllerEmitsObservations(t *testing.T) {
	observer := &recordingObserver{}
	host := command.NewMemHost(command.MemHostConfig{})
	controller, err := NewController(ControllerConfig{Host: host, Observer: observer})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	defer controller.Close()

	if err := host.Register(newTestCommand(t, command.Metadata{Name: "one", Properties: exposedProperties(nil)}, nil)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := controller.ListTools(context.Background()); err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if _, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: "one"}, nil); err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if _, err := controller.CallTool(context.Background(), &mcp.ToolsCallParams{Name: "nope"}, nil); err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}

	if len(observer.changes) != 1 || observer.changes[0].Version != 1 {
		t.Fatalf("changes = %+v, want one at version 1", observer.changes)
	}
	if len(observer.lists) != 1 || !observer.lists[0].Success || observer.lists[0].Tools != 1 {
		t.Fatalf("lists = %+v", observer.lists)
	}
	if len(observer.calls) != 2 {
		t.Fatalf("calls = %+v, want 2", observer.calls)
	}
	if observer.calls[0].IsError || observer.calls[0].CommandName != "one" || observer.calls[0].InvocationID == "" {
		t.Fatalf("calls[0] = %+v", observer.calls[0])
	}
	if !observer.calls[1].IsError || observer.calls[1].ErrorCode != ToolErrorCodeToolNotFound {
		t.Fatalf("calls[1] = %+v", observer.calls[1])
	}
}
