package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/commandry/command"
	"github.com/petal-labs/commandry/tool/mcp"
)

const defaultDescribeConcurrency = 8

// ErrorPrefix starts the text of every failed call result.
const ErrorPrefix = "Error: "

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Host   command.Host
	Mapper Mapper
	Logger *slog.Logger
	// Observer receives list, call and change observations. When nil the
	// process-wide observer set with SetObserver is used.
	Observer Observer
	// DescribeConcurrency bounds concurrent Describe calls during ListTools.
	DescribeConcurrency int
}

// Controller exposes the host's commands as MCP tools. It keeps no catalog of
// its own: every list and call reads the host and describes commands afresh.
type Controller struct {
	host        command.Host
	mapper      Mapper
	logger      *slog.Logger
	observer    Observer
	concurrency int

	monitor   *Monitor
	unwatch   func()
	closeOnce sync.Once
}

// NewController creates a controller and subscribes it to host change events.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Host == nil {
		return nil, errors.New("tool: controller requires a command host")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = defaultObserver()
	}
	concurrency := cfg.DescribeConcurrency
	if concurrency <= 0 {
		concurrency = defaultDescribeConcurrency
	}

	c := &Controller{
		host:        cfg.Host,
		mapper:      cfg.Mapper,
		logger:      logger,
		observer:    observer,
		concurrency: concurrency,
		monitor:     NewMonitor(PrimitiveTools),
	}
	c.unwatch = cfg.Host.Watch(c.commandsChanged)
	return c, nil
}

// Monitor returns the tools change monitor fed by host events.
func (c *Controller) Monitor() *Monitor {
	return c.monitor
}

// Close unsubscribes from the host and closes monitor subscriptions.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		if c.unwatch != nil {
			c.unwatch()
		}
		c.monitor.Close()
	})
	return nil
}

func (c *Controller) commandsChanged() {
	version := c.monitor.NotifyChanged()
	c.logger.Debug("command catalog changed", "primitive", PrimitiveTools, "version", version)
	c.observer.ObserveChange(ChangeObservation{
		Primitive: PrimitiveTools,
		Version:   version,
		Time:      time.Now().UTC(),
	})
}

// ListTools describes every host command and returns the exposed ones as
// tools, in host enumeration order.
func (c *Controller) ListTools(ctx context.Context) (mcp.ToolsListResult, error) {
	start := time.Now()
	cmds := c.host.Commands()

	described, err := c.describeAll(ctx, cmds)
	if err != nil {
		c.observer.ObserveList(ListObservation{
			Commands:   len(cmds),
			DurationMS: time.Since(start).Milliseconds(),
			ErrorCode:  toolErrorCode(err),
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return mcp.ToolsListResult{}, fmt.Errorf("tool: list tools: %w", ctxErr)
		}
		c.logger.Warn("list tools failed", "error", err)
		return mcp.ToolsListResult{}, err
	}

	tools := make([]mcp.Tool, 0, len(described))
	seen := make(map[string]string, len(described))
	for i, metadata := range described {
		props := ReadToolProperties(metadata.Properties)
		if !props.Exposed {
			continue
		}
		t := c.toolFor(metadata, props)
		if owner, dup := seen[t.Name]; dup {
			c.logger.Warn("duplicate tool name", "tool", t.Name, "command", cmds[i].Name(), "first_command", owner)
		} else {
			seen[t.Name] = cmds[i].Name()
		}
		tools = append(tools, t)
	}

	c.observer.ObserveList(ListObservation{
		Commands:   len(cmds),
		Tools:      len(tools),
		DurationMS: time.Since(start).Milliseconds(),
		Success:    true,
	})
	return mcp.ToolsListResult{Tools: tools}, nil
}

func (c *Controller) describeAll(ctx context.Context, cmds []command.Command) ([]command.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	described := make([]command.Metadata, len(cmds))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)
	for i, cmd := range cmds {
		group.Go(func() error {
			metadata, err := describe(groupCtx, cmd)
			if err != nil {
				return err
			}
			described[i] = metadata
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return described, nil
}

func describe(ctx context.Context, cmd command.Command) (command.Metadata, error) {
	metadata, err := cmd.Describe(ctx)
	if err != nil {
		toolErr := newToolError(
			ToolErrorCodeDescribeFailed,
			fmt.Sprintf("describing command %s failed: %v", cmd.Name(), err),
			err,
		)
		return command.Metadata{}, withToolErrorDetails(toolErr, map[string]any{"command": cmd.Name()})
	}
	if strings.TrimSpace(metadata.Name) == "" {
		metadata.Name = cmd.Name()
	}
	return metadata, nil
}

func (c *Controller) toolFor(metadata command.Metadata, props ToolProperties) mcp.Tool {
	return mcp.Tool{
		Name:        props.ToolName(metadata),
		Description: metadata.Description,
		InputSchema: c.mapper.ToJSONSchema(metadata.Schema),
		Annotations: props.Annotations(metadata),
	}
}

// callOutcome is the result of running one call through every step. Exactly
// one of err and content is meaningful.
type callOutcome struct {
	commandName string
	content     []mcp.ContentBlock
	structured  map[string]any
	err         error
}

func (o callOutcome) response() mcp.ToolsCallResult {
	if o.err != nil {
		return mcp.ToolsCallResult{
			Content: []mcp.ContentBlock{mcp.TextContent(ErrorPrefix + userMessage(o.err))},
			IsError: true,
		}
	}
	content := o.content
	if content == nil {
		content = []mcp.ContentBlock{}
	}
	return mcp.ToolsCallResult{
		Content:           content,
		StructuredContent: o.structured,
	}
}

// CallTool resolves the named tool, maps its arguments and runs it through the
// host. Failures are reported as an error result with IsError set. A non-nil
// error is returned only when ctx is done before the call completes.
func (c *Controller) CallTool(ctx context.Context, params *mcp.ToolsCallParams, logger *slog.Logger) (mcp.ToolsCallResult, error) {
	if logger == nil {
		logger = c.logger
	}
	start := time.Now()
	invocationID := uuid.NewString()
	name := ""
	if params != nil {
		name = strings.TrimSpace(params.Name)
	}

	outcome := c.call(ctx, params, invocationID, logger)

	observation := CallObservation{
		ToolName:     name,
		CommandName:  outcome.commandName,
		InvocationID: invocationID,
		DurationMS:   time.Since(start).Milliseconds(),
		IsError:      outcome.err != nil,
		ErrorCode:    toolErrorCode(outcome.err),
	}
	if outcome.err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			observation.Canceled = true
			observation.ErrorCode = ToolErrorCodeCanceled
			observation.Message = ctxErr.Error()
			c.observer.ObserveCall(observation)
			logger.Debug("tool call abandoned", "tool", name, "invocation_id", invocationID, "error", ctxErr)
			return mcp.ToolsCallResult{}, fmt.Errorf("tool: call %q: %w", name, ctxErr)
		}
		observation.Message = userMessage(outcome.err)
		logger.Warn("tool call failed",
			"tool", name,
			"invocation_id", invocationID,
			"code", observation.ErrorCode,
			"error", outcome.err,
		)
	}
	c.observer.ObserveCall(observation)
	return outcome.response(), nil
}

func (c *Controller) call(ctx context.Context, params *mcp.ToolsCallParams, invocationID string, logger *slog.Logger) callOutcome {
	if params == nil || strings.TrimSpace(params.Name) == "" {
		return callOutcome{err: newToolError(ToolErrorCodeInvalidRequest, "tool name is missing", nil)}
	}
	name := strings.TrimSpace(params.Name)

	cmd, metadata, err := c.resolve(ctx, name)
	if err != nil {
		return callOutcome{err: err}
	}
	outcome := callOutcome{commandName: cmd.Name()}

	parameters, err := c.mapper.ToParameters(params.Arguments, metadata.Schema)
	if err != nil {
		toolErr := newToolError(ToolErrorCodeMappingFailed, err.Error(), err)
		var mappingErr *MappingError
		if errors.As(err, &mappingErr) {
			toolErr = withToolErrorDetails(toolErr, map[string]any{"parameter": mappingErr.Path})
		}
		outcome.err = toolErr
		return outcome
	}

	inv := command.Invocation{
		ID:         invocationID,
		Parameters: parameters,
		Logger:     logger.With("tool", name, "command", cmd.Name(), "invocation_id", invocationID),
	}
	if err := ctx.Err(); err != nil {
		outcome.err = err
		return outcome
	}
	result, err := c.invoke(ctx, cmd, inv)
	if err != nil {
		outcome.err = newToolError(ToolErrorCodeExecutionFailed, err.Error(), err)
		return outcome
	}
	if result.Err != nil {
		outcome.err = newToolError(ToolErrorCodeCommandFailed, result.Err.Error(), result.Err)
		return outcome
	}

	records := result.NonNull()
	outcome.content = make([]mcp.ContentBlock, 0, len(records))
	for _, record := range records {
		switch record.Kind() {
		case command.RecordStructured:
			outcome.content = append(outcome.content, c.mapper.ToContent(record.Fields()))
		default:
			outcome.content = append(outcome.content, mcp.TextContent(record.Text()))
		}
	}
	if len(records) == 1 && records[0].Kind() == command.RecordStructured {
		outcome.structured = outcome.content[0].Structured
	}
	return outcome
}

// invoke runs the command through the host, converting a panic into an error.
func (c *Controller) invoke(ctx context.Context, cmd command.Command, inv command.Invocation) (result command.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s panicked: %v", cmd.Name(), r)
		}
	}()
	return c.host.Invoke(ctx, cmd, inv)
}

// resolve finds the exposed command advertised under name. A direct lookup by
// command name wins; otherwise exposed commands are searched for the name
// ListTools advertises, which is the Name override or else the described
// metadata name.
func (c *Controller) resolve(ctx context.Context, name string) (command.Command, command.Metadata, error) {
	if cmd, ok := c.host.Command(name); ok && cmd != nil {
		metadata, err := describe(ctx, cmd)
		if err != nil {
			return nil, command.Metadata{}, err
		}
		if ReadToolProperties(metadata.Properties).Exposed {
			return cmd, metadata, nil
		}
	}

	for _, cmd := range c.host.Commands() {
		if cmd == nil || cmd.Name() == name {
			continue
		}
		metadata, err := describe(ctx, cmd)
		if err != nil {
			if ctx.Err() != nil {
				return nil, command.Metadata{}, err
			}
			c.logger.Debug("skipping command during tool lookup", "command", cmd.Name(), "error", err)
			continue
		}
		props := ReadToolProperties(metadata.Properties)
		if props.Exposed && props.ToolName(metadata) == name {
			return cmd, metadata, nil
		}
	}

	toolErr := newToolError(ToolErrorCodeToolNotFound, fmt.Sprintf("tool %s was not found", name), nil)
	return nil, command.Metadata{}, withToolErrorDetails(toolErr, map[string]any{"tool": name})
}
