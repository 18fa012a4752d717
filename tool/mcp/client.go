package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	defaultClientName    = "commandry-cli"
	defaultClientVersion = "dev"
)

// Transport carries JSON-RPC messages between a Client and a server.
type Transport interface {
	Send(ctx context.Context, message Message) error
	Receive(ctx context.Context) (Message, error)
	Close(ctx context.Context) error
}

// ClientConfig configures a Client.
type ClientConfig struct {
	ClientInfo ClientInfo
	// ProtocolVersion defaults to ProtocolVersion.
	ProtocolVersion string
}

// Client drives an MCP server over a Transport the way a remote client would.
// The CLI uses it against a Handler through a LoopbackTransport, so every
// command exercises the same wire path an external client takes.
//
// Calls are serialized: each request waits for the response carrying its own
// id. Server notifications that arrive meanwhile are kept for Notifications.
type Client struct {
	transport       Transport
	info            ClientInfo
	protocolVersion string

	seq atomic.Int64

	// callMu serializes request/response exchanges on the transport.
	callMu sync.Mutex

	mu            sync.Mutex
	session       *InitializeResult
	notifications []Message
}

// ToolCallError reports a tools/call that completed with isError set. The
// full result is kept so callers can still render it.
type ToolCallError struct {
	Tool   string
	Result ToolsCallResult
}

func (e *ToolCallError) Error() string {
	if e == nil {
		return ""
	}
	message := strings.TrimSpace(ResultText(e.Result))
	if message == "" {
		return fmt.Sprintf("mcp: tool %q reported an error", e.Tool)
	}
	return fmt.Sprintf("mcp: tool %q reported an error: %s", e.Tool, message)
}

// ResultText joins the text of every content block, one per line.
func ResultText(result ToolsCallResult) string {
	parts := make([]string, 0, len(result.Content))
	for _, block := range result.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// NewClient returns a client bound to transport.
func NewClient(transport Transport, cfg ClientConfig) (*Client, error) {
	if transport == nil {
		return nil, errors.New("mcp: client requires a transport")
	}
	info := cfg.ClientInfo
	if info.Name == "" {
		info.Name = defaultClientName
	}
	if info.Version == "" {
		info.Version = defaultClientVersion
	}
	version := cfg.ProtocolVersion
	if version == "" {
		version = ProtocolVersion
	}
	return &Client{transport: transport, info: info, protocolVersion: version}, nil
}

// Initialize performs the handshake once, checks the negotiated protocol
// revision and sends notifications/initialized. Later calls return the
// cached session.
func (c *Client) Initialize(ctx context.Context) (InitializeResult, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		return *session, nil
	}

	var result InitializeResult
	err := c.request(ctx, MethodInitialize, InitializeParams{
		ProtocolVersion: c.protocolVersion,
		ClientInfo:      c.info,
	}, &result)
	if err != nil {
		return InitializeResult{}, err
	}
	if result.ProtocolVersion != c.protocolVersion {
		return InitializeResult{}, &RequestError{
			Method: MethodInitialize,
			Err:    fmt.Errorf("server speaks protocol %q, want %q", result.ProtocolVersion, c.protocolVersion),
		}
	}
	if err := c.transport.Send(ctx, Message{JSONRPC: jsonRPCVersion, Method: MethodInitialized}); err != nil {
		return InitializeResult{}, &RequestError{Method: MethodInitialized, Err: err}
	}

	c.mu.Lock()
	c.session = &result
	c.mu.Unlock()
	return result, nil
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.request(ctx, MethodPing, nil, nil)
}

// ToolsList returns the tools the server advertises.
func (c *Client) ToolsList(ctx context.Context) ([]Tool, error) {
	var result ToolsListResult
	if err := c.request(ctx, MethodToolsList, nil, &result); err != nil {
		return nil, err
	}
	if result.Tools == nil {
		return []Tool{}, nil
	}
	return result.Tools, nil
}

// ToolsCall calls a tool. A result with isError set is returned together
// with a *ToolCallError; protocol failures return a *RequestError and a zero
// result.
func (c *Client) ToolsCall(ctx context.Context, name string, arguments map[string]any) (ToolsCallResult, error) {
	var result ToolsCallResult
	err := c.request(ctx, MethodToolsCall, ToolsCallParams{Name: name, Arguments: arguments}, &result)
	if err != nil {
		return ToolsCallResult{}, err
	}
	if result.IsError {
		return result, &ToolCallError{Tool: name, Result: result}
	}
	return result, nil
}

// Notifications returns and clears the server notifications received so far.
func (c *Client) Notifications() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.notifications
	c.notifications = nil
	return pending
}

// Close closes the transport.
func (c *Client) Close(ctx context.Context) error {
	return c.transport.Close(ctx)
}

func (c *Client) request(ctx context.Context, method string, params any, out any) error {
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return &RequestError{Method: method, Err: fmt.Errorf("encode params: %w", err)}
		}
		raw = encoded
	}
	id := NumberID(c.seq.Add(1))

	c.callMu.Lock()
	defer c.callMu.Unlock()

	if err := c.transport.Send(ctx, Message{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: raw}); err != nil {
		return &RequestError{Method: method, Err: err}
	}
	response, err := c.await(ctx, id)
	if err != nil {
		return &RequestError{Method: method, Err: err}
	}
	if response.Error != nil {
		return &RequestError{Method: method, Err: response.Error}
	}
	if out == nil || len(response.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Result, out); err != nil {
		return &RequestError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

// await reads until the response for id arrives. Notifications are kept and
// responses to other ids are dropped.
func (c *Client) await(ctx context.Context, id ID) (Message, error) {
	for {
		message, err := c.transport.Receive(ctx)
		if err != nil {
			return Message{}, err
		}
		if message.JSONRPC != jsonRPCVersion {
			return Message{}, fmt.Errorf("unsupported jsonrpc version %q", message.JSONRPC)
		}
		switch {
		case message.IsNotification():
			c.mu.Lock()
			c.notifications = append(c.notifications, message)
			c.mu.Unlock()
		case message.Method == "" && message.ID == id:
			return message, nil
		}
	}
}
