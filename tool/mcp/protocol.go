package mcp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	jsonRPCVersion = "2.0"

	// ProtocolVersion is the MCP revision this server speaks.
	ProtocolVersion = "2025-06-18"
)

// MCP method names handled by the server side.
const (
	MethodInitialize       = "initialize"
	MethodInitialized      = "notifications/initialized"
	MethodPing             = "ping"
	MethodToolsList        = "tools/list"
	MethodToolsCall        = "tools/call"
	MethodToolsListChanged = "notifications/tools/list_changed"
	MethodCancelled        = "notifications/cancelled"
)

// JSON-RPC and MCP error codes.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeRequestCancelled = -32800
)

// Content types carried by ContentBlock.
const (
	ContentTypeText = "text"
	MimeTypeJSON    = "application/json"
)

// Message is a JSON-RPC 2.0 envelope.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id,omitzero"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsNotification reports whether the message expects no response. Only a
// request without an id member is a notification; id 0 and null are not.
func (m Message) IsNotification() bool {
	return m.ID.IsZero() && m.Method != ""
}

// ID is a JSON-RPC request id: a number, a string or null. The zero value
// means the id member is absent. The encoded form is kept verbatim so a
// response echoes exactly what the request carried.
type ID struct {
	raw string
}

// NumberID returns a numeric id.
func NumberID(n int64) ID {
	return ID{raw: strconv.FormatInt(n, 10)}
}

// StringID returns a string id.
func StringID(s string) ID {
	raw, _ := json.Marshal(s)
	return ID{raw: string(raw)}
}

// NullID returns the null id used when a request's id cannot be determined.
func NullID() ID {
	return ID{raw: "null"}
}

// IsZero reports whether the id member is absent.
func (id ID) IsZero() bool {
	return id.raw == ""
}

// IsNull reports whether the id is the JSON null literal.
func (id ID) IsNull() bool {
	return id.raw == "null"
}

// String returns the id for display: the number, the unquoted string,
// "null", or "" when absent.
func (id ID) String() string {
	if strings.HasPrefix(id.raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(id.raw), &s); err == nil {
			return s
		}
	}
	return id.raw
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.raw == "" {
		return []byte("null"), nil
	}
	return []byte(id.raw), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return fmt.Errorf("mcp: invalid id: %w", err)
		}
	case raw != "" && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')):
		var n json.Number
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return fmt.Errorf("mcp: invalid id: %w", err)
		}
	default:
		return fmt.Errorf("mcp: id must be a string, number or null, got %s", raw)
	}
	id.raw = raw
	return nil
}

// RPCError is the JSON-RPC error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp: rpc error %d: %s", e.Code, e.Message)
}

// RequestError wraps a failure while handling one request method.
type RequestError struct {
	Method string
	Err    error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp: request %q failed: %v", e.Method, e.Err)
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ClientInfo identifies the connecting MCP client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerInfo describes this MCP server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams is received in the MCP initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// InitializeResult is returned by the MCP initialize request.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// JSONSchema is the subset of JSON Schema used for tool input shapes.
type JSONSchema struct {
	Type            string                `json:"type,omitempty"`
	Description     string                `json:"description,omitempty"`
	Properties      map[string]JSONSchema `json:"properties,omitempty"`
	Required        []string              `json:"required,omitempty"`
	Items           *JSONSchema           `json:"items,omitempty"`
	Enum            []any                 `json:"enum,omitempty"`
	Default         any                   `json:"default,omitempty"`
	ContentEncoding string                `json:"contentEncoding,omitempty"`
}

// ToolAnnotations are behavioral hints for a tool. Nil hints are unset.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// Tool describes one callable tool in tools/list.
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema JSONSchema       `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// ToolsListResult is returned by the MCP tools/list request.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolsCallParams is received in the MCP tools/call request.
type ToolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ContentBlock is one MCP content item returned by tools/call. Structured
// blocks carry the record in Structured and its JSON rendering in Text.
type ContentBlock struct {
	Type       string         `json:"type"`
	Text       string         `json:"text,omitempty"`
	MimeType   string         `json:"mimeType,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`
}

// IsStructured reports whether the block was built from a key/value record.
func (b ContentBlock) IsStructured() bool {
	return b.Structured != nil
}

// ToolsCallResult is returned by the MCP tools/call request.
type ToolsCallResult struct {
	Content           []ContentBlock `json:"content"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError"`
}

// TextContent builds a plain text block.
func TextContent(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}
