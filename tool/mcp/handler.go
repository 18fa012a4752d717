package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	defaultServerName    = "commandry"
	defaultServerVersion = "dev"
)

// ToolProvider serves the tools primitive.
type ToolProvider interface {
	ListTools(ctx context.Context) (ToolsListResult, error)
	CallTool(ctx context.Context, params *ToolsCallParams, logger *slog.Logger) (ToolsCallResult, error)
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Provider   ToolProvider
	ServerInfo ServerInfo
	Logger     *slog.Logger
}

// Handler dispatches decoded JSON-RPC requests to a ToolProvider.
type Handler struct {
	provider ToolProvider
	info     ServerInfo
	logger   *slog.Logger
}

// NewHandler creates a method handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Provider == nil {
		return nil, errors.New("mcp: handler requires a tool provider")
	}
	info := cfg.ServerInfo
	if info.Name == "" {
		info.Name = defaultServerName
	}
	if info.Version == "" {
		info.Version = defaultServerVersion
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{provider: cfg.Provider, info: info, logger: logger}, nil
}

// HandleMessage handles one request. The boolean is false for notifications,
// which never get a response.
func (h *Handler) HandleMessage(ctx context.Context, request Message) (Message, bool) {
	if request.IsNotification() {
		h.logger.Debug("mcp notification", "method", request.Method)
		return Message{}, false
	}
	if request.JSONRPC != "" && request.JSONRPC != jsonRPCVersion {
		return errorResponse(request.ID, CodeInvalidRequest, fmt.Sprintf("unsupported jsonrpc version %q", request.JSONRPC)), true
	}
	if strings.TrimSpace(request.Method) == "" {
		return errorResponse(request.ID, CodeInvalidRequest, "method is missing"), true
	}

	result, err := h.dispatch(ctx, request)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return Message{JSONRPC: jsonRPCVersion, ID: request.ID, Error: rpcErr}, true
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return errorResponse(request.ID, CodeRequestCancelled, "request cancelled"), true
		}
		h.logger.Warn("mcp request failed", "method", request.Method, "id", request.ID.String(), "error", err)
		return errorResponse(request.ID, CodeInternalError, err.Error()), true
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(request.ID, CodeInternalError, fmt.Sprintf("encode result: %v", err)), true
	}
	return Message{JSONRPC: jsonRPCVersion, ID: request.ID, Result: raw}, true
}

func (h *Handler) dispatch(ctx context.Context, request Message) (any, error) {
	switch request.Method {
	case MethodInitialize:
		var params InitializeParams
		if err := decodeParams(request.Params, &params); err != nil {
			return nil, err
		}
		h.logger.Info("mcp client connected",
			"client", params.ClientInfo.Name,
			"client_version", params.ClientInfo.Version,
			"protocol_version", params.ProtocolVersion,
		)
		return InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities: map[string]any{
				"tools": map[string]any{"listChanged": true},
			},
			ServerInfo: h.info,
		}, nil
	case MethodPing:
		return map[string]any{}, nil
	case MethodToolsList:
		return h.provider.ListTools(ctx)
	case MethodToolsCall:
		var params ToolsCallParams
		if err := decodeParams(request.Params, &params); err != nil {
			return nil, err
		}
		logger := h.logger.With("method", request.Method, "request_id", request.ID.String())
		return h.provider.CallTool(ctx, &params, logger)
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", request.Method)}
	}
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

// errorResponse builds an error reply. A request without an id is answered
// with a null id.
func errorResponse(id ID, code int, message string) Message {
	if id.IsZero() {
		id = NullID()
	}
	return Message{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}

// ListChangedNotification builds the tools list_changed notification.
func ListChangedNotification() Message {
	return Message{JSONRPC: jsonRPCVersion, Method: MethodToolsListChanged}
}
