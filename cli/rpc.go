package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/petal-labs/commandry/tool/mcp"
)

// NewRPCCmd creates the "rpc" subcommand.
func NewRPCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rpc",
		Short: "Handle one JSON-RPC request read from stdin",
		Long:  "Reads a single MCP JSON-RPC request from stdin and writes the response to stdout. Notifications produce no output.",
		Args:  cobra.NoArgs,
		RunE:  runRPC,
	}
}

func runRPC(cmd *cobra.Command, _ []string) error {
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return exitError(exitInputParse, "reading request: %v", err)
	}
	var request mcp.Message
	if err := json.Unmarshal(raw, &request); err != nil {
		code := mcp.CodeParseError
		if json.Valid(raw) {
			code = mcp.CodeInvalidRequest
		}
		return writeLine(cmd, mcp.Message{
			JSONRPC: "2.0",
			ID:      mcp.NullID(),
			Error:   &mcp.RPCError{Code: code, Message: err.Error()},
		})
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	response, ok := a.handler.HandleMessage(cmd.Context(), request)
	if !ok {
		return nil
	}
	return writeLine(cmd, response)
}

func writeLine(cmd *cobra.Command, message mcp.Message) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(message)
}
