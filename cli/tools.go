package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/commandry/tool/mcp"
)

// NewToolsCmd creates the "tools" command group.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List and call exposed tools",
	}
	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsCallCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools exposed by the command host",
		Args:  cobra.NoArgs,
		RunE:  runToolsList,
	}
	cmd.Flags().Bool("json", false, "Print the tools/list result as JSON")
	return cmd
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	tools, err := a.client.ToolsList(cmd.Context())
	if err != nil {
		return formatRPCError("listing tools", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), mcp.ToolsListResult{Tools: tools})
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tTITLE\tHINTS")
	for _, t := range tools {
		title := "-"
		if t.Annotations != nil && strings.TrimSpace(t.Annotations.Title) != "" {
			title = t.Annotations.Title
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", t.Name, title, displayHints(t.Annotations))
	}
	return writer.Flush()
}

func displayHints(annotations *mcp.ToolAnnotations) string {
	if annotations == nil {
		return "-"
	}
	var hints []string
	add := func(name string, value *bool) {
		if value != nil && *value {
			hints = append(hints, name)
		}
	}
	add("read-only", annotations.ReadOnlyHint)
	add("destructive", annotations.DestructiveHint)
	add("idempotent", annotations.IdempotentHint)
	add("open-world", annotations.OpenWorldHint)
	if len(hints) == 0 {
		return "-"
	}
	return strings.Join(hints, ",")
}

func newToolsCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <name>",
		Short: "Call a tool and print the tools/call result",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsCall,
	}
	cmd.Flags().String("args", "", "Tool arguments as an inline JSON object")
	return cmd
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	arguments, err := parseToolArguments(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.client.ToolsCall(cmd.Context(), args[0], arguments)
	var callErr *mcp.ToolCallError
	if err != nil && !errors.As(err, &callErr) {
		return formatRPCError("calling tool", err)
	}
	if writeErr := writeJSON(cmd.OutOrStdout(), result); writeErr != nil {
		return writeErr
	}
	if callErr != nil {
		return exitError(exitRuntime, "tool %s reported an error", args[0])
	}
	return nil
}

func parseToolArguments(cmd *cobra.Command) (map[string]any, error) {
	raw, _ := cmd.Flags().GetString("args")
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var arguments map[string]any
	if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
		return nil, exitError(exitInputParse, "invalid --args JSON: %v", err)
	}
	return arguments, nil
}
