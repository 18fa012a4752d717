// Package cli implements the commandry command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the "commandry" root command with every subcommand
// attached.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "commandry",
		Short: "Expose host commands as MCP tools",
		Long:  "commandry serves locally declared commands as MCP tools and keeps clients in sync as the declarations change.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to the commands file (default: ./commandry.yaml, then ~/.commandry/config.yaml)")
	flags.String("journal", "", "Journal SQLite DSN (default: $COMMANDRY_JOURNAL, in-memory when empty)")
	flags.String("otlp-endpoint", "", "OTLP/HTTP endpoint for trace export")
	flags.Bool("verbose", false, "Enable verbose/debug logging")
	flags.Bool("quiet", false, "Suppress all output except errors")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("commandry version %s\n", version))

	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewRPCCmd())
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewJournalCmd())
	return root
}
