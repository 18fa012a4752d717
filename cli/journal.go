package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const defaultJournalLimit = 50

// NewJournalCmd creates the "journal" subcommand.
func NewJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recorded catalog changes and tool calls",
		Args:  cobra.NoArgs,
		RunE:  runJournal,
	}
	cmd.Flags().Uint64("after", 0, "Only show entries with a sequence number greater than this")
	cmd.Flags().Int("limit", defaultJournalLimit, "Maximum number of entries (0 = all)")
	cmd.Flags().Bool("json", false, "Print entries as JSON")
	return cmd
}

func runJournal(cmd *cobra.Command, _ []string) error {
	after, _ := cmd.Flags().GetUint64("after")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return exitError(exitValidation, "--limit must not be negative")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.store.List(cmd.Context(), after, limit)
	if err != nil {
		return exitError(exitRuntime, "listing journal: %v", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), entries)
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "SEQ\tTIME\tKIND\tTOOL\tERROR\tDURATION\tMESSAGE")
	for _, entry := range entries {
		tool := entry.Tool
		if tool == "" {
			tool = "-"
		}
		message := entry.Message
		if message == "" {
			message = "-"
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%t\t%dms\t%s\n",
			entry.Seq,
			entry.Time.UTC().Format(time.RFC3339),
			entry.Kind,
			tool,
			entry.IsError,
			entry.DurationMS,
			message,
		)
	}
	return writer.Flush()
}
