package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petal-labs/commandry/loader"
	"github.com/petal-labs/commandry/tool"
	"github.com/petal-labs/commandry/tool/mcp"
)

// NewWatchCmd creates the "watch" subcommand.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the commands file and print tools/list_changed notifications",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
	cmd.Flags().String("schedule", loader.DefaultReloadSchedule, "Reload schedule (UTC cron expression or @every descriptor)")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if a.reloader == nil {
		return exitError(exitValidation, "watch requires a commands file")
	}
	a.reloader.Start()
	a.logger.Info("watching commands file",
		"path", a.configPath,
		"tools_version", a.controller.Monitor().Version(),
	)

	send := func(_ context.Context, message mcp.Message) error {
		return writeLine(cmd, message)
	}
	err = tool.ForwardListChanged(ctx, a.controller.Monitor(), send)
	if err != nil && !errors.Is(err, context.Canceled) {
		return exitError(exitRuntime, "forwarding notifications: %v", err)
	}
	return nil
}
