package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/commandry/command"
	"github.com/petal-labs/commandry/journal"
	"github.com/petal-labs/commandry/loader"
	petalotel "github.com/petal-labs/commandry/otel"
	"github.com/petal-labs/commandry/tool"
	"github.com/petal-labs/commandry/tool/mcp"
)

const (
	// EnvJournalDSN selects the journal database when --journal is empty.
	EnvJournalDSN = "COMMANDRY_JOURNAL"

	defaultJournalRetention = 10000
	shutdownTimeout         = 5 * time.Second
)

// app is the wiring shared by every subcommand: host, reloader, journal,
// telemetry, controller, MCP handler and an in-process client.
type app struct {
	logger     *slog.Logger
	host       *command.MemHost
	reloader   *loader.Reloader
	configPath string
	store      journal.Store
	controller *tool.Controller
	handler    *mcp.Handler
	client     *mcp.Client

	closers []func(context.Context) error
}

func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	logger := newLogger(cmd)
	a := &app{logger: logger}

	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	a.host = command.NewMemHost(command.MemHostConfig{Logger: logger})
	if err := a.loadCommands(cmd); err != nil {
		return nil, err
	}

	store, err := openJournal(cmd)
	if err != nil {
		return nil, err
	}
	a.store = store
	if closer, isCloser := store.(io.Closer); isCloser {
		a.closers = append(a.closers, func(context.Context) error { return closer.Close() })
	}
	recorder, err := journal.NewRecorder(ctx, store, logger)
	if err != nil {
		return nil, exitError(exitRuntime, "opening journal: %v", err)
	}

	endpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	shutdownTelemetry, err := petalotel.Setup(ctx, petalotel.SetupConfig{
		OTLPEndpoint: endpoint,
		ServiceName:  "commandry",
	})
	if err != nil {
		return nil, exitError(exitRuntime, "%v", err)
	}
	a.closers = append(a.closers, shutdownTelemetry)
	telemetry, err := petalotel.NewGlobalToolObserver()
	if err != nil {
		return nil, exitError(exitRuntime, "creating tool observer: %v", err)
	}

	a.controller, err = tool.NewController(tool.ControllerConfig{
		Host:     a.host,
		Logger:   logger,
		Observer: tool.JoinObservers(recorder, telemetry),
	})
	if err != nil {
		return nil, exitError(exitRuntime, "%v", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.controller.Close() })

	a.handler, err = mcp.NewHandler(mcp.HandlerConfig{
		Provider:   a.controller,
		ServerInfo: mcp.ServerInfo{Name: "commandry", Version: cmd.Root().Version},
		Logger:     logger,
	})
	if err != nil {
		return nil, exitError(exitRuntime, "%v", err)
	}

	a.client, err = mcp.NewClient(mcp.NewLoopbackTransport(a.handler), mcp.ClientConfig{
		ClientInfo: mcp.ClientInfo{Name: "commandry-cli", Version: cmd.Root().Version},
	})
	if err != nil {
		return nil, exitError(exitRuntime, "%v", err)
	}
	a.closers = append(a.closers, a.client.Close)
	if _, err := a.client.Initialize(ctx); err != nil {
		return nil, exitError(exitRuntime, "initializing MCP session: %v", err)
	}

	ok = true
	return a, nil
}

// loadCommands discovers the commands file and performs the first load. A
// missing file leaves the host empty.
func (a *app) loadCommands(cmd *cobra.Command) error {
	explicitPath, _ := cmd.Flags().GetString("config")
	path, found, err := loader.DiscoverConfigPath(explicitPath)
	if err != nil {
		return exitError(exitFileNotFound, "%v", err)
	}
	if !found {
		a.logger.Warn("no commands file found; serving an empty catalog")
		return nil
	}

	schedule := loader.DefaultReloadSchedule
	if flag := cmd.Flags().Lookup("schedule"); flag != nil {
		schedule = flag.Value.String()
	}
	reloader, err := loader.NewReloader(loader.ReloaderConfig{
		Path:     path,
		Host:     a.host,
		Schedule: schedule,
		Logger:   a.logger,
	})
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}
	if _, err := reloader.ReloadNow(cmd.Context()); err != nil {
		return exitError(exitValidation, "%v", err)
	}
	a.reloader = reloader
	a.configPath = path
	a.closers = append(a.closers, reloader.Stop)
	return nil
}

func openJournal(cmd *cobra.Command) (journal.Store, error) {
	dsn, _ := cmd.Flags().GetString("journal")
	if strings.TrimSpace(dsn) == "" {
		dsn = os.Getenv(EnvJournalDSN)
	}
	if strings.TrimSpace(dsn) == "" {
		return journal.NewMemStore(), nil
	}
	store, err := journal.NewSQLiteStore(journal.SQLiteStoreConfig{
		DSN:            dsn,
		RetentionCount: defaultJournalRetention,
	})
	if err != nil {
		return nil, exitError(exitRuntime, "opening journal %q: %v", dsn, err)
	}
	return store, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil && a.logger != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func formatRPCError(action string, err error) error {
	var rpcErr *mcp.RPCError
	if errors.As(err, &rpcErr) {
		return exitError(exitRuntime, "%s: %s (code %d)", action, rpcErr.Message, rpcErr.Code)
	}
	return exitError(exitRuntime, "%s: %v", action, err)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
