package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/petal-labs/commandry/command"
)

// DefaultReloadSchedule re-reads the commands file twice a minute.
const DefaultReloadSchedule = "@every 30s"

var reloadCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Replacer swaps the full command set in one change event.
type Replacer interface {
	Replace(cmds ...command.Command) error
}

// ReloaderConfig configures a Reloader.
type ReloaderConfig struct {
	Path string
	Host Replacer
	// Schedule is a UTC 5-field cron expression or descriptor such as
	// "@every 30s".
	Schedule string
	Logger   *slog.Logger
}

// Reloader keeps a host in sync with a commands file. The host is replaced
// only when the file content changes, so an unchanged file never produces a
// change event.
type Reloader struct {
	path     string
	host     Replacer
	schedule cron.Schedule
	logger   *slog.Logger

	mu          sync.Mutex
	fingerprint string
	cron        *cron.Cron
}

// NewReloader validates cfg and returns a stopped reloader.
func NewReloader(cfg ReloaderConfig) (*Reloader, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("loader: reloader requires a config path")
	}
	if cfg.Host == nil {
		return nil, errors.New("loader: reloader requires a host")
	}
	expr := cfg.Schedule
	if strings.TrimSpace(expr) == "" {
		expr = DefaultReloadSchedule
	}
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		path:     cfg.Path,
		host:     cfg.Host,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// ParseSchedule parses a UTC-only cron expression or descriptor.
func ParseSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := reloadCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// NextRun returns the next scheduled reload after now, in UTC.
func (r *Reloader) NextRun(now time.Time) time.Time {
	return r.schedule.Next(now.UTC())
}

// ReloadNow re-reads the file and replaces the host's commands when the
// content changed. It reports whether a replacement happened. On error the
// host keeps its current commands.
func (r *Reloader) ReloadNow(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, sum, err := loadFile(r.path)
	if err != nil {
		return false, err
	}
	if sum == r.fingerprint {
		return false, nil
	}
	cmds, err := file.BuildCommands(filepath.Dir(r.path))
	if err != nil {
		return false, fmt.Errorf("config %q: %w", r.path, err)
	}
	if err := r.host.Replace(cmds...); err != nil {
		return false, fmt.Errorf("loader: replace commands: %w", err)
	}
	r.fingerprint = sum
	r.logger.Info("commands reloaded", "path", r.path, "commands", len(cmds))
	return true, nil
}

// Start runs scheduled reloads in the background until Stop.
func (r *Reloader) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return
	}

	scheduler := cron.New(cron.WithLocation(time.UTC), cron.WithParser(reloadCronParser))
	scheduler.Schedule(r.schedule, cron.FuncJob(func() {
		if _, err := r.ReloadNow(context.Background()); err != nil {
			r.logger.Warn("scheduled reload failed", "path", r.path, "error", err)
		}
	}))
	scheduler.Start()
	r.cron = scheduler
}

// Stop halts scheduled reloads and waits for a running reload to finish or
// ctx to end.
func (r *Reloader) Stop(ctx context.Context) error {
	r.mu.Lock()
	scheduler := r.cron
	r.cron = nil
	r.mu.Unlock()
	if scheduler == nil {
		return nil
	}

	done := scheduler.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
