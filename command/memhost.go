package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// ErrCommandExists is returned when registering a name that is already taken.
var ErrCommandExists = errors.New("command: already registered")

// ErrCommandNotFound is returned when removing an unknown command.
var ErrCommandNotFound = errors.New("command: not found")

// MemHostConfig configures an in-memory host.
type MemHostConfig struct {
	// Dispatcher routes executions (default: a SerialDispatcher).
	Dispatcher Dispatcher
	Logger     *slog.Logger
}

// MemHost is an in-memory Host that preserves registration order.
type MemHost struct {
	dispatcher Dispatcher
	logger     *slog.Logger

	mu       sync.RWMutex
	order    []string
	commands map[string]Command

	watchMu  sync.Mutex
	watchers map[uint64]func()
	nextID   uint64
}

// NewMemHost creates an empty in-memory host.
func NewMemHost(cfg MemHostConfig) *MemHost {
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = NewSerialDispatcher()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MemHost{
		dispatcher: dispatcher,
		logger:     logger,
		commands:   make(map[string]Command),
		watchers:   make(map[uint64]func()),
	}
}

// Register adds commands in order and fires one change event.
func (h *MemHost) Register(cmds ...Command) error {
	if len(cmds) == 0 {
		return nil
	}

	h.mu.Lock()
	batch := make(map[string]struct{}, len(cmds))
	for _, cmd := range cmds {
		name, err := commandName(cmd)
		if err != nil {
			h.mu.Unlock()
			return err
		}
		_, taken := h.commands[name]
		_, dup := batch[name]
		if taken || dup {
			h.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrCommandExists, name)
		}
		batch[name] = struct{}{}
	}
	for _, cmd := range cmds {
		h.commands[cmd.Name()] = cmd
		h.order = append(h.order, cmd.Name())
	}
	h.mu.Unlock()

	h.logger.Debug("commands registered", "count", len(cmds))
	h.fire()
	return nil
}

// Remove unregisters one command and fires one change event.
func (h *MemHost) Remove(name string) error {
	h.mu.Lock()
	if _, ok := h.commands[name]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrCommandNotFound, name)
	}
	delete(h.commands, name)
	h.order = slices.DeleteFunc(h.order, func(candidate string) bool {
		return candidate == name
	})
	h.mu.Unlock()

	h.logger.Debug("command removed", "command", name)
	h.fire()
	return nil
}

// Replace swaps the whole registry for cmds and fires one change event.
func (h *MemHost) Replace(cmds ...Command) error {
	commands := make(map[string]Command, len(cmds))
	order := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		name, err := commandName(cmd)
		if err != nil {
			return err
		}
		if _, dup := commands[name]; dup {
			return fmt.Errorf("%w: %q", ErrCommandExists, name)
		}
		commands[name] = cmd
		order = append(order, name)
	}

	h.mu.Lock()
	h.commands = commands
	h.order = order
	h.mu.Unlock()

	h.logger.Debug("commands replaced", "count", len(cmds))
	h.fire()
	return nil
}

// Commands returns registered commands in registration order.
func (h *MemHost) Commands() []Command {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Command, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.commands[name])
	}
	return out
}

// Command looks up one command by name.
func (h *MemHost) Command(name string) (Command, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cmd, ok := h.commands[name]
	return cmd, ok
}

// Len returns the number of registered commands.
func (h *MemHost) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}

// Watch subscribes fn to change events.
func (h *MemHost) Watch(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	h.watchMu.Lock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = fn
	h.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.watchMu.Lock()
			delete(h.watchers, id)
			h.watchMu.Unlock()
		})
	}
}

// Invoke executes cmd through the configured dispatcher.
func (h *MemHost) Invoke(ctx context.Context, cmd Command, inv Invocation) (Result, error) {
	return h.dispatcher.Dispatch(ctx, cmd, inv)
}

// fire calls every watcher once, outside the registry lock.
func (h *MemHost) fire() {
	h.watchMu.Lock()
	ids := make([]uint64, 0, len(h.watchers))
	for id := range h.watchers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	callbacks := make([]func(), 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, h.watchers[id])
	}
	h.watchMu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func commandName(cmd Command) (string, error) {
	if cmd == nil {
		return "", errors.New("command: nil command")
	}
	name := cmd.Name()
	if strings.TrimSpace(name) == "" {
		return "", errors.New("command: name is required")
	}
	return name, nil
}

var _ Host = (*MemHost)(nil)
