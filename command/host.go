package command

import (
	"context"
	"errors"
	"sync"
)

// Host owns the registry of commands.
type Host interface {
	// Commands enumerates registered commands in a stable order.
	Commands() []Command
	// Command looks up one command by name.
	Command(name string) (Command, bool)
	// Watch subscribes fn to "commands changed" events and returns a function
	// that removes the subscription. fn may be called from any goroutine.
	Watch(fn func()) (unwatch func())
	// Invoke executes cmd through the host's dispatcher.
	Invoke(ctx context.Context, cmd Command, inv Invocation) (Result, error)
}

// Dispatcher routes command executions. It is the hook for serialization and
// instrumentation around Command.Execute.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command, inv Invocation) (Result, error)
}

// DirectDispatcher calls Execute with no coordination.
type DirectDispatcher struct{}

// Dispatch executes cmd immediately.
func (DirectDispatcher) Dispatch(ctx context.Context, cmd Command, inv Invocation) (Result, error) {
	if cmd == nil {
		return Result{}, errors.New("command: dispatch of nil command")
	}
	return cmd.Execute(ctx, inv)
}

// SerialDispatcher runs at most one execution per command name at a time.
// Executions of different commands proceed concurrently.
type SerialDispatcher struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewSerialDispatcher creates a per-command serializing dispatcher.
func NewSerialDispatcher() *SerialDispatcher {
	return &SerialDispatcher{slots: make(map[string]chan struct{})}
}

// Dispatch waits for the command's slot, honoring ctx, then executes it.
func (d *SerialDispatcher) Dispatch(ctx context.Context, cmd Command, inv Invocation) (Result, error) {
	if cmd == nil {
		return Result{}, errors.New("command: dispatch of nil command")
	}
	slot := d.slot(cmd.Name())

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-slot }()

	return cmd.Execute(ctx, inv)
}

func (d *SerialDispatcher) slot(name string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slots == nil {
		d.slots = make(map[string]chan struct{})
	}
	slot, ok := d.slots[name]
	if !ok {
		slot = make(chan struct{}, 1)
		d.slots[name] = slot
	}
	return slot
}

var (
	_ Dispatcher = DirectDispatcher{}
	_ Dispatcher = (*SerialDispatcher)(nil)
)
