package tool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petal-labs/commandry/tool/mcp"
)

func TestMonitorCountsEveryNotification(t *testing.T) {
	monitor := NewMonitor(PrimitiveTools)
	if monitor.Primitive() != PrimitiveTools {
		t.Fatalf("Primitive() = %q", monitor.Primitive())
	}

	const goroutines, perGoroutine = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				monitor.NotifyChanged()
			}
		}()
	}
	wg.Wait()

	if got, want := monitor.Version(), uint64(goroutines*perGoroutine); got != want {
		t.Fatalf("Version() = %d, want %d", got, want)
	}
}

func TestMonitorObserveResets(t *testing.T) {
	monitor := NewMonitor(PrimitivePrompts)
	if monitor.Changed() || monitor.Observe() {
		t.Fatal("fresh monitor reports a change")
	}

	monitor.NotifyChanged()
	monitor.NotifyChanged()
	if !monitor.Changed() {
		t.Fatal("Changed() = false after notifications")
	}
	if !monitor.Observe() {
		t.Fatal("Observe() = false after notifications")
	}
	if monitor.Changed() || monitor.Observe() {
		t.Fatal("change still reported after Observe()")
	}
}

func TestMonitorSubscriptionCoalesces(t *testing.T) {
	monitor := NewMonitor(PrimitiveTools)
	sub := monitor.Subscribe()
	defer sub.Close()

	for i := 0; i < 10; i++ {
		monitor.NotifyChanged()
	}

	select {
	case _, ok := <-sub.Changes():
		if !ok {
			t.Fatal("Changes() closed unexpectedly")
		}
	default:
		t.Fatal("expected a pending signal after a burst")
	}
	select {
	case <-sub.Changes():
		t.Fatal("burst was not coalesced into one signal")
	default:
	}
	if monitor.Version() != 10 {
		t.Fatalf("Version() = %d, want 10", monitor.Version())
	}
}

func TestMonitorSubscriptionClose(t *testing.T) {
	monitor := NewMonitor(PrimitiveResources)
	sub := monitor.Subscribe()
	if err := sub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, ok := <-sub.Changes(); ok {
		t.Fatal("Changes() open after Close()")
	}
	monitor.NotifyChanged()
}

func TestMonitorCloseClosesSubscriptions(t *testing.T) {
	monitor := NewMonitor(PrimitiveTools)
	first := monitor.Subscribe()
	second := monitor.Subscribe()
	monitor.Close()

	for _, sub := range []*Subscription{first, second} {
		if _, ok := <-sub.Changes(); ok {
			t.Fatal("Changes() open after monitor Close()")
		}
		_ = sub.Close()
	}

	late := monitor.Subscribe()
	if _, ok := <-late.Changes(); ok {
		t.Fatal("subscription on closed monitor is open")
	}
	monitor.NotifyChanged()
	if monitor.Version() != 1 {
		t.Fatalf("Version() = %d, want 1 after close", monitor.Version())
	}
}

func TestForwardListChanged(t *testing.T) {
	monitor := NewMonitor(PrimitiveTools)
	sent := make(chan mcp.Message, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- ForwardListChanged(ctx, monitor, func(_ context.Context, msg mcp.Message) error {
			sent <- msg
			return nil
		})
	}()

	// Subscription happens inside the goroutine; keep notifying until one lands.
	deadline := time.After(2 * time.Second)
	var msg mcp.Message
waiting:
	for {
		monitor.NotifyChanged()
		select {
		case msg = <-sent:
			break waiting
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("no notification forwarded")
		}
	}
	if msg.Method != mcp.MethodToolsListChanged || !msg.IsNotification() {
		t.Fatalf("forwarded message = %+v", msg)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ForwardListChanged() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ForwardListChanged() did not stop")
	}
}

func TestForwardListChangedStopsOnMonitorClose(t *testing.T) {
	monitor := NewMonitor(PrimitiveTools)
	errCh := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		close(started)
		errCh <- ForwardListChanged(context.Background(), monitor, func(context.Context, mcp.Message) error {
			return nil
		})
	}()
	<-started

	deadline := time.After(2 * time.Second)
	for {
		monitor.Close()
		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("ForwardListChanged() error = %v, want nil", err)
			}
			return
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("ForwardListChanged() did not stop after monitor Close()")
		}
	}
}

func TestForwardListChangedSendError(t *testing.T) {
	monitor := NewMonitor(PrimitiveTools)
	sendErr := errors.New("pipe closed")
	errCh := make(chan error, 1)
	go func() {
		errCh <- ForwardListChanged(context.Background(), monitor, func(context.Context, mcp.Message) error {
			return sendErr
		})
	}()

	deadline := time.After(2 * time.Second)
	for {
		monitor.NotifyChanged()
		select {
		case err := <-errCh:
			if !errors.Is(err, sendErr) {
				t.Fatalf("ForwardListChanged() error = %v, want %v", err, sendErr)
			}
			return
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("ForwardListChanged() did not return send error")
		}
	}
}

func TestForwardListChangedValidatesArguments(t *testing.T) {
	if err := ForwardListChanged(context.Background(), nil, func(context.Context, mcp.Message) error { return nil }); err == nil {
		t.Fatal("ForwardListChanged(nil monitor) error = nil")
	}
	if err := ForwardListChanged(context.Background(), NewMonitor(PrimitiveTools), nil); err == nil {
		t.Fatal("ForwardListChanged(nil send) error = nil")
	}
}
