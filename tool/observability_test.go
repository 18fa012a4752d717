package tool

import (
	"testing"

	"github.com/petal-labs/commandry/command"
)

func TestSetObserverIsFallbackForControllers(t *testing.T) {
	observer := &recordingObserver{}
	SetObserver(observer)
	t.Cleanup(func() { SetObserver(nil) })

	host := command.NewMemHost(command.MemHostConfig{})
	controller, err := NewController(ControllerConfig{Host: host})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(func() { _ = controller.Close() })

	if _, err := controller.CallTool(t.Context(), nil, nil); err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if len(observer.calls) != 1 {
		t.Fatalf("fallback observer calls = %d, want 1", len(observer.calls))
	}
	if observer.calls[0].ErrorCode != ToolErrorCodeInvalidRequest {
		t.Fatalf("ErrorCode = %q, want %q", observer.calls[0].ErrorCode, ToolErrorCodeInvalidRequest)
	}
}

func TestJoinObserversFansOut(t *testing.T) {
	first := &recordingObserver{}
	second := &recordingObserver{}
	joined := JoinObservers(first, nil, second)

	joined.ObserveList(ListObservation{Tools: 2, Success: true})
	joined.ObserveCall(CallObservation{ToolName: "x"})
	joined.ObserveChange(ChangeObservation{Primitive: PrimitiveTools, Version: 3})

	for i, observer := range []*recordingObserver{first, second} {
		if len(observer.lists) != 1 || len(observer.calls) != 1 || len(observer.changes) != 1 {
			t.Fatalf("observer %d got lists=%d calls=%d changes=%d, want 1 each",
				i, len(observer.lists), len(observer.calls), len(observer.changes))
		}
	}
}

func TestJoinObserversWithoutObserversIsNoop(t *testing.T) {
	joined := JoinObservers(nil, nil)
	if _, ok := joined.(noopObserver); !ok {
		t.Fatalf("JoinObservers(nil, nil) = %T, want noopObserver", joined)
	}
	joined.ObserveCall(CallObservation{})
}
