package tool

import (
	"sync"
	"time"
)

// ListObservation captures one tools/list outcome.
type ListObservation struct {
	Commands   int
	Tools      int
	DurationMS int64
	Success    bool
	ErrorCode  string
}

// CallObservation captures one tools/call outcome.
type CallObservation struct {
	ToolName     string
	CommandName  string
	InvocationID string
	DurationMS   int64
	IsError      bool
	ErrorCode    string
	Message      string
	Canceled     bool
}

// ChangeObservation captures one catalog change notification.
type ChangeObservation struct {
	Primitive Primitive
	Version   uint64
	Time      time.Time
}

// Observer receives controller-level observability events.
type Observer interface {
	ObserveList(observation ListObservation)
	ObserveCall(observation CallObservation)
	ObserveChange(observation ChangeObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveList(ListObservation)     {}
func (noopObserver) ObserveCall(CallObservation)     {}
func (noopObserver) ObserveChange(ChangeObservation) {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide fallback observer used by controllers
// constructed without one.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

func defaultObserver() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return activeObserver
}

// JoinObservers fans every observation out to each non-nil observer in order.
func JoinObservers(observers ...Observer) Observer {
	joined := make(multiObserver, 0, len(observers))
	for _, observer := range observers {
		if observer != nil {
			joined = append(joined, observer)
		}
	}
	switch len(joined) {
	case 0:
		return noopObserver{}
	case 1:
		return joined[0]
	default:
		return joined
	}
}

type multiObserver []Observer

func (m multiObserver) ObserveList(observation ListObservation) {
	for _, observer := range m {
		observer.ObserveList(observation)
	}
}

func (m multiObserver) ObserveCall(observation CallObservation) {
	for _, observer := range m {
		observer.ObserveCall(observation)
	}
}

func (m multiObserver) ObserveChange(observation ChangeObservation) {
	for _, observer := range m {
		observer.ObserveChange(observation)
	}
}
