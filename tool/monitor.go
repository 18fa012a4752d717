package tool

import (
	"sync"
)

// Primitive names an MCP primitive family whose catalog can change.
type Primitive string

const (
	PrimitiveTools     Primitive = "tools"
	PrimitivePrompts   Primitive = "prompts"
	PrimitiveResources Primitive = "resources"
)

// Monitor records "something changed" notifications for one primitive.
//
// Version counts every NotifyChanged call exactly. Subscriptions receive a
// coalesced signal: a burst of notifications delivered while a subscriber is
// busy collapses into one pending signal, so readers should re-read state
// rather than count signals. All methods are safe for concurrent use.
type Monitor struct {
	primitive Primitive

	mu       sync.Mutex
	version  uint64
	observed uint64
	subs     []*monitorSub
	closed   bool
}

// NewMonitor creates a monitor for one primitive family.
func NewMonitor(primitive Primitive) *Monitor {
	return &Monitor{primitive: primitive}
}

// Primitive returns the primitive family this monitor tracks.
func (m *Monitor) Primitive() Primitive {
	return m.primitive
}

// NotifyChanged records one change, signals every subscriber and returns the
// new version.
func (m *Monitor) NotifyChanged() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.version++
	if !m.closed {
		for _, sub := range m.subs {
			sub.signal()
		}
	}
	return m.version
}

// Version returns the number of notifications recorded so far.
func (m *Monitor) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Changed reports whether a notification arrived since the last Observe.
func (m *Monitor) Changed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version != m.observed
}

// Observe reports whether anything changed since the previous Observe and
// marks the current state as seen.
func (m *Monitor) Observe() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.version != m.observed
	m.observed = m.version
	return changed
}

// Subscribe registers a subscriber. The returned Subscription must be closed.
func (m *Monitor) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &monitorSub{ch: make(chan struct{}, 1)}
	if m.closed {
		sub.close()
	} else {
		m.subs = append(m.subs, sub)
	}
	return &Subscription{monitor: m, sub: sub}
}

// Close closes all subscriptions. Later notifications are still counted.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, sub := range m.subs {
		sub.close()
	}
	m.subs = nil
}

func (m *Monitor) unsubscribe(target *monitorSub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subs {
		if sub == target {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			break
		}
	}
	target.close()
}

// Subscription receives change signals from a Monitor.
type Subscription struct {
	monitor *Monitor
	sub     *monitorSub
	once    sync.Once
}

// Changes returns a channel that receives a value after one or more
// notifications. It is closed when the subscription or monitor closes.
func (s *Subscription) Changes() <-chan struct{} {
	return s.sub.ch
}

// Close unsubscribes and releases resources.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.monitor.unsubscribe(s.sub)
	})
	return nil
}

// monitorSub is one coalescing signal channel.
type monitorSub struct {
	ch     chan struct{}
	mu     sync.Mutex
	closed bool
}

// signal leaves one pending value in the channel; extra signals are merged.
func (s *monitorSub) signal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// close performs the actual channel close, guarded against double-close.
func (s *monitorSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
