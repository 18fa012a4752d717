package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrTransportClosed is returned by a closed LoopbackTransport.
var ErrTransportClosed = errors.New("mcp: transport closed")

// LoopbackTransport connects a Client directly to a Handler in the same
// process. Messages are round-tripped through JSON so both sides see exactly
// what a remote peer would.
type LoopbackTransport struct {
	handler *Handler

	mu      sync.Mutex
	pending []Message
	closed  bool
	ready   chan struct{}
}

// NewLoopbackTransport creates a transport bound to handler.
func NewLoopbackTransport(handler *Handler) *LoopbackTransport {
	return &LoopbackTransport{handler: handler, ready: make(chan struct{}, 1)}
}

// Send hands message to the handler and queues any response.
func (t *LoopbackTransport) Send(ctx context.Context, message Message) error {
	if t.isClosed() {
		return ErrTransportClosed
	}
	request, err := roundTrip(message)
	if err != nil {
		return err
	}
	response, ok := t.handler.HandleMessage(ctx, request)
	if !ok {
		return nil
	}
	return t.Push(response)
}

// Push queues a server-initiated message, such as a notification, for the
// next Receive.
func (t *LoopbackTransport) Push(message Message) error {
	encoded, err := roundTrip(message)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.pending = append(t.pending, encoded)
	select {
	case t.ready <- struct{}{}:
	default:
	}
	return nil
}

// Receive returns the next queued message, waiting until one arrives.
func (t *LoopbackTransport) Receive(ctx context.Context) (Message, error) {
	for {
		t.mu.Lock()
		if len(t.pending) > 0 {
			message := t.pending[0]
			t.pending = t.pending[1:]
			t.mu.Unlock()
			return message, nil
		}
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return Message{}, ErrTransportClosed
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-t.ready:
		}
	}
}

// Close releases waiting receivers.
func (t *LoopbackTransport) Close(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.ready)
	}
	return nil
}

func (t *LoopbackTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func roundTrip(message Message) (Message, error) {
	raw, err := json.Marshal(message)
	if err != nil {
		return Message{}, fmt.Errorf("mcp: encode message: %w", err)
	}
	var decoded Message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Message{}, fmt.Errorf("mcp: decode message: %w", err)
	}
	return decoded, nil
}
