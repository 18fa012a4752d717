// Package journal keeps an append-only audit trail of catalog changes, tool
// listings and tool calls. Nothing in the adapter reads it back; it exists for
// operators.
package journal

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of journal entry.
type Kind string

const (
	KindCatalogChanged Kind = "catalog.changed"
	KindToolsListed    Kind = "tools.listed"
	KindToolCalled     Kind = "tool.called"
)

// Entry is one journal record. Seq is assigned by the Recorder and is strictly
// increasing within a store.
type Entry struct {
	ID           string         `json:"id"`
	Seq          uint64         `json:"seq"`
	Kind         Kind           `json:"kind"`
	Tool         string         `json:"tool,omitempty"`
	InvocationID string         `json:"invocation_id,omitempty"`
	IsError      bool           `json:"is_error"`
	Message      string         `json:"message,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	Time         time.Time      `json:"time"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewEntry creates an entry with a fresh ID and the current UTC time.
func NewEntry(kind Kind) Entry {
	return Entry{
		ID:      uuid.NewString(),
		Kind:    kind,
		Time:    time.Now().UTC(),
		Payload: map[string]any{},
	}
}
