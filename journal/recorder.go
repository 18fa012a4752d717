package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petal-labs/commandry/tool"
)

const defaultAppendTimeout = 5 * time.Second

// Recorder writes controller observations to a Store. Append failures are
// logged and never reach the observed call.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	timeout time.Duration

	mu  sync.Mutex
	seq uint64
}

// NewRecorder creates a recorder that continues numbering after the store's
// latest entry.
func NewRecorder(ctx context.Context, store Store, logger *slog.Logger) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("journal: recorder requires a store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	latest, err := store.LatestSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: resume sequence: %w", err)
	}
	return &Recorder{
		store:   store,
		logger:  logger,
		timeout: defaultAppendTimeout,
		seq:     latest,
	}, nil
}

// ObserveList records one tools/list outcome.
func (r *Recorder) ObserveList(observation tool.ListObservation) {
	entry := NewEntry(KindToolsListed)
	entry.IsError = !observation.Success
	entry.DurationMS = observation.DurationMS
	entry.Payload["commands"] = observation.Commands
	entry.Payload["tools"] = observation.Tools
	if observation.ErrorCode != "" {
		entry.Payload["error_code"] = observation.ErrorCode
	}
	r.record(entry)
}

// ObserveCall records one tools/call outcome.
func (r *Recorder) ObserveCall(observation tool.CallObservation) {
	entry := NewEntry(KindToolCalled)
	entry.Tool = observation.ToolName
	entry.InvocationID = observation.InvocationID
	entry.IsError = observation.IsError
	entry.Message = observation.Message
	entry.DurationMS = observation.DurationMS
	if observation.CommandName != "" {
		entry.Payload["command"] = observation.CommandName
	}
	if observation.ErrorCode != "" {
		entry.Payload["error_code"] = observation.ErrorCode
	}
	if observation.Canceled {
		entry.Payload["canceled"] = true
	}
	r.record(entry)
}

// ObserveChange records one catalog change.
func (r *Recorder) ObserveChange(observation tool.ChangeObservation) {
	entry := NewEntry(KindCatalogChanged)
	if !observation.Time.IsZero() {
		entry.Time = observation.Time.UTC()
	}
	entry.Payload["primitive"] = string(observation.Primitive)
	entry.Payload["version"] = observation.Version
	r.record(entry)
}

// record assigns the next Seq and appends under one lock so stored order
// matches Seq order.
func (r *Recorder) record(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.Seq = r.seq + 1
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.Error("failed to append journal entry",
			"kind", entry.Kind,
			"seq", entry.Seq,
			"tool", entry.Tool,
			"error", err,
		)
		return
	}
	r.seq = entry.Seq
}

// Compile-time interface check.
var _ tool.Observer = (*Recorder)(nil)
