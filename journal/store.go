package journal

import "context"

// Store persists journal entries.
type Store interface {
	// Append stores an entry.
	Append(ctx context.Context, entry Entry) error

	// List returns entries in Seq order.
	// afterSeq: return entries with Seq > afterSeq (0 means all)
	// limit: max entries to return (0 means no limit)
	List(ctx context.Context, afterSeq uint64, limit int) ([]Entry, error)

	// LatestSeq returns the highest Seq (0 if empty).
	LatestSeq(ctx context.Context) (uint64, error)
}
