package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// timeLayout is fixed-width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStoreConfig configures the SQLite journal store.
type SQLiteStoreConfig struct {
	// DSN is the database connection string.
	DSN string

	// RetentionAge deletes entries older than this duration (0 = no age pruning).
	RetentionAge time.Duration

	// RetentionCount keeps at most this many entries (0 = no count pruning).
	RetentionCount int

	// PruneInterval is how often to run pruning (default 1 hour).
	PruneInterval time.Duration
}

// SQLiteStore persists journal entries to a SQLite database in WAL mode with
// an optional background pruner.
type SQLiteStore struct {
	db   *sql.DB
	cfg  SQLiteStoreConfig
	stop chan struct{}
	done chan struct{}
}

// NewSQLiteStore opens (or creates) a SQLite journal store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if cfg.RetentionAge > 0 || cfg.RetentionCount > 0 {
		go s.pruneLoop()
	} else {
		close(s.done)
	}
	return s, nil
}

// Append stores an entry.
func (s *SQLiteStore) Append(ctx context.Context, entry Entry) error {
	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("journal: marshal payload: %w", err)
	}

	isError := 0
	if entry.IsError {
		isError = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO journal (seq, id, kind, tool, invocation_id, is_error, message, duration_ms, time, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(entry.Seq), // #nosec G115 -- seq values stay far below MaxInt64
		entry.ID,
		string(entry.Kind),
		entry.Tool,
		entry.InvocationID,
		isError,
		entry.Message,
		entry.DurationMS,
		entry.Time.UTC().Format(timeLayout),
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

// List returns entries in Seq order, optionally filtered by afterSeq and limit.
func (s *SQLiteStore) List(ctx context.Context, afterSeq uint64, limit int) ([]Entry, error) {
	query := `SELECT seq, id, kind, tool, invocation_id, is_error, message, duration_ms, time, payload
	           FROM journal WHERE seq > ? ORDER BY seq ASC`
	args := []any{int64(afterSeq)} // #nosec G115 -- seq values stay far below MaxInt64

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// LatestSeq returns the highest Seq (0 if empty).
func (s *SQLiteStore) LatestSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM journal`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("journal: latest seq: %w", err)
	}
	if !seq.Valid || seq.Int64 < 0 {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// Close stops the background pruner and closes the database connection.
func (s *SQLiteStore) Close() error {
	select {
	case <-s.stop:
		// Already closed.
	default:
		close(s.stop)
	}
	<-s.done
	return s.db.Close()
}

// Prune runs a single pruning pass. Exported for testing.
func (s *SQLiteStore) Prune(ctx context.Context) error {
	if s.cfg.RetentionAge > 0 {
		cutoff := time.Now().UTC().Add(-s.cfg.RetentionAge).Format(timeLayout)
		if _, err := s.db.ExecContext(ctx, `DELETE FROM journal WHERE time < ?`, cutoff); err != nil {
			return fmt.Errorf("journal: prune by age: %w", err)
		}
	}
	if s.cfg.RetentionCount > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM journal WHERE seq NOT IN (
				SELECT seq FROM journal ORDER BY seq DESC LIMIT ?
			)`, s.cfg.RetentionCount,
		); err != nil {
			return fmt.Errorf("journal: prune by count: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) pruneLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.Prune(context.Background())
		}
	}
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			seq         int64
			kind        string
			isError     int
			timeStr     string
			payloadJSON string
		)
		err := rows.Scan(
			&seq,
			&e.ID,
			&kind,
			&e.Tool,
			&e.InvocationID,
			&isError,
			&e.Message,
			&e.DurationMS,
			&timeStr,
			&payloadJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("journal: scan entry: %w", err)
		}

		e.Seq = uint64(seq) // #nosec G115 -- seq is never negative
		e.Kind = Kind(kind)
		e.IsError = isError != 0

		t, err := time.Parse(timeLayout, timeStr)
		if err != nil {
			return nil, fmt.Errorf("journal: parse time %q: %w", timeStr, err)
		}
		e.Time = t

		e.Payload = map[string]any{}
		if payloadJSON != "" && payloadJSON != "{}" {
			if err := json.Unmarshal([]byte(payloadJSON), &e.Payload); err != nil {
				return nil, fmt.Errorf("journal: unmarshal payload: %w", err)
			}
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)
