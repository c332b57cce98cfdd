/*
Package sqlite provides the durable, append-only event journal.

PURPOSE:
  Persists events the engine has already committed so indexers can
  consume them across restarts. The journal is strictly append-only:
  no UPDATE, no DELETE. It is a projection of the engine's in-memory
  log, not a source of truth for engine state.

KEY TABLE:
  events:
    id          TEXT (uuid, primary key)
    seq         INTEGER (monotonic insert order)
    kind        TEXT (event name, e.g. "Locked")
    record_id   INTEGER (custody record id, 0 for fee events)
    owner       TEXT (primary involved address, hex)
    at          INTEGER (engine time, unix seconds)
    payload     TEXT (full event JSON)

INDEXES:
  idx_events_kind, idx_events_owner, idx_events_record: feed filters.

WAL MODE:
  Opened with WAL for concurrent readers against a single writer.

SEE ALSO:
  - engine/events.go: event shapes and helpers
  - api/handlers.go: appends committed events, serves the feed
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/custody-engine/engine"
)

// Journal is a SQLite-backed append-only event store.
type Journal struct {
	db *sql.DB
}

// New opens (or creates) the journal at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
	-- Committed engine events (append-only)
	CREATE TABLE IF NOT EXISTS events (
		id        TEXT PRIMARY KEY,
		seq       INTEGER NOT NULL,
		kind      TEXT NOT NULL,
		record_id INTEGER NOT NULL DEFAULT 0,
		owner     TEXT NOT NULL DEFAULT '',
		at        INTEGER NOT NULL,
		payload   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_owner ON events(owner);
	CREATE INDEX IF NOT EXISTS idx_events_record ON events(record_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// =============================================================================
// APPEND - the only write path
// =============================================================================

// Append persists one committed event. Events arrive in commit order from
// a single writer (the API layer), so seq is assigned from a COUNT.
func (j *Journal) Append(ctx context.Context, e engine.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	recordID, _ := engine.RecordID(e)
	owner := primaryOwner(e)

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events (id, seq, kind, record_id, owner, at, payload)
		VALUES (?, (SELECT COUNT(*) FROM events), ?, ?, ?, ?, ?)`,
		uuid.NewString(), e.Kind(), recordID, owner, e.Unix(), string(payload),
	)
	return err
}

// AppendAll persists a batch of committed events atomically.
func (j *Journal) AppendAll(ctx context.Context, events []engine.Event) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode event: %w", err)
		}
		recordID, _ := engine.RecordID(e)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, seq, kind, record_id, owner, at, payload)
			VALUES (?, (SELECT COUNT(*) FROM events), ?, ?, ?, ?, ?)`,
			uuid.NewString(), e.Kind(), recordID, primaryOwner(e), e.Unix(), string(payload),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// primaryOwner extracts the address an event is filed under. Transfer
// events are filed under the previous owner; both parties remain in the
// payload.
func primaryOwner(e engine.Event) string {
	switch ev := e.(type) {
	case *engine.Locked:
		return ev.Owner.Hex()
	case *engine.LockExtended:
		return ev.Owner.Hex()
	case *engine.LockTransferred:
		return ev.From.Hex()
	case *engine.LockWithdrawn:
		return ev.Owner.Hex()
	case *engine.VestingCreated:
		return ev.Owner.Hex()
	case *engine.VestingClaimed:
		return ev.Owner.Hex()
	case *engine.VestingTransferred:
		return ev.From.Hex()
	case *engine.VestingCompleted:
		return ev.Owner.Hex()
	case *engine.FeeTransferFailed:
		return ev.Caller.Hex()
	}
	return ""
}

// =============================================================================
// QUERIES
// =============================================================================

// Entry is one journaled event.
type Entry struct {
	ID       string          `json:"id"`
	Seq      int64           `json:"seq"`
	Kind     string          `json:"kind"`
	RecordID uint64          `json:"record_id"`
	Owner    string          `json:"owner"`
	At       uint32          `json:"at"`
	Payload  json.RawMessage `json:"payload"`
}

// Filter narrows a journal query. Zero values mean "no constraint".
type Filter struct {
	Kind     string
	Owner    string
	RecordID uint64
	Limit    int
}

// List returns journaled events in commit order, oldest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := `SELECT id, seq, kind, record_id, owner, at, payload FROM events WHERE 1=1`
	var args []any
	if f.Kind != "" {
		q += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.Owner != "" {
		q += ` AND owner = ?`
		args = append(args, f.Owner)
	}
	if f.RecordID != 0 {
		q += ` AND record_id = ?`
		args = append(args, f.RecordID)
	}
	q += ` ORDER BY seq ASC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.ID, &e.Seq, &e.Kind, &e.RecordID, &e.Owner, &e.At, &payload); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of journaled events.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}
