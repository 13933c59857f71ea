// Package journal is the persistence collaborator for the rule engine: it
// subscribes to the lifecycle event bus and appends every event, together
// with the rule's exported document form, to an append-only SQLite table.
// The engine itself never persists; tear the journal down independently.
//
// Uses SQLite with WAL mode so readers do not block the appending writer.
package journal

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/driftwood-games/houserules/internal/event"
)

//go:embed schema.sql
var schemaSQL string

// Journal appends lifecycle events to SQLite. Construct with Open.
type Journal struct {
	db  *sqlx.DB
	now func() time.Time

	bus   *event.Bus
	token int
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock overrides the wall clock used for recorded_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// Open creates or opens the journal database at the given DSN
// (a file path, or ":memory:" for tests). Idempotent: pragmas and
// schema are applied on every open.
func Open(dsn string, opts ...Option) (*Journal, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to journal database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	j := &Journal{db: db, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Attach subscribes the journal to the bus. Events arriving after Attach are
// appended; append failures are logged, never propagated to the publisher.
func (j *Journal) Attach(bus *event.Bus) {
	j.bus = bus
	j.token = bus.Subscribe(j)
}

// Detach unsubscribes from the bus attached earlier. Safe without Attach.
func (j *Journal) Detach() {
	if j.bus != nil {
		j.bus.Unsubscribe(j.token)
		j.bus = nil
	}
}

// HandleEvent implements event.Subscriber.
func (j *Journal) HandleEvent(ev event.Event) {
	if err := j.Append(ev); err != nil {
		slog.Error("journal append failed",
			"session_id", ev.SessionID,
			"kind", ev.Kind.String(),
			"error", err,
		)
	}
}

// Append writes one event row. Exposed for callers that journal without a
// bus subscription.
func (j *Journal) Append(ev event.Event) error {
	if ev.Rule == nil {
		return fmt.Errorf("append journal event: nil rule")
	}

	doc, err := json.Marshal(ev.Rule.ExportMap())
	if err != nil {
		return fmt.Errorf("encode rule document: %w", err)
	}

	_, err = j.db.Exec(
		`INSERT INTO lifecycle_events (session_id, rule_id, kind, reason, recorded_at, rule_doc)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.SessionID,
		ev.Rule.ID,
		ev.Kind.String(),
		ev.Reason,
		j.now().UTC().Format(time.RFC3339Nano),
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("append journal event: %w", err)
	}
	return nil
}

// Entry is one journaled lifecycle event.
type Entry struct {
	Seq        int64  `db:"seq"`
	SessionID  string `db:"session_id"`
	RuleID     string `db:"rule_id"`
	Kind       string `db:"kind"`
	Reason     string `db:"reason"`
	RecordedAt string `db:"recorded_at"`
	RuleDoc    string `db:"rule_doc"`
}

// Rule decodes the journaled rule document.
func (e Entry) Rule() (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(e.RuleDoc), &doc); err != nil {
		return nil, fmt.Errorf("decode rule document: %w", err)
	}
	return doc, nil
}

// EventsForSession returns the session's journaled events in append order.
func (j *Journal) EventsForSession(sessionID string) ([]Entry, error) {
	var entries []Entry
	err := j.db.Select(&entries,
		`SELECT seq, session_id, rule_id, kind, reason, recorded_at, rule_doc
		 FROM lifecycle_events WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("read journal for session %s: %w", sessionID, err)
	}
	return entries, nil
}

// Len returns the total number of journaled events.
func (j *Journal) Len() (int, error) {
	var n int
	if err := j.db.Get(&n, `SELECT COUNT(*) FROM lifecycle_events`); err != nil {
		return 0, fmt.Errorf("count journal events: %w", err)
	}
	return n, nil
}

// Close detaches from the bus and closes the database.
func (j *Journal) Close() error {
	j.Detach()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	if err != nil {
		return fmt.Errorf("close journal database: %w", err)
	}
	return nil
}

var _ event.Subscriber = (*Journal)(nil)
