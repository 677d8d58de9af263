package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"agentrun/core"
)

// SQLiteLog is a durable Log implementation backed by a SQLite database.
// The (run_id, seq) primary key enforces the per-run uniqueness of sequence
// numbers at the storage layer. Use ":memory:" as the path for an ephemeral
// database.
type SQLiteLog struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	run_id       TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	timestamp    TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// NewSQLiteLog opens (creating if necessary) a SQLite-backed event log at
// the given path.
func NewSQLiteLog(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open event log database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

// Append inserts the event. A duplicate (run_id, seq) pair fails at the
// primary key, surfacing a violated single-writer discipline loudly.
func (l *SQLiteLog) Append(ev core.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = l.db.Exec(
		"INSERT INTO events (run_id, seq, timestamp, event_type, payload_json) VALUES (?, ?, ?, ?, ?)",
		ev.RunID, ev.Seq, ev.Timestamp.UTC().Format(time.RFC3339Nano), string(ev.Type), string(payload),
	)
	if err != nil {
		return fmt.Errorf("append event seq=%d run=%s: %w", ev.Seq, ev.RunID, err)
	}
	return nil
}

// Read returns the run's events with seq > afterSeq, ascending.
func (l *SQLiteLog) Read(runID string, afterSeq int64) ([]core.Event, error) {
	rows, err := l.db.Query(
		"SELECT run_id, seq, timestamp, event_type, payload_json FROM events WHERE run_id = ? AND seq > ? ORDER BY seq",
		runID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		if known, err := l.runExists(runID); err != nil {
			return nil, err
		} else if !known {
			return nil, &UnknownRunError{RunID: runID}
		}
	}
	return events, nil
}

// ReadByType returns the run's events of the given type, ascending by seq.
func (l *SQLiteLog) ReadByType(runID string, t core.EventType) ([]core.Event, error) {
	rows, err := l.db.Query(
		"SELECT run_id, seq, timestamp, event_type, payload_json FROM events WHERE run_id = ? AND event_type = ? ORDER BY seq",
		runID, string(t),
	)
	if err != nil {
		return nil, fmt.Errorf("query events by type: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		if known, err := l.runExists(runID); err != nil {
			return nil, err
		} else if !known {
			return nil, &UnknownRunError{RunID: runID}
		}
	}
	return events, nil
}

// Close releases the underlying database handle.
func (l *SQLiteLog) Close() error { return l.db.Close() }

func (l *SQLiteLog) runExists(runID string) (bool, error) {
	var n int
	if err := l.db.QueryRow("SELECT COUNT(1) FROM events WHERE run_id = ?", runID).Scan(&n); err != nil {
		return false, fmt.Errorf("count events: %w", err)
	}
	return n > 0, nil
}

func scanEvents(rows *sql.Rows) ([]core.Event, error) {
	var events []core.Event
	for rows.Next() {
		var (
			ev      core.Event
			ts      string
			evType  string
			payload string
		)
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ts, &evType, &payload); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		ev.Timestamp = parsed
		ev.Type = core.EventType(evType)
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
