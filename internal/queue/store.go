package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    position         INTEGER NOT NULL,
    id               TEXT PRIMARY KEY,
    task_id          TEXT NOT NULL,
    status           TEXT NOT NULL,
    attempts         INTEGER NOT NULL DEFAULT 0,
    enqueued_at      TEXT NOT NULL,
    started_at       TEXT,
    completed_at     TEXT,
    last_message     TEXT NOT NULL DEFAULT '',
    output           TEXT NOT NULL DEFAULT '[]',
    errors           TEXT NOT NULL DEFAULT '[]',
    cancel_requested INTEGER NOT NULL DEFAULT 0,
    parameters       TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_operations_position ON operations(position);
`

// SQLiteStore persists the queue in a single SQLite table. SaveAll replaces
// the stored list in one transaction, so the table always reflects the last
// consistent queue state.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the queue database at dbPath. Use
// ":memory:" for in-memory databases (useful for testing).
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create queue schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadAll returns all stored operations in submission order.
func (s *SQLiteStore) LoadAll() ([]*Operation, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, status, attempts, enqueued_at, started_at,
		       completed_at, last_message, output, errors, cancel_requested,
		       parameters
		FROM operations
		ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var (
			op              Operation
			status          string
			enqueued        string
			started         sql.NullString
			completed       sql.NullString
			outputJSON      string
			errorsJSON      string
			parametersJSON  string
			cancelRequested int
		)
		if err := rows.Scan(&op.ID, &op.TaskID, &status, &op.Attempts,
			&enqueued, &started, &completed, &op.LastMessage,
			&outputJSON, &errorsJSON, &cancelRequested, &parametersJSON); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		op.Status = Status(status)
		op.CancelRequested = cancelRequested != 0

		if op.EnqueuedAt, err = time.Parse(time.RFC3339Nano, enqueued); err != nil {
			return nil, fmt.Errorf("failed to parse enqueued time for %s: %w", op.ID, err)
		}
		if op.StartedAt, err = parseNullTime(started); err != nil {
			return nil, fmt.Errorf("failed to parse started time for %s: %w", op.ID, err)
		}
		if op.CompletedAt, err = parseNullTime(completed); err != nil {
			return nil, fmt.Errorf("failed to parse completed time for %s: %w", op.ID, err)
		}

		if err := json.Unmarshal([]byte(outputJSON), &op.Output); err != nil {
			return nil, fmt.Errorf("failed to decode output for %s: %w", op.ID, err)
		}
		if err := json.Unmarshal([]byte(errorsJSON), &op.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode errors for %s: %w", op.ID, err)
		}
		if err := json.Unmarshal([]byte(parametersJSON), &op.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters for %s: %w", op.ID, err)
		}

		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}
	return ops, nil
}

// SaveAll replaces the stored operation list in one transaction.
func (s *SQLiteStore) SaveAll(ops []*Operation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM operations"); err != nil {
		return fmt.Errorf("failed to clear operations: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO operations (
			position, id, task_id, status, attempts, enqueued_at,
			started_at, completed_at, last_message, output, errors,
			cancel_requested, parameters
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, op := range ops {
		outputJSON, err := json.Marshal(emptyIfNilSlice(op.Output))
		if err != nil {
			return fmt.Errorf("failed to encode output for %s: %w", op.ID, err)
		}
		errorsJSON, err := json.Marshal(emptyIfNilSlice(op.Errors))
		if err != nil {
			return fmt.Errorf("failed to encode errors for %s: %w", op.ID, err)
		}
		parametersJSON, err := json.Marshal(emptyIfNilMap(op.Parameters))
		if err != nil {
			return fmt.Errorf("failed to encode parameters for %s: %w", op.ID, err)
		}

		cancelRequested := 0
		if op.CancelRequested {
			cancelRequested = 1
		}

		if _, err := stmt.Exec(i, op.ID, op.TaskID, string(op.Status),
			op.Attempts, op.EnqueuedAt.Format(time.RFC3339Nano),
			formatNullTime(op.StartedAt), formatNullTime(op.CompletedAt),
			op.LastMessage, string(outputJSON), string(errorsJSON),
			cancelRequested, string(parametersJSON)); err != nil {
			return fmt.Errorf("failed to insert operation %s: %w", op.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit queue state: %w", err)
	}
	return nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func emptyIfNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyIfNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
