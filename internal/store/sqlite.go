package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS turn_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		step TEXT NOT NULL,
		user_text TEXT NOT NULL,
		response_text TEXT NOT NULL,
		trace_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turn_logs_session ON turn_logs(session_id, id);

	CREATE TABLE IF NOT EXISTS session_snapshots (
		session_id TEXT PRIMARY KEY,
		state_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LogTurn appends one turn record.
func (s *SQLiteStore) LogTurn(ctx context.Context, log *TurnLog) error {
	query := `
	INSERT INTO turn_logs (session_id, step, user_text, response_text, trace_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	var traceJSON interface{}
	if log.TraceJSON != "" {
		traceJSON = log.TraceJSON
	}

	_, err := s.db.ExecContext(ctx, query,
		log.SessionID, log.Step, log.UserText, log.ResponseText,
		traceJSON, log.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert turn log: %w", err)
	}
	return nil
}

// ListSessionLogs returns the most recently active sessions.
func (s *SQLiteStore) ListSessionLogs(ctx context.Context, limit int) ([]LogSummary, error) {
	query := `
		SELECT session_id, COUNT(*), MAX(step), MAX(created_at)
		FROM turn_logs
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query session logs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session log rows", "error", closeErr)
		}
	}()

	var summaries []LogSummary
	for rows.Next() {
		var sum LogSummary
		var updatedAt int64
		if err := rows.Scan(&sum.SessionID, &sum.Turns, &sum.LastStep, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session log row: %w", err)
		}
		sum.UpdatedAt = time.Unix(updatedAt, 0)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session logs: %w", err)
	}
	return summaries, nil
}

// GetSessionLog returns one session's turns in order.
func (s *SQLiteStore) GetSessionLog(ctx context.Context, sessionID string) ([]TurnLog, error) {
	query := `
		SELECT id, session_id, step, user_text, response_text, trace_json, created_at
		FROM turn_logs WHERE session_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turn logs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turn log rows", "error", closeErr)
		}
	}()

	var logs []TurnLog
	for rows.Next() {
		var log TurnLog
		var traceJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(
			&log.ID, &log.SessionID, &log.Step,
			&log.UserText, &log.ResponseText, &traceJSON, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn log row: %w", err)
		}
		log.TraceJSON = traceJSON.String
		log.CreatedAt = time.Unix(createdAt, 0)
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn logs: %w", err)
	}
	return logs, nil
}

// SaveSnapshot upserts the session's serialized state.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, sessionID string, stateJSON string) error {
	query := `
	INSERT INTO session_snapshots (session_id, state_json, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		state_json = excluded.state_json,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, sessionID, stateJSON, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert session snapshot: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
