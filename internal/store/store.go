// Package store provides persistence for per-turn onboarding logs and
// session snapshots. Persistence is observability, not state of record:
// live sessions are in memory, and a store failure never fails a turn.
package store

import (
	"context"
	"time"
)

// TurnLog is one orchestrator turn as recorded for the dev log view.
type TurnLog struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Step         string    `json:"step"`
	UserText     string    `json:"user_text"`
	ResponseText string    `json:"response_text"`
	TraceJSON    string    `json:"trace_json,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LogSummary is one session's line in the log index.
type LogSummary struct {
	SessionID string    `json:"session_id"`
	Turns     int       `json:"turns"`
	LastStep  string    `json:"last_step"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository defines the persistence interface.
type Repository interface {
	// LogTurn appends one turn record.
	LogTurn(ctx context.Context, log *TurnLog) error

	// ListSessionLogs returns the most recently active sessions.
	ListSessionLogs(ctx context.Context, limit int) ([]LogSummary, error)

	// GetSessionLog returns one session's turns in order.
	GetSessionLog(ctx context.Context, sessionID string) ([]TurnLog, error)

	// SaveSnapshot upserts the session's serialized state.
	SaveSnapshot(ctx context.Context, sessionID string, stateJSON string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
