package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return repo
}

func TestLogTurnAndGetSessionLog(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	turns := []*TurnLog{
		{SessionID: "s1", Step: "identity", UserText: "Dans Plumbing 2155",
			ResponseText: "Locked in", TraceJSON: `[{"api":"registry.search"}]`, CreatedAt: time.Now()},
		{SessionID: "s1", Step: "services", UserText: "blocked drains",
			ResponseText: "Added", CreatedAt: time.Now()},
		{SessionID: "s2", Step: "identity", UserText: "other business",
			ResponseText: "Which one?", CreatedAt: time.Now()},
	}
	for _, turn := range turns {
		if err := repo.LogTurn(ctx, turn); err != nil {
			t.Fatalf("Failed to log turn: %v", err)
		}
	}

	logs, err := repo.GetSessionLog(ctx, "s1")
	if err != nil {
		t.Fatalf("Failed to get session log: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("Expected 2 turns for s1, got %d", len(logs))
	}
	if logs[0].Step != "identity" || logs[1].Step != "services" {
		t.Errorf("Expected turns in insert order, got %s then %s", logs[0].Step, logs[1].Step)
	}
	if logs[0].TraceJSON == "" {
		t.Error("Expected the trace JSON round-tripped")
	}
	if logs[1].TraceJSON != "" {
		t.Errorf("Expected an empty trace to stay empty, got %q", logs[1].TraceJSON)
	}
}

func TestGetSessionLogUnknownSession(t *testing.T) {
	repo := newTestStore(t)
	logs, err := repo.GetSessionLog(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("Expected no logs, got %d", len(logs))
	}
}

func TestListSessionLogs(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	seed := []*TurnLog{
		{SessionID: "old", Step: "identity", ResponseText: "a", CreatedAt: base},
		{SessionID: "old", Step: "services", ResponseText: "b", CreatedAt: base.Add(time.Minute)},
		{SessionID: "recent", Step: "identity", ResponseText: "c", CreatedAt: base.Add(30 * time.Minute)},
	}
	for _, turn := range seed {
		if err := repo.LogTurn(ctx, turn); err != nil {
			t.Fatalf("Failed to log turn: %v", err)
		}
	}

	summaries, err := repo.ListSessionLogs(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list session logs: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(summaries))
	}
	if summaries[0].SessionID != "recent" {
		t.Errorf("Expected the most recent session first, got %s", summaries[0].SessionID)
	}
	if summaries[1].Turns != 2 {
		t.Errorf("Expected 2 turns counted for the older session, got %d", summaries[1].Turns)
	}
}

func TestListSessionLogsHonorsLimit(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		turn := &TurnLog{SessionID: id, Step: "identity", ResponseText: "x",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Minute)}
		if err := repo.LogTurn(ctx, turn); err != nil {
			t.Fatalf("Failed to log turn: %v", err)
		}
	}

	summaries, err := repo.ListSessionLogs(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list session logs: %v", err)
	}
	if len(summaries) != 2 {
		t.Errorf("Expected the limit applied, got %d sessions", len(summaries))
	}
}

func TestSaveSnapshotUpserts(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.SaveSnapshot(ctx, "s1", `{"current_step":"identity"}`); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	// A second save for the same session must replace, not error.
	if err := repo.SaveSnapshot(ctx, "s1", `{"current_step":"services"}`); err != nil {
		t.Fatalf("Failed to upsert snapshot: %v", err)
	}
}

func TestPing(t *testing.T) {
	repo := newTestStore(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Expected ping to succeed: %v", err)
	}
}
