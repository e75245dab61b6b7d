package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// CreateIndexFixture creates a conversation index database with sample
// rows, bypassing the cache API so tests can exercise reads against a
// pre-existing file.
func CreateIndexFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "index.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open fixture database: %v", err)
	}
	defer func() { _ = db.Close() }()

	schema := `
	CREATE TABLE IF NOT EXISTS conversation_index (
		conversation_id TEXT PRIMARY KEY,
		started_at      TEXT NOT NULL,
		message_count   INTEGER NOT NULL DEFAULT 0,
		fetched_at      TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create fixture schema: %v", err)
	}

	now := time.Now().UTC()
	rows := []struct {
		id        string
		startedAt time.Time
		count     int
	}{
		{"conversation-1", now.Add(-2 * time.Hour), 4},
		{"conversation-2", now.Add(-1 * time.Hour), 2},
		{"conversation-3", now, 0},
	}
	for _, row := range rows {
		_, err := db.Exec(
			`INSERT INTO conversation_index (conversation_id, started_at, message_count, fetched_at) VALUES (?, ?, ?, ?)`,
			row.id, row.startedAt.Format(time.RFC3339), row.count, now.Format(time.RFC3339),
		)
		if err != nil {
			t.Fatalf("Failed to insert fixture row: %v", err)
		}
	}

	return path
}
