package internal

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// IndexCache is a local SQLite index of conversation headers, used so
// the list commands keep working when the service is unreachable. Only
// metadata is stored here; transcripts are never cached locally, the
// server stays the system of record for message history.
type IndexCache struct {
	db   *sql.DB
	path string
}

// IndexEntry is one cached conversation header
type IndexEntry struct {
	ConversationID string
	StartedAt      time.Time
	MessageCount   int
	FetchedAt      time.Time
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS conversation_index (
	conversation_id TEXT PRIMARY KEY,
	started_at      TEXT NOT NULL,
	message_count   INTEGER NOT NULL DEFAULT 0,
	fetched_at      TEXT NOT NULL
)`

// OpenIndexCache opens (creating if needed) the index database at path
func OpenIndexCache(path string) (*IndexCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &CacheError{Path: path, Op: "open", Err: err}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &CacheError{Path: path, Op: "open", Err: err}
	}
	if _, err := db.Exec(indexSchema); err != nil {
		_ = db.Close()
		return nil, &CacheError{Path: path, Op: "open", Err: err}
	}
	return &IndexCache{db: db, path: path}, nil
}

// Close releases the underlying database handle
func (c *IndexCache) Close() error {
	return c.db.Close()
}

// Replace atomically swaps the cached index for the given conversations
func (c *IndexCache) Replace(conversations []Conversation) error {
	tx, err := c.db.Begin()
	if err != nil {
		return &CacheError{Path: c.path, Op: "write", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversation_index`); err != nil {
		return &CacheError{Path: c.path, Op: "write", Err: err}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stmt, err := tx.Prepare(`INSERT INTO conversation_index (conversation_id, started_at, message_count, fetched_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return &CacheError{Path: c.path, Op: "write", Err: err}
	}
	defer func() { _ = stmt.Close() }()

	for _, conv := range conversations {
		_, err := stmt.Exec(conv.ConversationID, conv.StartedAt.UTC().Format(time.RFC3339), conv.MessageCount(), now)
		if err != nil {
			return &CacheError{Path: c.path, Op: "write", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &CacheError{Path: c.path, Op: "write", Err: err}
	}
	return nil
}

// Entries returns the cached headers, most recent conversation first
func (c *IndexCache) Entries() ([]IndexEntry, error) {
	rows, err := c.db.Query(`SELECT conversation_id, started_at, message_count, fetched_at FROM conversation_index ORDER BY started_at DESC`)
	if err != nil {
		return nil, &CacheError{Path: c.path, Op: "read", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var entries []IndexEntry
	for rows.Next() {
		var entry IndexEntry
		var startedAt, fetchedAt string
		if err := rows.Scan(&entry.ConversationID, &startedAt, &entry.MessageCount, &fetchedAt); err != nil {
			return nil, &CacheError{Path: c.path, Op: "read", Err: err}
		}
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			entry.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339, fetchedAt); err == nil {
			entry.FetchedAt = t
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &CacheError{Path: c.path, Op: "read", Err: err}
	}
	return entries, nil
}
