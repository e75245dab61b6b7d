package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/mkurti/postchat/internal"
	"github.com/mkurti/postchat/testutil"
)

func TestDisplayConversations(t *testing.T) {
	tests := []struct {
		name          string
		conversations []internal.Conversation
	}{
		{
			name:          "empty",
			conversations: nil,
		},
		{
			name: "populated",
			conversations: []internal.Conversation{
				internal.CreateTestConversation("conversation-1", time.Now().Add(-time.Hour), 2),
				internal.CreateTestConversation("conversation-2", time.Now(), 0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Rendering must not panic regardless of terminal state
			displayConversations(tt.conversations)
		})
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcdef123456", "abcdef12"},
		{"short", "short"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shortID(tt.in); got != tt.want {
			t.Errorf("shortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatWhen(t *testing.T) {
	if got := formatWhen(time.Time{}); got != "—" {
		t.Errorf("formatWhen(zero) = %q, want placeholder", got)
	}

	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
	}{
		{"today", now.Add(-2 * time.Hour)},
		{"this week", now.Add(-3 * 24 * time.Hour)},
		{"this year", now.Add(-60 * 24 * time.Hour)},
		{"old", now.Add(-2 * 365 * 24 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatWhen(tt.t); got == "" || got == "—" {
				t.Errorf("formatWhen() = %q, want a rendered date", got)
			}
		})
	}
}

func TestConversationsCommand_EndToEnd(t *testing.T) {
	server := testutil.NewAPIServer(t)
	server.Headers = []internal.ConversationHeader{
		{ConversationID: "conversation-1", StartedAt: time.Now().UTC().Add(-time.Hour)},
	}
	server.Records = []internal.HistoryRecord{
		{Question: "q", Response: "a", Timestamp: time.Now().UTC(), ConversationID: "conversation-1"},
	}

	dir := t.TempDir()
	t.Setenv("POSTCHAT_TOKEN", "test-token")
	t.Setenv("POSTCHAT_USER_ID", "user-1")

	rootCmd.SetArgs([]string{"conversations", "--api", server.URL, "--config", dir})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	defer func() { apiURL = ""; configDir = "" }()

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("conversations command error = %v", err)
	}

	// The listing is mirrored into the local index
	path, err := internal.IndexPath(dir)
	if err != nil {
		t.Fatalf("IndexPath() error = %v", err)
	}
	cache, err := internal.OpenIndexCache(path)
	if err != nil {
		t.Fatalf("index was not created: %v", err)
	}
	defer func() { _ = cache.Close() }()
	entries, err := cache.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ConversationID != "conversation-1" {
		t.Errorf("index entries = %+v, want the listed conversation", entries)
	}
}

func TestConversationsCommand_OfflineFallback(t *testing.T) {
	dir := t.TempDir()
	testutil.CreateIndexFixture(t, dir)
	t.Setenv("POSTCHAT_TOKEN", "test-token")
	t.Setenv("POSTCHAT_USER_ID", "user-1")

	// Nothing listens here; the command must fall back to the index
	rootCmd.SetArgs([]string{"conversations", "--api", "http://127.0.0.1:1", "--config", dir})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	defer func() { apiURL = ""; configDir = "" }()

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("conversations command error = %v, want cached fallback", err)
	}
}
