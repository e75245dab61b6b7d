package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mkurti/postchat/internal"
)

func TestJSONLExporter_Export(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	conv := internal.Conversation{
		ConversationID: "conv-1",
		StartedAt:      started,
		Records: []internal.HistoryRecord{
			internal.CreateTestRecord("conv-1", "how many parcels?", "1200", started),
		},
	}

	var buf bytes.Buffer
	exporter := &JSONLExporter{}
	if err := exporter.Export(&conv, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (user + assistant)", len(lines))
	}

	var first, second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not valid JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 2 is not valid JSON: %v", err)
	}

	if first["role"] != "user" || first["content"] != "how many parcels?" {
		t.Errorf("line 1 = %v", first)
	}
	if second["role"] != "assistant" || second["content"] != "1200" {
		t.Errorf("line 2 = %v", second)
	}
	if first["conversation_id"] != "conv-1" || second["conversation_id"] != "conv-1" {
		t.Error("lines must carry the conversation id")
	}
	if first["timestamp"] != second["timestamp"] {
		t.Error("both halves of an exchange must share a timestamp")
	}
}

func TestJSONLExporter_EmptyConversation(t *testing.T) {
	conv := internal.Conversation{ConversationID: "empty"}

	var buf bytes.Buffer
	exporter := &JSONLExporter{}
	if err := exporter.Export(&conv, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Export() wrote %q for an empty conversation, want nothing", buf.String())
	}
}
