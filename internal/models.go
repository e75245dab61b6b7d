package internal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message roles as they appear in transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single transcript entry
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationHeader represents a conversation as listed by the service
type ConversationHeader struct {
	ConversationID string    `json:"conversation_id"`
	StartedAt      time.Time `json:"started_at"`
}

// HistoryRecord represents one completed question/response exchange.
// The service stores exchanges as flat pairs, not discrete messages.
type HistoryRecord struct {
	Question       string    `json:"question"`
	Response       string    `json:"response"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
	FileID         string    `json:"file_id,omitempty"`
}

// apiTimeLayouts covers the timestamp shapes the service emits: RFC 3339
// and Python isoformat with or without fractional seconds, which carries
// no timezone suffix.
var apiTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseAPITime(value string) (time.Time, error) {
	for _, layout := range apiTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// UnmarshalJSON accepts the service's timezone-less isoformat timestamps
func (h *ConversationHeader) UnmarshalJSON(data []byte) error {
	var raw struct {
		ConversationID string `json:"conversation_id"`
		StartedAt      string `json:"started_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.ConversationID = raw.ConversationID
	if raw.StartedAt != "" {
		t, err := parseAPITime(raw.StartedAt)
		if err != nil {
			return err
		}
		h.StartedAt = t
	}
	return nil
}

// UnmarshalJSON accepts the service's timezone-less isoformat timestamps
func (r *HistoryRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Question       string `json:"question"`
		Response       string `json:"response"`
		Timestamp      string `json:"timestamp"`
		ConversationID string `json:"conversation_id"`
		FileID         string `json:"file_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Question = raw.Question
	r.Response = raw.Response
	r.ConversationID = raw.ConversationID
	r.FileID = raw.FileID
	if raw.Timestamp != "" {
		t, err := parseAPITime(raw.Timestamp)
		if err != nil {
			return err
		}
		r.Timestamp = t
	}
	return nil
}

// Conversation represents a reconstructed conversation for browsing
type Conversation struct {
	ConversationID string          `json:"conversation_id"`
	StartedAt      time.Time       `json:"started_at"`
	Records        []HistoryRecord `json:"records"`
}

// MessageCount returns the number of transcript messages the records
// expand to (two per exchange).
func (c *Conversation) MessageCount() int {
	return len(c.Records) * 2
}

// ChatRequest is the payload for a send-message call
type ChatRequest struct {
	Question          string `json:"question"`
	ConversationID    string `json:"conversation_id,omitempty"`
	FileID            string `json:"file_id,omitempty"`
	EmbeddingProvider string `json:"embedding_provider,omitempty"`
}

// ChatResponse is the service's answer to a chat request
type ChatResponse struct {
	Response          string `json:"response"`
	ConversationID    string `json:"conversation_id"`
	EmbeddingProvider string `json:"embedding_provider,omitempty"`
}

// UploadJob tracks a CSV processing job on the upload service
type UploadJob struct {
	JobID            string `json:"job_id"`
	OriginalFilename string `json:"filename"`
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
}

// VisualizationResult carries a rendered chart returned by the service.
// Image is a data URL (data:image/png;base64,...).
type VisualizationResult struct {
	Image          string `json:"image"`
	ConversationID string `json:"conversation_id"`
}
