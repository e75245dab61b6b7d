package internal

import (
	"sort"

	"github.com/google/uuid"
)

// GroupHistory reconstructs browsable conversations from the flat
// history records the service returns, keyed against the known
// conversation headers.
//
// Records are grouped by conversation id in the order the service
// returned them; no re-sorting happens inside a group. Every header
// yields a Conversation even when no records match (a conversation with
// zero completed exchanges is a valid, displayable state). Records whose
// conversation id matches no header are dropped. The result is ordered
// by start time, most recent conversation first; ties keep header order.
func GroupHistory(headers []ConversationHeader, records []HistoryRecord) []Conversation {
	grouped := make(map[string][]HistoryRecord, len(headers))
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h.ConversationID] = true
	}

	for _, rec := range records {
		if !known[rec.ConversationID] {
			// Orphan record, no header to attach it to
			LogDebug("Dropping history record with unknown conversation %s", rec.ConversationID)
			continue
		}
		grouped[rec.ConversationID] = append(grouped[rec.ConversationID], rec)
	}

	conversations := make([]Conversation, 0, len(headers))
	for _, h := range headers {
		conversations = append(conversations, Conversation{
			ConversationID: h.ConversationID,
			StartedAt:      h.StartedAt,
			Records:        grouped[h.ConversationID],
		})
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].StartedAt.After(conversations[j].StartedAt)
	})

	return conversations
}

// ExpandRecords flattens question/response exchanges into transcript
// messages: each record becomes a user message followed by an assistant
// message, both carrying the record's timestamp.
func ExpandRecords(records []HistoryRecord) []Message {
	messages := make([]Message, 0, len(records)*2)
	for _, rec := range records {
		messages = append(messages,
			Message{
				ID:        uuid.NewString(),
				Role:      RoleUser,
				Content:   rec.Question,
				Timestamp: rec.Timestamp,
			},
			Message{
				ID:        uuid.NewString(),
				Role:      RoleAssistant,
				Content:   rec.Response,
				Timestamp: rec.Timestamp,
			},
		)
	}
	return messages
}

// FilterByConversation keeps the records belonging to one conversation,
// preserving input order.
func FilterByConversation(records []HistoryRecord, conversationID string) []HistoryRecord {
	var matched []HistoryRecord
	for _, rec := range records {
		if rec.ConversationID == conversationID {
			matched = append(matched, rec)
		}
	}
	return matched
}
