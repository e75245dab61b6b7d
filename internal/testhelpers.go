package internal

import (
	"time"
)

// CreateTestHeader creates a conversation header for tests
func CreateTestHeader(conversationID string, startedAt time.Time) ConversationHeader {
	return ConversationHeader{
		ConversationID: conversationID,
		StartedAt:      startedAt,
	}
}

// CreateTestRecord creates a history record for tests
func CreateTestRecord(conversationID, question, response string, ts time.Time) HistoryRecord {
	return HistoryRecord{
		Question:       question,
		Response:       response,
		Timestamp:      ts,
		ConversationID: conversationID,
	}
}

// CreateTestConversation creates a conversation with n exchanges
func CreateTestConversation(conversationID string, startedAt time.Time, n int) Conversation {
	conv := Conversation{
		ConversationID: conversationID,
		StartedAt:      startedAt,
	}
	for i := 0; i < n; i++ {
		conv.Records = append(conv.Records, CreateTestRecord(
			conversationID,
			"question",
			"response",
			startedAt.Add(time.Duration(i)*time.Minute),
		))
	}
	return conv
}
