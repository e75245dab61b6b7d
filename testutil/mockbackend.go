package testutil

import (
	"context"
	"sync"

	"github.com/mkurti/postchat/internal"
)

// MockBackend is a scriptable implementation of internal.Backend. Each
// operation delegates to the corresponding Func field when set and
// records the call order.
type MockBackend struct {
	mu    sync.Mutex
	calls []string

	StartFunc         func(ctx context.Context) (string, error)
	MessagesFunc      func(ctx context.Context, conversationID string) ([]internal.HistoryRecord, error)
	SendFunc          func(ctx context.Context, req internal.ChatRequest) (*internal.ChatResponse, error)
	ConversationsFunc func(ctx context.Context) ([]internal.ConversationHeader, error)
	HistoryFunc       func(ctx context.Context, limit int) ([]internal.HistoryRecord, error)
}

// Calls returns the recorded operation names in invocation order
func (m *MockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]string, len(m.calls))
	copy(copied, m.calls)
	return copied
}

// CallCount returns how many times the named operation ran
func (m *MockBackend) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *MockBackend) record(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
}

// StartConversation implements internal.Backend
func (m *MockBackend) StartConversation(ctx context.Context) (string, error) {
	m.record("start")
	if m.StartFunc != nil {
		return m.StartFunc(ctx)
	}
	return "conversation-1", nil
}

// ConversationMessages implements internal.Backend
func (m *MockBackend) ConversationMessages(ctx context.Context, conversationID string) ([]internal.HistoryRecord, error) {
	m.record("messages")
	if m.MessagesFunc != nil {
		return m.MessagesFunc(ctx, conversationID)
	}
	return nil, nil
}

// SendMessage implements internal.Backend
func (m *MockBackend) SendMessage(ctx context.Context, req internal.ChatRequest) (*internal.ChatResponse, error) {
	m.record("send")
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	return &internal.ChatResponse{Response: "ok", ConversationID: req.ConversationID}, nil
}

// ListConversations implements internal.Backend
func (m *MockBackend) ListConversations(ctx context.Context) ([]internal.ConversationHeader, error) {
	m.record("conversations")
	if m.ConversationsFunc != nil {
		return m.ConversationsFunc(ctx)
	}
	return nil, nil
}

// ListHistory implements internal.Backend
func (m *MockBackend) ListHistory(ctx context.Context, limit int) ([]internal.HistoryRecord, error) {
	m.record("history")
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, limit)
	}
	return nil, nil
}
