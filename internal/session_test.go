package internal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a scriptable Backend with optional gating so tests can
// observe the session mid-flight.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	startID  string
	startErr error

	records    []HistoryRecord
	recordsErr error

	sendResp *ChatResponse
	sendErr  error

	sendStarted chan struct{}
	sendRelease chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{startID: "conversation-1"}
}

func (b *fakeBackend) record(name string) {
	b.mu.Lock()
	b.calls = append(b.calls, name)
	b.mu.Unlock()
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (b *fakeBackend) StartConversation(_ context.Context) (string, error) {
	b.record("start")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startID, b.startErr
}

func (b *fakeBackend) ConversationMessages(_ context.Context, _ string) ([]HistoryRecord, error) {
	b.record("messages")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.records, b.recordsErr
}

func (b *fakeBackend) SendMessage(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	b.record("send")
	if b.sendStarted != nil {
		b.sendStarted <- struct{}{}
	}
	if b.sendRelease != nil {
		<-b.sendRelease
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	if b.sendResp != nil {
		return b.sendResp, nil
	}
	return &ChatResponse{Response: "answer", ConversationID: req.ConversationID}, nil
}

func (b *fakeBackend) ListConversations(_ context.Context) ([]ConversationHeader, error) {
	b.record("conversations")
	return nil, nil
}

func (b *fakeBackend) ListHistory(_ context.Context, _ int) ([]HistoryRecord, error) {
	b.record("history")
	return nil, nil
}

// noticeRecorder collects notifier output
type noticeRecorder struct {
	mu      sync.Mutex
	notices []string
}

func (r *noticeRecorder) notify(text string) {
	r.mu.Lock()
	r.notices = append(r.notices, text)
	r.mu.Unlock()
}

func (r *noticeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func TestSelectFile_SeedsWelcome(t *testing.T) {
	backend := newFakeBackend()
	session := NewSessionManager(backend)

	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}

	if got := session.ConversationID(); got != "conversation-1" {
		t.Errorf("ConversationID() = %q, want conversation-1", got)
	}
	if got := session.State(); got != StateActive {
		t.Errorf("State() = %v, want active", got)
	}

	transcript := session.Transcript()
	if len(transcript) != 1 {
		t.Fatalf("Transcript() has %d messages, want 1", len(transcript))
	}
	if transcript[0].Role != RoleAssistant || transcript[0].Content != WelcomeText {
		t.Errorf("welcome message = %+v, want assistant welcome", transcript[0])
	}
}

func TestSelectFile_SameFileIsNoop(t *testing.T) {
	backend := newFakeBackend()
	session := NewSessionManager(backend)

	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}

	if got := backend.count("start"); got != 1 {
		t.Errorf("StartConversation called %d times, want 1", got)
	}
}

func TestSelectFile_NewFileClearsBinding(t *testing.T) {
	backend := newFakeBackend()
	session := NewSessionManager(backend)

	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if err := session.SendMessage(context.Background(), "how many parcels?"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	backend.mu.Lock()
	backend.startID = "conversation-2"
	backend.mu.Unlock()

	if err := session.SelectFile(context.Background(), "file-2"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}

	if got := session.ConversationID(); got != "conversation-2" {
		t.Errorf("ConversationID() = %q, want conversation-2", got)
	}
	transcript := session.Transcript()
	if len(transcript) != 1 || transcript[0].Content != WelcomeText {
		t.Errorf("transcript after switch = %d messages, want fresh welcome only", len(transcript))
	}
}

func TestSelectFile_StartFailureLeavesUnbound(t *testing.T) {
	backend := newFakeBackend()
	backend.startErr = errors.New("boom")
	recorder := &noticeRecorder{}
	session := NewSessionManager(backend)
	session.SetNotifier(recorder.notify)

	err := session.SelectFile(context.Background(), "file-1")
	if err == nil {
		t.Fatal("SelectFile() expected error when start fails")
	}
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) {
		t.Errorf("error = %T, want *SessionError", err)
	}
	if got := session.ConversationID(); got != "" {
		t.Errorf("ConversationID() = %q, want empty", got)
	}
	if got := session.State(); got != StateUnbound {
		t.Errorf("State() = %v, want unbound", got)
	}
	if recorder.count() == 0 {
		t.Error("expected a notice when start fails")
	}
}

func TestSendMessage_Preconditions(t *testing.T) {
	backend := newFakeBackend()
	session := NewSessionManager(backend)

	if err := session.SendMessage(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty text error = %v, want ErrEmptyMessage", err)
	}
	if err := session.SendMessage(context.Background(), "hello"); !errors.Is(err, ErrNoFileSelected) {
		t.Errorf("no file error = %v, want ErrNoFileSelected", err)
	}
	if got := len(session.Transcript()); got != 0 {
		t.Errorf("transcript has %d messages after rejected sends, want 0", got)
	}
}

func TestSendMessage_AppendsBothSides(t *testing.T) {
	backend := newFakeBackend()
	session := NewSessionManager(backend)

	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if err := session.SendMessage(context.Background(), "where is parcel 42?"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	transcript := session.Transcript()
	if len(transcript) != 3 {
		t.Fatalf("Transcript() has %d messages, want 3 (welcome, user, assistant)", len(transcript))
	}
	if transcript[1].Role != RoleUser || transcript[1].Content != "where is parcel 42?" {
		t.Errorf("user message = %+v", transcript[1])
	}
	if transcript[2].Role != RoleAssistant || transcript[2].Content != "answer" {
		t.Errorf("assistant message = %+v", transcript[2])
	}
	if session.Pending() {
		t.Error("Pending() = true after completed send")
	}
}

func TestSendMessage_SingleFlight(t *testing.T) {
	backend := newFakeBackend()
	backend.sendStarted = make(chan struct{}, 1)
	backend.sendRelease = make(chan struct{})
	session := NewSessionManager(backend)

	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.SendMessage(context.Background(), "first")
	}()
	<-backend.sendStarted

	// Double invocation while pending must be rejected, not queued
	if err := session.SendMessage(context.Background(), "second"); !errors.Is(err, ErrSendPending) {
		t.Errorf("second send error = %v, want ErrSendPending", err)
	}

	close(backend.sendRelease)
	if err := <-done; err != nil {
		t.Fatalf("first send error = %v", err)
	}

	if got := backend.count("send"); got != 1 {
		t.Errorf("SendMessage reached backend %d times, want 1", got)
	}
	userMessages := 0
	for _, msg := range session.Transcript() {
		if msg.Role == RoleUser {
			userMessages++
		}
	}
	if userMessages != 1 {
		t.Errorf("transcript has %d user messages, want 1", userMessages)
	}
}

func TestSendMessage_StaleResponseDropped(t *testing.T) {
	backend := newFakeBackend()
	backend.sendStarted = make(chan struct{}, 1)
	backend.sendRelease = make(chan struct{})
	session := NewSessionManager(backend)

	if err := session.SelectFile(context.Background(), "file-a"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.SendMessage(context.Background(), "question about A")
	}()
	<-backend.sendStarted

	// Explicit navigation while the send is in flight
	backend.mu.Lock()
	backend.startID = "conversation-b"
	backend.mu.Unlock()
	if err := session.SelectFile(context.Background(), "file-b"); err != nil {
		t.Fatalf("SelectFile(B) error = %v", err)
	}

	close(backend.sendRelease)
	if err := <-done; err != nil {
		t.Fatalf("in-flight send error = %v", err)
	}

	// The late response must not land in file B's transcript
	for _, msg := range session.Transcript() {
		if msg.Content == "answer" || msg.Content == "question about A" {
			t.Errorf("stale message leaked into new transcript: %+v", msg)
		}
	}
	if session.Pending() {
		t.Error("Pending() = true after stale response was dropped")
	}
}

func TestSendMessage_FailureInjectsApology(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("status 500")
	recorder := &noticeRecorder{}
	session := NewSessionManager(backend)
	session.SetNotifier(recorder.notify)

	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if err := session.SendMessage(context.Background(), "will this fail?"); err != nil {
		t.Fatalf("SendMessage() error = %v, failed sends are handled in the transcript", err)
	}

	transcript := session.Transcript()
	if len(transcript) != 3 {
		t.Fatalf("Transcript() has %d messages, want 3", len(transcript))
	}
	if transcript[1].Role != RoleUser || transcript[1].Content != "will this fail?" {
		t.Errorf("optimistic user message was not retained: %+v", transcript[1])
	}
	if transcript[2].Role != RoleAssistant || transcript[2].Content != SendFailureText {
		t.Errorf("apology message = %+v", transcript[2])
	}
	if session.Pending() {
		t.Error("Pending() = true after failed send")
	}
	if recorder.count() == 0 {
		t.Error("expected a notice for the failed send")
	}
}

func TestSendMessage_BindsConversationWhenMissing(t *testing.T) {
	backend := newFakeBackend()
	backend.startErr = errors.New("down")
	session := NewSessionManager(backend)

	_ = session.SelectFile(context.Background(), "file-1")
	if got := session.ConversationID(); got != "" {
		t.Fatalf("ConversationID() = %q, want empty after failed start", got)
	}

	// Service recovers; the next send binds a conversation transparently
	backend.mu.Lock()
	backend.startErr = nil
	backend.mu.Unlock()

	if err := session.SendMessage(context.Background(), "hello again"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got := session.ConversationID(); got != "conversation-1" {
		t.Errorf("ConversationID() = %q, want conversation-1", got)
	}
	if got := backend.count("send"); got != 1 {
		t.Errorf("send reached backend %d times, want 1", got)
	}
}

func TestSendMessage_ProviderStickiness(t *testing.T) {
	backend := newFakeBackend()
	backend.sendResp = &ChatResponse{Response: "answer", EmbeddingProvider: "openai"}
	session := NewSessionManager(backend)

	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if got := session.EmbeddingProvider(); got != DefaultEmbeddingProvider {
		t.Fatalf("EmbeddingProvider() = %q, want default %q", got, DefaultEmbeddingProvider)
	}

	if err := session.SendMessage(context.Background(), "switch providers?"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got := session.EmbeddingProvider(); got != "openai" {
		t.Errorf("EmbeddingProvider() = %q, want openai (server wins)", got)
	}
}

func TestResumeOrStart_ExplicitFlattensPairs(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	backend := newFakeBackend()
	backend.records = []HistoryRecord{
		{Question: "how many?", Response: "1200", Timestamp: ts, ConversationID: "conversation-9"},
	}
	session := NewSessionManager(backend)

	if err := session.ResumeOrStart(context.Background(), "conversation-9"); err != nil {
		t.Fatalf("ResumeOrStart() error = %v", err)
	}

	if got := session.ConversationID(); got != "conversation-9" {
		t.Errorf("ConversationID() = %q, want conversation-9", got)
	}
	transcript := session.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("Transcript() has %d messages, want 2", len(transcript))
	}
	if transcript[0].Role != RoleUser || transcript[0].Content != "how many?" {
		t.Errorf("first message = %+v, want user question", transcript[0])
	}
	if transcript[1].Role != RoleAssistant || transcript[1].Content != "1200" {
		t.Errorf("second message = %+v, want assistant response", transcript[1])
	}
	if !transcript[0].Timestamp.Equal(ts) || !transcript[1].Timestamp.Equal(ts) {
		t.Error("expanded pair must share the record timestamp")
	}
}

func TestResumeOrStart_FallsBackToStart(t *testing.T) {
	backend := newFakeBackend()
	backend.recordsErr = errors.New("not found")
	recorder := &noticeRecorder{}
	session := NewSessionManager(backend)
	session.SetNotifier(recorder.notify)

	if err := session.ResumeOrStart(context.Background(), "gone"); err != nil {
		t.Fatalf("ResumeOrStart() error = %v, fallback should succeed", err)
	}

	if got := session.ConversationID(); got != "conversation-1" {
		t.Errorf("ConversationID() = %q, want fresh conversation-1", got)
	}
	if recorder.count() == 0 {
		t.Error("expected a notice about the failed resume")
	}
}

func TestResumeOrStart_NoopWhenBound(t *testing.T) {
	backend := newFakeBackend()
	session := NewSessionManager(backend)

	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if err := session.ResumeOrStart(context.Background(), ""); err != nil {
		t.Fatalf("ResumeOrStart() error = %v", err)
	}
	if got := backend.count("start"); got != 1 {
		t.Errorf("StartConversation called %d times, want 1", got)
	}
}

func TestSwitchConversation(t *testing.T) {
	backend := newFakeBackend()
	session := NewSessionManager(backend)

	if err := session.SelectFile(context.Background(), "file-1"); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if err := session.SendMessage(context.Background(), "first question"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	callsBefore := backend.count("messages")

	if err := session.SwitchConversation("conversation-7"); err != nil {
		t.Fatalf("SwitchConversation() error = %v", err)
	}

	if got := session.ConversationID(); got != "conversation-7" {
		t.Errorf("ConversationID() = %q, want conversation-7", got)
	}
	if got := len(session.Transcript()); got != 0 {
		t.Errorf("transcript has %d messages after switch, want 0 (no eager reload)", got)
	}
	if got := backend.count("messages"); got != callsBefore {
		t.Error("SwitchConversation must not fetch message history")
	}

	if err := session.SwitchConversation(""); !errors.Is(err, ErrNoConversation) {
		t.Errorf("empty id error = %v, want ErrNoConversation", err)
	}
}

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{StateUnbound, "unbound"},
		{StateResolving, "resolving"},
		{StateActive, "active"},
		{StateSending, "sending"},
		{StateError, "error"},
		{SessionState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("SessionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
