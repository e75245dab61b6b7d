package internal

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Backend is the set of asynchronous, fallible operations the session
// manager needs from the analytics service. APIClient is the production
// implementation; tests substitute a scripted fake.
type Backend interface {
	StartConversation(ctx context.Context) (string, error)
	ConversationMessages(ctx context.Context, conversationID string) ([]HistoryRecord, error)
	SendMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ListConversations(ctx context.Context) ([]ConversationHeader, error)
	ListHistory(ctx context.Context, limit int) ([]HistoryRecord, error)
}

// SessionState labels the lifecycle phase of a session
type SessionState int

const (
	StateUnbound SessionState = iota
	StateResolving
	StateActive
	StateSending
	StateError
)

// String returns a human-readable state name
func (s SessionState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateResolving:
		return "resolving"
	case StateActive:
		return "active"
	case StateSending:
		return "sending"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	// WelcomeText seeds a fresh conversation. Never sent to the service,
	// not part of durable history.
	WelcomeText = "Hi! I'm ready to answer questions about the selected data file. What would you like to know?"

	// SendFailureText is appended in place of an answer when a send
	// fails, so the transcript stays a truthful record of the exchange.
	SendFailureText = "Sorry, I wasn't able to answer that. Please try again."

	// DefaultEmbeddingProvider matches the service default
	DefaultEmbeddingProvider = "local"
)

// Notifier delivers non-blocking, user-visible notices
type Notifier func(text string)

// SessionManager is the single authority for which conversation, about
// which file, with which messages, is currently shown. It serializes
// writes to that state against an unreliable network: at most one send
// is in flight per session, and every backend call captures the session
// epoch at issue time so responses that land after the context moved on
// are discarded instead of appended to an unrelated transcript.
type SessionManager struct {
	backend Backend
	notify  Notifier

	mu             sync.Mutex
	state          SessionState
	epoch          uint64
	fileID         string
	conversationID string
	transcript     []Message
	pending        bool
	provider       string
}

// NewSessionManager creates a session manager over the given backend
func NewSessionManager(backend Backend) *SessionManager {
	return &SessionManager{
		backend:  backend,
		state:    StateUnbound,
		provider: DefaultEmbeddingProvider,
		notify:   func(string) {},
	}
}

// SetNotifier installs the notice callback. Must be called before the
// session is shared.
func (s *SessionManager) SetNotifier(fn Notifier) {
	if fn != nil {
		s.notify = fn
	}
}

// SetEmbeddingProvider overrides the initial sticky provider value
func (s *SessionManager) SetEmbeddingProvider(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if provider != "" {
		s.provider = provider
	}
}

// SelectFile binds the session to a data file. Selecting a different
// file invalidates the current conversation: the transcript is cleared,
// the epoch advances (orphaning any in-flight send), and a conversation
// is resolved for the new file.
func (s *SessionManager) SelectFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	if fileID == s.fileID && fileID != "" {
		s.mu.Unlock()
		return nil
	}
	s.epoch++
	epoch := s.epoch
	s.fileID = fileID
	s.conversationID = ""
	s.transcript = nil
	s.pending = false
	s.state = StateResolving
	s.mu.Unlock()

	return s.resolve(ctx, epoch, "")
}

// ResumeOrStart resolves a conversation for the current session. With an
// explicit id (deep link, history "continue") it fetches that
// conversation's exchanges and rebuilds the transcript from them; if the
// fetch fails the session falls back to a fresh conversation with a
// notice. Without an id it starts a new conversation, unless one is
// already bound, in which case it is a no-op.
func (s *SessionManager) ResumeOrStart(ctx context.Context, explicitID string) error {
	s.mu.Lock()
	if explicitID == "" && s.conversationID != "" {
		s.mu.Unlock()
		return nil
	}
	s.epoch++
	epoch := s.epoch
	s.conversationID = ""
	s.transcript = nil
	s.pending = false
	s.state = StateResolving
	s.mu.Unlock()

	return s.resolve(ctx, epoch, explicitID)
}

// resolve runs outside the lock; every mutation re-checks the captured
// epoch so results landing after a context switch are dropped.
func (s *SessionManager) resolve(ctx context.Context, epoch uint64, explicitID string) error {
	if explicitID != "" {
		records, err := s.backend.ConversationMessages(ctx, explicitID)
		if err == nil {
			s.mu.Lock()
			defer s.mu.Unlock()
			if epoch != s.epoch {
				return nil
			}
			s.conversationID = explicitID
			s.transcript = ExpandRecords(records)
			s.state = StateActive
			return nil
		}
		LogWarn("Failed to resume conversation %s: %v", explicitID, err)
		s.notify("Couldn't load that conversation, starting a new one.")
	}

	conversationID, err := s.backend.StartConversation(ctx)
	if err != nil {
		s.mu.Lock()
		stale := epoch != s.epoch
		if !stale {
			s.conversationID = ""
			s.state = StateUnbound
		}
		fileID := s.fileID
		s.mu.Unlock()
		if stale {
			return nil
		}
		s.notify("Couldn't start a conversation. Check your connection and try again.")
		return &SessionError{FileID: fileID, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return nil
	}
	s.conversationID = conversationID
	s.transcript = []Message{{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   WelcomeText,
		Timestamp: time.Now().UTC(),
	}}
	s.state = StateActive
	return nil
}

// SendMessage submits a question about the active file. The user's
// message is appended optimistically before the network round trip; on
// failure a fixed apology message is appended instead of rolling the
// optimistic entry back, so the transcript is never silently truncated.
// A precondition violation (empty text, no file, send already pending)
// is rejected synchronously with a sentinel error and changes nothing.
// A failed send is handled in the transcript and reported through the
// notifier, not as a returned error.
func (s *SessionManager) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.fileID == "" {
		s.mu.Unlock()
		return ErrNoFileSelected
	}
	if s.pending {
		s.mu.Unlock()
		return ErrSendPending
	}
	s.pending = true
	s.state = StateSending
	s.transcript = append(s.transcript, Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now().UTC(),
	})
	epoch := s.epoch
	conversationID := s.conversationID
	fileID := s.fileID
	provider := s.provider
	s.mu.Unlock()

	// Bind a conversation first if none exists yet. The transcript
	// already holds the optimistic message, so no welcome seeding here.
	if conversationID == "" {
		id, err := s.backend.StartConversation(ctx)
		if err != nil {
			s.failSend(epoch, err)
			return nil
		}
		s.mu.Lock()
		if epoch != s.epoch {
			s.mu.Unlock()
			return nil
		}
		s.conversationID = id
		s.mu.Unlock()
		conversationID = id
	}

	resp, err := s.backend.SendMessage(ctx, ChatRequest{
		Question:          text,
		ConversationID:    conversationID,
		FileID:            fileID,
		EmbeddingProvider: provider,
	})
	if err != nil {
		s.failSend(epoch, err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		// Stale response: the session moved to another file or
		// conversation while this send was in flight.
		LogDebug("Dropping stale chat response for conversation %s", conversationID)
		return nil
	}
	s.pending = false
	s.state = StateActive
	s.transcript = append(s.transcript, Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   resp.Response,
		Timestamp: time.Now().UTC(),
	})
	if resp.EmbeddingProvider != "" && resp.EmbeddingProvider != s.provider {
		// Server-side provider changes win over client state
		LogInfo("Embedding provider changed: %s -> %s", s.provider, resp.EmbeddingProvider)
		s.provider = resp.EmbeddingProvider
	}
	return nil
}

// failSend records a failed send: the optimistic user message stays and
// a fixed apology answer is appended. Dropped entirely if the epoch
// advanced while the send was in flight.
func (s *SessionManager) failSend(epoch uint64, cause error) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.state = StateActive
	s.transcript = append(s.transcript, Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   SendFailureText,
		Timestamp: time.Now().UTC(),
	})
	s.mu.Unlock()
	LogWarn("Send failed: %v", cause)
	s.notify("The assistant couldn't answer. Please try again.")
}

// SwitchConversation rebinds the session to another conversation for the
// same file. The transcript is cleared and message history is not
// reloaded eagerly; use ResumeOrStart with an explicit id to rebuild the
// transcript from the server.
func (s *SessionManager) SwitchConversation(conversationID string) error {
	if conversationID == "" {
		return ErrNoConversation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.pending = false
	s.conversationID = conversationID
	s.transcript = nil
	s.state = StateActive
	return nil
}

// State returns the current lifecycle state
func (s *SessionManager) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveFileID returns the bound file id, empty when unbound
func (s *SessionManager) ActiveFileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID
}

// ConversationID returns the bound conversation id, empty until a
// start or resume has completed
func (s *SessionManager) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// EmbeddingProvider returns the sticky provider value
func (s *SessionManager) EmbeddingProvider() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// Pending reports whether a send is in flight
func (s *SessionManager) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Transcript returns a copy of the ordered message list
func (s *SessionManager) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Message, len(s.transcript))
	copy(copied, s.transcript)
	return copied
}
