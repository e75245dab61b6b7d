package internal

import (
	"errors"
	"fmt"
)

// Precondition violations rejected before any network call. These are
// UI-state errors, not service failures, and are safe to treat as no-ops.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoFileSelected = errors.New("no file selected")
	ErrSendPending    = errors.New("a send is already pending")
	ErrNoConversation = errors.New("no active conversation")
)

// APIError represents a non-2xx response from the analytics service
type APIError struct {
	Op         string // "start", "chat", "conversations", "history", "login", "visualize"
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: %s: status %d", e.Op, e.StatusCode)
}

// NotFound reports whether the service rejected the request because the
// referenced resource does not exist.
func (e *APIError) NotFound() bool {
	return e.StatusCode == 404
}

// SessionError represents a failure while resolving or mutating a session
type SessionError struct {
	FileID         string
	ConversationID string
	Err            error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error [file=%s conversation=%s]: %v", e.FileID, e.ConversationID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// CacheError represents errors accessing the local conversation index
type CacheError struct {
	Path string
	Op   string // "open", "read", "write"
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
