package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// TokenSource supplies the bearer token for authenticated calls. Keeping
// this injected (rather than read from a global) keeps the client and
// the session manager testable without a credential store.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource backed by a fixed string
type StaticToken string

// Token returns the token value
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// DefaultHTTPTimeout bounds every service call; expiry is treated the
// same as any other network failure.
const DefaultHTTPTimeout = 30 * time.Second

// historyProbeLimit is how far back the client looks when rebuilding one
// conversation's messages from the flat history feed.
const historyProbeLimit = 200

// APIClient talks to the postal analytics service. It implements the
// Backend interface for the session manager.
type APIClient struct {
	baseURL string
	userID  string
	tokens  TokenSource
	http    *http.Client
}

// NewAPIClient creates a client for the service at baseURL, acting as
// the given user.
func NewAPIClient(baseURL, userID string, tokens TokenSource) *APIClient {
	return &APIClient{
		baseURL: trimTrailingSlash(baseURL),
		userID:  userID,
		tokens:  tokens,
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

// SetHTTPClient overrides the underlying HTTP client, used by tests and
// by callers that need a custom timeout.
func (c *APIClient) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.http = hc
	}
}

// UserID returns the user the client acts as
func (c *APIClient) UserID() string {
	return c.userID
}

// LoginResult carries the fields the client consumes from a login response
type LoginResult struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// Login exchanges credentials for a bearer token. The only call that
// goes out without a token attached.
func (c *APIClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	payload := map[string]string{"email": email, "password": password}
	var result LoginResult
	if err := c.doJSON(ctx, "login", http.MethodPost, "/login", payload, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartConversation asks the service for a fresh conversation id
func (c *APIClient) StartConversation(ctx context.Context) (string, error) {
	var result struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := c.doJSON(ctx, "start", http.MethodPost, "/start_conversation", struct{}{}, &result, true); err != nil {
		return "", err
	}
	if result.ConversationID == "" {
		return "", &APIError{Op: "start", StatusCode: http.StatusOK, Message: "response missing conversation_id"}
	}
	return result.ConversationID, nil
}

// SendMessage submits a chat question and returns the service's answer
func (c *APIClient) SendMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var result ChatResponse
	if err := c.doJSON(ctx, "chat", http.MethodPost, "/chat", req, &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListConversations returns the user's conversation headers, most
// recent first.
func (c *APIClient) ListConversations(ctx context.Context) ([]ConversationHeader, error) {
	var headers []ConversationHeader
	path := "/conversations/" + url.PathEscape(c.userID)
	if err := c.doJSON(ctx, "conversations", http.MethodGet, path, nil, &headers, true); err != nil {
		return nil, err
	}
	return headers, nil
}

// ListHistory returns up to limit of the user's most recent exchanges,
// newest first.
func (c *APIClient) ListHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	var records []HistoryRecord
	path := fmt.Sprintf("/history/%s?limit=%d", url.PathEscape(c.userID), limit)
	if err := c.doJSON(ctx, "history", http.MethodGet, path, nil, &records, true); err != nil {
		return nil, err
	}
	return records, nil
}

// ConversationMessages rebuilds one conversation's exchanges in
// chronological order. The service exposes no per-conversation messages
// route, so this filters the flat history feed (newest first) and
// reverses it.
func (c *APIClient) ConversationMessages(ctx context.Context, conversationID string) ([]HistoryRecord, error) {
	records, err := c.ListHistory(ctx, historyProbeLimit)
	if err != nil {
		return nil, err
	}
	matched := FilterByConversation(records, conversationID)
	if len(matched) == 0 {
		return nil, &APIError{Op: "history", StatusCode: http.StatusNotFound,
			Message: fmt.Sprintf("conversation %s not found in history", conversationID)}
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched, nil
}

// Visualize requests a server-rendered chart for the current data
func (c *APIClient) Visualize(ctx context.Context, conversationID string) (*VisualizationResult, error) {
	payload := map[string]string{}
	if conversationID != "" {
		payload["conversation_id"] = conversationID
	}
	var result VisualizationResult
	if err := c.doJSON(ctx, "visualize", http.MethodPost, "/visualize", payload, &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

// doJSON performs one JSON round trip and maps non-2xx statuses to
// *APIError, extracting the service's error field when present.
func (c *APIClient) doJSON(ctx context.Context, op, method, path string, body, out interface{}, authed bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("failed to obtain token for %s: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}
		var msg struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &msg); err == nil {
			apiErr.Message = msg.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
