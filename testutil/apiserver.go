package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkurti/postchat/internal"
)

// APIServer emulates the postal analytics service over httptest. It
// implements just enough of the route surface for client and command
// tests: start_conversation, chat, conversations, history, login.
type APIServer struct {
	*httptest.Server

	mu            sync.Mutex
	nextID        int
	Headers       []internal.ConversationHeader
	Records       []internal.HistoryRecord
	ChatResponder func(req internal.ChatRequest) (internal.ChatResponse, int)
}

// NewAPIServer starts a fake service; it is shut down with the test
func NewAPIServer(t *testing.T) *APIServer {
	t.Helper()
	s := &APIServer{nextID: 1}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *APIServer) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/login":
		writeJSON(w, http.StatusOK, map[string]string{"token": "test-token", "user_id": "user-1"})

	case r.Method == http.MethodPost && r.URL.Path == "/start_conversation":
		s.mu.Lock()
		id := "conversation-" + strconv.Itoa(s.nextID)
		s.nextID++
		s.Headers = append(s.Headers, internal.ConversationHeader{
			ConversationID: id,
			StartedAt:      time.Now().UTC(),
		})
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"conversation_id": id})

	case r.Method == http.MethodPost && r.URL.Path == "/chat":
		var req internal.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if s.ChatResponder != nil {
			resp, status := s.ChatResponder(req)
			writeJSON(w, status, resp)
			return
		}
		writeJSON(w, http.StatusOK, internal.ChatResponse{
			Response:       "answer to: " + req.Question,
			ConversationID: req.ConversationID,
		})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/conversations/"):
		s.mu.Lock()
		headers := make([]map[string]string, 0, len(s.Headers))
		for _, h := range s.Headers {
			headers = append(headers, map[string]string{
				"conversation_id": h.ConversationID,
				"started_at":      h.StartedAt.Format("2006-01-02T15:04:05.999999"),
			})
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, headers)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/history/"):
		s.mu.Lock()
		records := make([]map[string]string, 0, len(s.Records))
		for _, rec := range s.Records {
			records = append(records, map[string]string{
				"question":        rec.Question,
				"response":        rec.Response,
				"timestamp":       rec.Timestamp.Format("2006-01-02T15:04:05.999999"),
				"conversation_id": rec.ConversationID,
			})
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, records)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
