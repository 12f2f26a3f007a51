// Package telegramtest runs a fake Telegram Bot API server for tests.
package telegramtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
)

// Token is the bot token the fake server accepts.
const Token = "123456:test-token"

// Call is one recorded Bot API request.
type Call struct {
	Method string
	Params map[string]string
	Files  map[string][]byte
}

// Server records Bot API calls and answers them with minimal valid results.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	calls    []Call
	failures map[string]string
	nextID   int
}

// NewServer starts a fake server closed at the end of the test.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{failures: map[string]string{}, nextID: 100}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// NewBot creates a bot pointed at s.
func (s *Server) NewBot(t testing.TB, opts ...bot.Option) *bot.Bot {
	t.Helper()

	opts = append([]bot.Option{bot.WithServerURL(s.URL), bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(Token, opts...)
	if err != nil {
		t.Fatalf("failed to create test bot: %v", err)
	}
	return b
}

// Fail makes every later call of method fail with description.
func (s *Server) Fail(method, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = description
}

// Calls returns the recorded calls of method, or all calls when method is
// empty.
func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Call
	for _, c := range s.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns the text of every sendMessage call in order.
func (s *Server) Texts() []string {
	var out []string
	for _, c := range s.Calls("sendMessage") {
		out = append(out, c.Params["text"])
	}
	return out
}

// WaitFor polls until at least n calls of method were recorded.
func (s *Server) WaitFor(t testing.TB, method string, n int) []Call {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		calls := s.Calls(method)
		if len(calls) >= n {
			return calls
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d %s calls, got %d", n, method, len(calls))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + Token + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)
	if method == "getUpdates" {
		// Stands in for long polling so a running bot does not spin.
		time.Sleep(20 * time.Millisecond)
	}

	call := Call{Method: method, Params: map[string]string{}, Files: map[string][]byte{}}
	if err := r.ParseMultipartForm(32 << 20); err == nil && r.MultipartForm != nil {
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				call.Params[k] = v[0]
			}
		}
		for k, files := range r.MultipartForm.File {
			if len(files) == 0 {
				continue
			}
			if f, err := files[0].Open(); err == nil {
				data, _ := io.ReadAll(f)
				_ = f.Close()
				call.Files[k] = data
			}
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	failure, failed := s.failures[method]
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failed {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": failure})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result(method, id, call.Params)})
}

func result(method string, id int, params map[string]string) any {
	switch method {
	case "sendMessage", "editMessageText", "sendPhoto":
		chatID, _ := strconv.ParseInt(params["chat_id"], 10, 64)
		if mid, err := strconv.Atoi(params["message_id"]); err == nil {
			id = mid
		}
		return map[string]any{
			"message_id": id,
			"date":       time.Now().Unix(),
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       params["text"],
		}
	case "getUpdates":
		return []any{}
	case "getMe":
		return map[string]any{"id": 1, "is_bot": true, "first_name": "NKO", "username": "nko_bot"}
	default:
		return true
	}
}

// String describes a call for assertion messages.
func (c Call) String() string {
	return fmt.Sprintf("%s %v", c.Method, c.Params)
}
