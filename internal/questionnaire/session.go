package questionnaire

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// State is the phase of a questionnaire session.
type State int

const (
	StateNotStarted State = iota
	StateAwaitingAnswer
	StateFinishing
)

func (s State) String() string {
	switch s {
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateFinishing:
		return "finishing"
	default:
		return "not_started"
	}
}

// Session is the questionnaire progress of one user.
type Session struct {
	ID string `json:"id"`
	// Index is the 1-based key of the current question.
	Index    int  `json:"index"`
	Finished bool `json:"finished"`
	// Answers maps question keys ("1", "2", ...) to submitted text. A key is
	// present only after its answer has been submitted.
	Answers map[string]string `json:"answers"`
	// Redisplay is set once the current question has been shown, so that
	// navigation edits that message instead of sending a new one.
	Redisplay bool `json:"redisplay"`
	MessageID int  `json:"message_id,omitempty"`
	// Context is pinned at start and passed to the composer on finish.
	Context   string    `json:"context,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State reports the session phase.
func (s *Session) State() State {
	switch {
	case s == nil:
		return StateNotStarted
	case s.Finished:
		return StateFinishing
	default:
		return StateAwaitingAnswer
	}
}

// SessionStore loads and saves whole sessions. Load returns (nil, nil) when
// the user has no session.
type SessionStore interface {
	Load(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, userID int64, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

// Backend persists encoded sessions. LoadSession returns a nil payload when
// nothing is stored for the user.
type Backend interface {
	LoadSession(ctx context.Context, userID int64) ([]byte, error)
	SaveSession(ctx context.Context, userID int64, payload []byte) error
	DeleteSession(ctx context.Context, userID int64) error
}

type codecStore struct {
	backend Backend
}

// NewStore returns a SessionStore that JSON-encodes sessions into backend.
func NewStore(backend Backend) SessionStore {
	return &codecStore{backend: backend}
}

func (c *codecStore) Load(ctx context.Context, userID int64) (*Session, error) {
	payload, err := c.backend.LoadSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	return &s, nil
}

func (c *codecStore) Save(ctx context.Context, userID int64, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := c.backend.SaveSession(ctx, userID, payload); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (c *codecStore) Delete(ctx context.Context, userID int64) error {
	if err := c.backend.DeleteSession(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// MemoryBackend keeps encoded sessions in process memory.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[int64][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[int64][]byte)}
}

func (m *MemoryBackend) LoadSession(_ context.Context, userID int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID], nil
}

func (m *MemoryBackend) SaveSession(_ context.Context, userID int64, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = append([]byte(nil), payload...)
	return nil
}

func (m *MemoryBackend) DeleteSession(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
