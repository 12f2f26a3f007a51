package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods should accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// RegisterUser inserts the user unless one with the same user_id exists.
	// It reports whether a row was created.
	RegisterUser(ctx context.Context, user *User) (bool, error)

	// GetUser retrieves a user by Telegram ID. Returns nil, nil if not found.
	GetUser(ctx context.Context, userID int64) (*User, error)

	// IsAdmin reports whether the stored user is flagged as admin.
	IsAdmin(ctx context.Context, userID int64) (bool, error)

	// GetAdminIDs lists the Telegram IDs of all admins.
	GetAdminIDs(ctx context.Context) ([]int64, error)

	// CountUsers returns the number of registered users.
	CountUsers(ctx context.Context) (int, error)

	// GetUserSettings returns the stored settings or the defaults.
	GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error)

	// SaveUserSettings inserts or updates the user's settings.
	SaveUserSettings(ctx context.Context, settings *UserSettings) error

	// GetUserState returns the dialogue state, or "" when none is stored.
	GetUserState(ctx context.Context, userID int64) (string, error)

	// SetUserState stores the dialogue state.
	SetUserState(ctx context.Context, userID int64, state string) error

	// LoadSession returns the encoded questionnaire session, or nil.
	LoadSession(ctx context.Context, userID int64) ([]byte, error)

	// SaveSession stores an encoded questionnaire session.
	SaveSession(ctx context.Context, userID int64, payload []byte) error

	// DeleteSession removes the user's questionnaire session.
	DeleteSession(ctx context.Context, userID int64) error

	// PruneSessions deletes sessions not updated since before.
	PruneSessions(ctx context.Context, before time.Time) (int64, error)

	// SaveChatMessage appends a multi-chat turn.
	SaveChatMessage(ctx context.Context, message *ChatMessage) error

	// GetRecentChatMessages returns up to limit latest turns, oldest first.
	GetRecentChatMessages(ctx context.Context, userID int64, limit int) ([]*ChatMessage, error)

	// DeleteChatMessages clears the user's multi-chat history.
	DeleteChatMessages(ctx context.Context, userID int64) error

	// PruneChatMessages deletes turns created before the given time.
	PruneChatMessages(ctx context.Context, before time.Time) (int64, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) isPostgres() bool {
	return s.db.DriverName() == "pgx"
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance runs VACUUM on SQLite and ANALYZE on PostgreSQL.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	statement := "VACUUM;"
	if s.isPostgres() {
		statement = "ANALYZE;"
	}

	s.logger.InfoContext(ctx, "Starting database maintenance", "statement", statement)

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, statement)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Maintenance timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Error during database maintenance", "error", err)
		return fmt.Errorf("database maintenance failed: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}

// RegisterUser inserts the user, ignoring duplicates.
func (s *sqlxStore) RegisterUser(ctx context.Context, user *User) (bool, error) {
	if user == nil {
		return false, fmt.Errorf("cannot register nil user")
	}
	if user.UserID == 0 {
		return false, fmt.Errorf("user must have a non-zero user_id")
	}
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (user_id, username, full_name, is_admin, registered_at)
		VALUES (:user_id, :username, :full_name, :is_admin, :registered_at)
		ON CONFLICT (user_id) DO NOTHING
	`

	result, err := s.db.NamedExecContext(ctx, query, user)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error registering user", "user_id", user.UserID, "error", err)
		return false, fmt.Errorf("failed to register user %d: %w", user.UserID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count when registering user",
			"user_id", user.UserID, "error", err)
		return false, nil
	}

	if affected > 0 {
		s.logger.InfoContext(ctx, "Registered new user", "user_id", user.UserID, "username", user.Username)
	}
	return affected > 0, nil
}

// GetUser retrieves a user by Telegram ID.
func (s *sqlxStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	var user User
	query := s.db.Rebind(`SELECT id, user_id, username, full_name, is_admin, registered_at
	          FROM users WHERE user_id = ?`)

	err := s.db.GetContext(ctx, &user, query, userID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No user found", "user_id", userID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching user",
			"user_id", userID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user by ID", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	return &user, nil
}

// IsAdmin reports whether the user is stored with is_admin set.
func (s *sqlxStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user != nil && user.IsAdmin, nil
}

// GetAdminIDs lists admin user IDs ordered by registration.
func (s *sqlxStore) GetAdminIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := s.db.Rebind(`SELECT user_id FROM users WHERE is_admin = ? ORDER BY id`)

	if err := s.db.SelectContext(ctx, &ids, query, true); err != nil {
		s.logger.ErrorContext(ctx, "Error listing admins", "error", err)
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return ids, nil
}

// CountUsers returns the number of registered users.
func (s *sqlxStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		s.logger.ErrorContext(ctx, "Error counting users", "error", err)
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// GetUserSettings returns the stored settings or DefaultUserSettings.
func (s *sqlxStore) GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	var settings UserSettings
	query := s.db.Rebind(`SELECT user_id, style, tone, size, org_description, system_prompt, updated_at
	          FROM user_settings WHERE user_id = ?`)

	err := s.db.GetContext(ctx, &settings, query, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return DefaultUserSettings(userID), nil

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user settings", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get settings for user %d: %w", userID, err)
	}

	return &settings, nil
}

// SaveUserSettings upserts the user's settings.
func (s *sqlxStore) SaveUserSettings(ctx context.Context, settings *UserSettings) error {
	if settings == nil {
		return fmt.Errorf("cannot save nil user settings")
	}
	if settings.UserID == 0 {
		return fmt.Errorf("settings must have a non-zero user_id")
	}
	settings.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO user_settings (user_id, style, tone, size, org_description, system_prompt, updated_at)
		VALUES (:user_id, :style, :tone, :size, :org_description, :system_prompt, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			style = excluded.style,
			tone = excluded.tone,
			size = excluded.size,
			org_description = excluded.org_description,
			system_prompt = excluded.system_prompt,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.NamedExecContext(ctx, query, settings); err != nil {
		s.logger.ErrorContext(ctx, "Error saving user settings", "user_id", settings.UserID, "error", err)
		return fmt.Errorf("failed to save settings for user %d: %w", settings.UserID, err)
	}

	s.logger.DebugContext(ctx, "Saved user settings", "user_id", settings.UserID)
	return nil
}

// GetUserState returns the stored dialogue state.
func (s *sqlxStore) GetUserState(ctx context.Context, userID int64) (string, error) {
	var state string
	query := s.db.Rebind(`SELECT state FROM user_states WHERE user_id = ?`)

	err := s.db.GetContext(ctx, &state, query, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user state", "user_id", userID, "error", err)
		return "", fmt.Errorf("failed to get state for user %d: %w", userID, err)
	}
	return state, nil
}

// SetUserState upserts the dialogue state.
func (s *sqlxStore) SetUserState(ctx context.Context, userID int64, state string) error {
	query := s.db.Rebind(`
		INSERT INTO user_states (user_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`)

	if _, err := s.db.ExecContext(ctx, query, userID, state, time.Now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error setting user state", "user_id", userID, "state", state, "error", err)
		return fmt.Errorf("failed to set state for user %d: %w", userID, err)
	}
	return nil
}

// LoadSession returns the encoded questionnaire session.
func (s *sqlxStore) LoadSession(ctx context.Context, userID int64) ([]byte, error) {
	var payload string
	query := s.db.Rebind(`SELECT payload FROM questionnaire_sessions WHERE user_id = ?`)

	err := s.db.GetContext(ctx, &payload, query, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error loading questionnaire session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load session for user %d: %w", userID, err)
	}
	return []byte(payload), nil
}

// SaveSession upserts the encoded questionnaire session.
func (s *sqlxStore) SaveSession(ctx context.Context, userID int64, payload []byte) error {
	query := s.db.Rebind(`
		INSERT INTO questionnaire_sessions (user_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`)

	if _, err := s.db.ExecContext(ctx, query, userID, string(payload), time.Now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error saving questionnaire session", "user_id", userID, "error", err)
		return fmt.Errorf("failed to save session for user %d: %w", userID, err)
	}
	return nil
}

// DeleteSession removes the questionnaire session.
func (s *sqlxStore) DeleteSession(ctx context.Context, userID int64) error {
	query := s.db.Rebind(`DELETE FROM questionnaire_sessions WHERE user_id = ?`)

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting questionnaire session", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete session for user %d: %w", userID, err)
	}
	return nil
}

// PruneSessions deletes stale questionnaire sessions.
func (s *sqlxStore) PruneSessions(ctx context.Context, before time.Time) (int64, error) {
	return s.deleteBefore(ctx, "questionnaire_sessions", "updated_at", before)
}

// SaveChatMessage inserts a multi-chat turn.
func (s *sqlxStore) SaveChatMessage(ctx context.Context, message *ChatMessage) error {
	if message == nil {
		return fmt.Errorf("cannot save nil chat message")
	}
	if message.UserID == 0 {
		return fmt.Errorf("chat message must have a non-zero user_id")
	}
	if message.Content == "" {
		return fmt.Errorf("chat message must have non-empty content")
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO chat_messages (user_id, role, content, created_at)
		VALUES (:user_id, :role, :content, :created_at)
	`

	if _, err := s.db.NamedExecContext(ctx, query, message); err != nil {
		s.logger.ErrorContext(ctx, "Error saving chat message", "user_id", message.UserID, "error", err)
		return fmt.Errorf("failed to save chat message for user %d: %w", message.UserID, err)
	}
	return nil
}

// GetRecentChatMessages returns the latest turns in chronological order.
func (s *sqlxStore) GetRecentChatMessages(ctx context.Context, userID int64, limit int) ([]*ChatMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	var messages []*ChatMessage
	query := s.db.Rebind(`SELECT id, user_id, role, content, created_at
	          FROM chat_messages WHERE user_id = ? ORDER BY id DESC LIMIT ?`)

	if err := s.db.SelectContext(ctx, &messages, query, userID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting chat history", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get chat history for user %d: %w", userID, err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeleteChatMessages clears the user's multi-chat history.
func (s *sqlxStore) DeleteChatMessages(ctx context.Context, userID int64) error {
	query := s.db.Rebind(`DELETE FROM chat_messages WHERE user_id = ?`)

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting chat history", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete chat history for user %d: %w", userID, err)
	}
	return nil
}

// PruneChatMessages deletes old multi-chat turns.
func (s *sqlxStore) PruneChatMessages(ctx context.Context, before time.Time) (int64, error) {
	return s.deleteBefore(ctx, "chat_messages", "created_at", before)
}

// deleteBefore removes rows of table whose column is older than before.
// table and column are never user input.
func (s *sqlxStore) deleteBefore(ctx context.Context, table, column string, before time.Time) (int64, error) {
	query := s.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE %s < ?`, table, column))

	result, err := s.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning rows", "table", table, "error", err)
		return 0, fmt.Errorf("failed to prune %s: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned rows in %s: %w", table, err)
	}

	s.logger.DebugContext(ctx, "Pruned rows", "table", table, "count", affected)
	return affected, nil
}
