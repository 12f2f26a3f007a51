package database

import (
	"time"
)

// Default generation settings applied to users who never changed them.
const (
	DefaultStyle = "Информационный"
	DefaultTone  = "Дружелюбный"
	DefaultSize  = 2
)

// User is a registered bot user.
type User struct {
	ID           uint      `db:"id"`
	UserID       int64     `db:"user_id"`
	Username     string    `db:"username"`
	FullName     string    `db:"full_name"`
	IsAdmin      bool      `db:"is_admin"`
	RegisteredAt time.Time `db:"registered_at"`
}

// UserSettings holds per-user generation preferences and the organisation
// context used as the system prompt.
type UserSettings struct {
	UserID int64  `db:"user_id"`
	Style  string `db:"style"`
	Tone   string `db:"tone"`
	// Size selects the approximate length: 1, 2 or 3.
	Size           int       `db:"size"`
	OrgDescription string    `db:"org_description"`
	SystemPrompt   string    `db:"system_prompt"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// DefaultUserSettings returns the settings of a user with no stored row.
func DefaultUserSettings(userID int64) *UserSettings {
	return &UserSettings{
		UserID: userID,
		Style:  DefaultStyle,
		Tone:   DefaultTone,
		Size:   DefaultSize,
	}
}

// Roles of stored chat messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a multi-chat conversation.
type ChatMessage struct {
	ID        uint      `db:"id"`
	UserID    int64     `db:"user_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
