package store

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type View string

const (
	ViewWizard       View = "wizard"
	ViewConversation View = "conversation"
)

// Session replaces the hard-coded demo user: it carries the acting user for
// every backend call made on its behalf.
type Session struct {
	ID         string    `json:"id"` // UUID
	UserID     string    `json:"userId"`
	PinnedSeed *float64  `json:"pinnedSeed,omitempty"`
	View       View      `json:"view"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Message is immutable once appended.
type Message struct {
	ID        string    `json:"id"` // UUID
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
