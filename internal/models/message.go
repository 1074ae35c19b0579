package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageMeta carries role-specific flags alongside a message.
type MessageMeta struct {
	UserInitiated  bool `json:"user_initiated,omitempty"`
	AIGenerated    bool `json:"ai_generated,omitempty"`
	Error          bool `json:"error,omitempty"`
	RotationOrigin bool `json:"rotation_origin,omitempty"`
}

// Message is one turn in a session. Ordinals are unique and strictly
// increasing per session; the highest ordinal's thread id is the session's
// current thread.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	ThreadID  string      `json:"thread_id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Ordinal   int64       `json:"ordinal"`
	Meta      MessageMeta `json:"meta"`
	CreatedAt time.Time   `json:"created_at"`
}
