package models

import "time"

// Message captures one entry in a conversation thread.

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is immutable once appended; ordering within a session is
// insertion order.
type Message struct {
	ID           int64     `json:"id"`
	SessionID    int64     `json:"session_id"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	FileName     string    `json:"file_name,omitempty"`
	Downloadable bool      `json:"downloadable,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
