package models

import "time"

// Session groups an ordered sequence of messages under one title.
// IDs are millisecond timestamps taken at creation; the store bumps
// them on collision so they stay unique.
type Session struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Messages  []*Message `json:"messages"`
	Pinned    bool       `json:"pinned"`
	Archived  bool       `json:"archived"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DefaultSessionTitle is used until the first user message rewrites it.
const DefaultSessionTitle = "New Session"
