package models

import "time"

// UploadedFile describes a candidate document held only while a
// single upload/analyze cycle is in flight. It is never persisted;
// the orchestrator clears it on completion, error, or removal.
type UploadedFile struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	Content   []byte    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}
