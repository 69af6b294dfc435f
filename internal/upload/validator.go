// Package upload performs the pre-flight checks a candidate file must
// pass before any network call is made.
package upload

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"kontratago/internal/apperr"
)

// DefaultMaxBytes is the upload ceiling applied when the config leaves
// it unset.
const DefaultMaxBytes = 16 << 20

// DefaultExtensions is the document set the analyzer accepts.
var DefaultExtensions = []string{".pdf", ".txt", ".doc", ".docx"}

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Validator holds the configured upload constraints.
type Validator struct {
	maxBytes int64
	allowed  map[string]struct{}
}

// NewValidator builds a validator; zero or empty arguments fall back
// to the defaults.
func NewValidator(maxBytes int64, extensions []string) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &Validator{maxBytes: maxBytes, allowed: allowed}
}

// MaxBytes exposes the configured ceiling for surfaces that report it.
func (v *Validator) MaxBytes() int64 { return v.maxBytes }

// Check validates name, size, and MIME type. It is pure and
// synchronous; a non-nil error is always a *apperr.ValidationError.
func (v *Validator) Check(name string, size int64, mimeType string) error {
	if size > v.maxBytes {
		return apperr.NewValidation("file",
			"file exceeds the %d MB limit", v.maxBytes>>20)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := v.allowed[ext]; ok {
		return nil
	}
	// Extension unknown; a recognized MIME type still passes.
	if mimeType != "" {
		for allowedExt := range v.allowed {
			if mt, ok := mimeTypes[allowedExt]; ok && strings.HasPrefix(mimeType, mt) {
				return nil
			}
		}
	}
	return apperr.NewValidation("file",
		"unsupported file type %q (allowed: %s)", ext, strings.Join(v.extensions(), ", "))
}

func (v *Validator) extensions() []string {
	out := make([]string, 0, len(v.allowed))
	for ext := range v.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Describe summarizes the constraints for UI hint panels.
func (v *Validator) Describe() string {
	return fmt.Sprintf("Accepted: %s, up to %d MB",
		strings.Join(v.extensions(), ", "), v.maxBytes>>20)
}
