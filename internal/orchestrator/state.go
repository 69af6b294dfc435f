package orchestrator

import (
	"sync"
	"time"

	"kontratago/internal/models"
)

// chainState tracks in-flight chains and held uploads per session.
// Each session runs at most one chain at a time; the send affordance
// stays disabled until the chain resolves.
type chainState struct {
	mu       sync.Mutex
	inFlight map[int64]string               // session id -> chain tag
	pending  map[int64]*models.UploadedFile // session id -> held upload
	live     map[string]*Placeholder        // chain tag -> visible placeholder
}

func newChainState() *chainState {
	return &chainState{
		inFlight: make(map[int64]string),
		pending:  make(map[int64]*models.UploadedFile),
		live:     make(map[string]*Placeholder),
	}
}

// begin reserves the session for a chain; it fails when one is
// already running.
func (s *chainState) begin(sessionID int64, tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = tag
	return true
}

func (s *chainState) finish(sessionID int64, tag string) {
	s.mu.Lock()
	if s.inFlight[sessionID] == tag {
		delete(s.inFlight, sessionID)
	}
	delete(s.live, tag)
	s.mu.Unlock()
}

func (s *chainState) busy(sessionID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inFlight[sessionID]
	return busy
}

func (s *chainState) setPlaceholder(tag string, p *Placeholder) {
	s.mu.Lock()
	s.live[tag] = p
	s.mu.Unlock()
}

func (s *chainState) clearPlaceholder(tag string) *Placeholder {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.live[tag]
	delete(s.live, tag)
	return p
}

// livePlaceholders counts visible placeholders across all chains.
func (s *chainState) livePlaceholders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *chainState) holdUpload(sessionID int64, f *models.UploadedFile) {
	s.mu.Lock()
	s.pending[sessionID] = f
	s.mu.Unlock()
}

func (s *chainState) heldUpload(sessionID int64) *models.UploadedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[sessionID]
}

func (s *chainState) dropUpload(sessionID int64) {
	s.mu.Lock()
	delete(s.pending, sessionID)
	s.mu.Unlock()
}

// expireUploads drops held uploads past their deadline and returns
// the affected session ids.
func (s *chainState) expireUploads(now time.Time) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []int64
	for id, f := range s.pending {
		if !f.ExpiresAt.IsZero() && now.After(f.ExpiresAt) {
			delete(s.pending, id)
			expired = append(expired, id)
		}
	}
	return expired
}
