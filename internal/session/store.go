// Package session owns the conversation collection and the single
// current-session pointer. The in-memory state is authoritative; every
// mutation is written through to the database, and a failed write is
// logged without disturbing the caller.
package session

import (
	"context"
	"database/sql"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"kontratago/internal/models"
)

// TitleLimit is the rune budget for a title derived from the first
// user message; longer content is truncated with an ellipsis.
const TitleLimit = 30

// Store holds all sessions and the current-session pointer.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	sessions map[int64]*models.Session
	current  int64
	onChange func()
}

// NewStore builds an empty store over the given database handle. The
// handle may be nil in tests; persistence is then skipped entirely.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		sessions: make(map[int64]*models.Session),
	}
}

// SetOnChange registers the chats-list re-render hook. It fires after
// every mutation, outside the store lock.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Load replays persisted sessions into memory. Called once at startup;
// an empty database yields one fresh session so exactly one session is
// always current.
func (s *Store) Load(ctx context.Context) error {
	if s.db != nil {
		sessions, err := s.loadAll(ctx)
		if err != nil {
			return err
		}
		s.mu.Lock()
		for _, se := range sessions {
			s.sessions[se.ID] = se
		}
		s.current = newestID(s.sessions)
		s.mu.Unlock()
	}
	if s.Current() == nil {
		s.Create(ctx)
	}
	return nil
}

// Create starts a fresh session and makes it current.
func (s *Store) Create(ctx context.Context) *models.Session {
	now := time.Now().UTC()

	s.mu.Lock()
	id := now.UnixMilli()
	for s.sessions[id] != nil {
		id++
	}
	se := &models.Session{
		ID:        id,
		Title:     models.DefaultSessionTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[id] = se
	s.current = id
	snap := snapshot(se)
	s.mu.Unlock()

	s.persistSession(ctx, snap)
	s.notify()
	return snap
}

// Current returns a snapshot of the active session, or nil before
// Load.
func (s *Store) Current() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[s.current]
	if !ok {
		return nil
	}
	return snapshot(se)
}

// Get looks a session up by id and returns a snapshot.
func (s *Store) Get(id int64) (*models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return snapshot(se), true
}

// Switch makes the identified session current. Unknown ids are a
// silent no-op, matching the sidebar behavior.
func (s *Store) Switch(id int64) *models.Session {
	s.mu.Lock()
	se, ok := s.sessions[id]
	var snap *models.Session
	if ok {
		s.current = id
		snap = snapshot(se)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.notify()
	return snap
}

// List returns the sidebar ordering: pinned sessions first, then by
// last activity, archived sessions at the end.
func (s *Store) List() []*models.Session {
	s.mu.Lock()
	out := make([]*models.Session, 0, len(s.sessions))
	for _, se := range s.sessions {
		out = append(out, snapshot(se))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Archived != b.Archived {
			return !a.Archived
		}
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})
	return out
}

// Rename applies a trimmed title; blank input is a no-op.
func (s *Store) Rename(ctx context.Context, id int64, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	s.mu.Lock()
	se, ok := s.sessions[id]
	var snap *models.Session
	if ok {
		se.Title = title
		se.UpdatedAt = time.Now().UTC()
		snap = snapshot(se)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.persistSession(ctx, snap)
	s.notify()
}

// TogglePin flips the pinned flag.
func (s *Store) TogglePin(ctx context.Context, id int64) {
	s.toggle(ctx, id, func(se *models.Session) { se.Pinned = !se.Pinned })
}

// ToggleArchive flips the archived flag.
func (s *Store) ToggleArchive(ctx context.Context, id int64) {
	s.toggle(ctx, id, func(se *models.Session) { se.Archived = !se.Archived })
}

func (s *Store) toggle(ctx context.Context, id int64, apply func(*models.Session)) {
	s.mu.Lock()
	se, ok := s.sessions[id]
	var snap *models.Session
	if ok {
		apply(se)
		snap = snapshot(se)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.persistSession(ctx, snap)
	s.notify()
}

// Delete removes a session irreversibly. When the current session is
// deleted the newest remaining one takes over; with none left a fresh
// session is created so the current pointer never dangles.
func (s *Store) Delete(ctx context.Context, id int64) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, id)
	needFresh := false
	if s.current == id {
		s.current = newestID(s.sessions)
		needFresh = s.current == 0
	}
	s.mu.Unlock()

	s.deleteSessionRows(ctx, id)
	if needFresh {
		s.Create(ctx)
		return true
	}
	s.notify()
	return true
}

// Append adds a message to the identified session. A missing session
// is a no-op. The first user-authored message rewrites the title via
// the truncation rule, but only while the title is still the default,
// so an explicit rename survives the first message.
func (s *Store) Append(ctx context.Context, sessionID int64, msg models.Message) *models.Message {
	now := time.Now().UTC()

	s.mu.Lock()
	se, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	msg.SessionID = sessionID
	msg.CreatedAt = now
	msg.ID = now.UnixNano()
	for _, prev := range se.Messages {
		if prev.ID >= msg.ID {
			msg.ID = prev.ID + 1
		}
	}
	stored := msg
	se.Messages = append(se.Messages, &stored)
	se.UpdatedAt = now
	if stored.Role == models.RoleUser && se.Title == models.DefaultSessionTitle && firstUserMessage(se) == &stored {
		se.Title = TruncateTitle(stored.Content)
	}
	snap := snapshot(se)
	out := stored
	s.mu.Unlock()

	s.persistMessage(ctx, snap, &out)
	s.notify()
	return &out
}

// snapshot copies a session so callers can read it after the store
// lock is released. Kept messages are copied too; mutations under the
// lock must never see a caller-held pointer.
func snapshot(se *models.Session) *models.Session {
	cp := *se
	cp.Messages = make([]*models.Message, len(se.Messages))
	for i, m := range se.Messages {
		mc := *m
		cp.Messages[i] = &mc
	}
	return &cp
}

// TruncateTitle shortens message content to the session-title budget.
func TruncateTitle(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= TitleLimit {
		return content
	}
	return string(runes[:TitleLimit]) + "..."
}

func firstUserMessage(se *models.Session) *models.Message {
	for _, m := range se.Messages {
		if m.Role == models.RoleUser {
			return m
		}
	}
	return nil
}

func newestID(sessions map[int64]*models.Session) int64 {
	var best int64
	var bestAt time.Time
	for id, se := range sessions {
		if best == 0 || se.CreatedAt.After(bestAt) || (se.CreatedAt.Equal(bestAt) && id > best) {
			best = id
			bestAt = se.CreatedAt
		}
	}
	return best
}

func logPersistErr(op string, err error) {
	if err != nil {
		log.Printf("session persistence (%s): %v", op, err)
	}
}
