// Package menu manages the per-session action menus of the sidebar.
// At most one menu is open across all sessions at any time.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"kontratago/internal/models"
	"kontratago/internal/session"
)

// Action names one entry of the menu. New actions register in the
// dispatch table without touching the open/close protocol.
type Action string

const (
	ActionShare   Action = "share"
	ActionRename  Action = "rename"
	ActionPin     Action = "pin"
	ActionArchive Action = "archive"
	ActionDelete  Action = "delete"
)

// ErrConfirmationRequired guards destructive actions.
var ErrConfirmationRequired = errors.New("confirmation required")

// ErrUnknownAction reports an action missing from the dispatch table.
var ErrUnknownAction = errors.New("unknown menu action")

// Request carries the action parameters from the UI.
type Request struct {
	SessionID int64
	Title     string
	Confirmed bool
}

// Result is the action outcome relevant to the UI.
type Result struct {
	ShareToken string `json:"share_token,omitempty"`
	ShareText  string `json:"share_text,omitempty"`
}

type handler func(ctx context.Context, req Request) (*Result, error)

// Controller tracks which session's menu is open and dispatches its
// actions against the session store.
type Controller struct {
	mu       sync.Mutex
	openID   int64
	store    *session.Store
	handlers map[Action]handler
}

func NewController(store *session.Store) *Controller {
	c := &Controller{store: store}
	c.handlers = map[Action]handler{
		ActionShare:   c.share,
		ActionRename:  c.rename,
		ActionPin:     c.pin,
		ActionArchive: c.archive,
		ActionDelete:  c.delete,
	}
	return c
}

// Open shows the menu for the given session, closing any other open
// menu first.
func (c *Controller) Open(sessionID int64) {
	c.mu.Lock()
	c.openID = sessionID
	c.mu.Unlock()
}

// Close dismisses the open menu; it is what an outside click or a
// completed action resolves to.
func (c *Controller) Close() {
	c.mu.Lock()
	c.openID = 0
	c.mu.Unlock()
}

// OpenID returns the session whose menu is open, 0 when none is.
func (c *Controller) OpenID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openID
}

// Dispatch runs one menu action and closes the menu.
func (c *Controller) Dispatch(ctx context.Context, action Action, req Request) (*Result, error) {
	h, ok := c.handlers[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	defer c.Close()
	return h(ctx, req)
}

func (c *Controller) share(_ context.Context, req Request) (*Result, error) {
	se, ok := c.store.Get(req.SessionID)
	if !ok {
		return nil, errors.New("session not found")
	}
	return &Result{
		ShareToken: uuid.NewString(),
		ShareText:  exportText(se),
	}, nil
}

func (c *Controller) rename(ctx context.Context, req Request) (*Result, error) {
	c.store.Rename(ctx, req.SessionID, req.Title)
	return &Result{}, nil
}

func (c *Controller) pin(ctx context.Context, req Request) (*Result, error) {
	c.store.TogglePin(ctx, req.SessionID)
	return &Result{}, nil
}

func (c *Controller) archive(ctx context.Context, req Request) (*Result, error) {
	c.store.ToggleArchive(ctx, req.SessionID)
	return &Result{}, nil
}

func (c *Controller) delete(ctx context.Context, req Request) (*Result, error) {
	if !req.Confirmed {
		return nil, ErrConfirmationRequired
	}
	if !c.store.Delete(ctx, req.SessionID) {
		return nil, errors.New("session not found")
	}
	return &Result{}, nil
}

func exportText(se *models.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", se.Title)
	for _, m := range se.Messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return b.String()
}
