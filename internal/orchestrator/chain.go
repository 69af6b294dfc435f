package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"kontratago/internal/apperr"
	"kontratago/internal/models"
)

// chain is one orchestration run: a tag, the session id current at
// dispatch time, and the event stream. The tag guards against stale
// results landing after the user switched sessions.
type chain struct {
	o         *Orchestrator
	tag       string
	sessionID int64
	emit      EventFn
	emitDead  bool
}

func newChain(o *Orchestrator, tag string, sessionID int64, emit EventFn) *chain {
	return &chain{o: o, tag: tag, sessionID: sessionID, emit: emit}
}

// close releases the session and resolves any placeholder the chain
// leaked through an unexpected exit path.
func (c *chain) close() {
	if p := c.o.state.clearPlaceholder(c.tag); p != nil {
		c.send(Event{Kind: EventPlaceholderRemoved, Placeholder: p})
	}
	c.o.state.finish(c.sessionID, c.tag)
	debugLog("[chain %s] resolved for session %d", c.tag, c.sessionID)
}

func (c *chain) send(ev Event) {
	if c.emit == nil || c.emitDead {
		return
	}
	if err := c.emit(ev); err != nil {
		// The render side went away; the chain still runs to keep
		// store and history consistent.
		c.emitDead = true
		log.Printf("event sink closed mid-chain: %v", err)
	}
}

// current reports whether the chain's session is still the active one.
func (c *chain) current() bool {
	cur := c.o.store.Current()
	return cur != nil && cur.ID == c.sessionID
}

func (c *chain) appendUser(ctx context.Context, msg models.Message) {
	if stored := c.o.store.Append(ctx, c.sessionID, msg); stored != nil {
		c.send(Event{Kind: EventMessage, Message: stored})
	}
}

// appendAssistant applies a chain result. Results arriving after the
// user switched sessions are discarded.
func (c *chain) appendAssistant(ctx context.Context, msg models.Message) {
	if !c.current() {
		log.Printf("discarding stale response for session %d", c.sessionID)
		return
	}
	if stored := c.o.store.Append(ctx, c.sessionID, msg); stored != nil {
		c.send(Event{Kind: EventMessage, Message: stored})
	}
}

func (c *chain) showPlaceholder(text string) {
	p := &Placeholder{ID: uuid.NewString(), Text: text}
	c.o.state.setPlaceholder(c.tag, p)
	c.send(Event{Kind: EventPlaceholderShown, Placeholder: p})
}

func (c *chain) removePlaceholder() {
	if p := c.o.state.clearPlaceholder(c.tag); p != nil {
		c.send(Event{Kind: EventPlaceholderRemoved, Placeholder: p})
	}
}

// fail resolves the placeholder with an assistant-role error message
// and a transient banner.
func (c *chain) fail(ctx context.Context, err error) {
	c.removePlaceholder()
	msg := apperr.UserMessage(err)
	c.appendAssistant(ctx, models.Message{Role: models.RoleAssistant, Content: msg})
	c.send(Event{Kind: EventBanner, Banner: &Banner{
		Message:    msg,
		TTLSeconds: int(c.o.opts.BannerTTL / time.Second),
	}})
}

// failUpload additionally resets the held file so the user must
// re-upload after a failed stage.
func (c *chain) failUpload(ctx context.Context, err error) {
	c.fail(ctx, err)
	c.clearUpload()
}

func (c *chain) clearUpload() {
	c.o.state.dropUpload(c.sessionID)
	c.send(Event{Kind: EventFileCleared})
}

// record caches a contract record into the history and reports it.
// Stale chains skip the cache along with the message.
func (c *chain) record(ctx context.Context, kind models.HistoryKind, data models.ContractRecord) {
	if !c.current() {
		return
	}
	item := models.HistoryItem{
		ID:           uuid.NewString(),
		Kind:         kind,
		ContractType: data.ContractType,
		Timestamp:    time.Now().UTC(),
		Data:         data,
	}
	c.o.history.Append(ctx, item)
	c.send(Event{Kind: EventHistory, History: &item})
}

func (c *chain) preview(record *models.ContractRecord) {
	c.send(Event{Kind: EventPreview, Preview: record})
}
