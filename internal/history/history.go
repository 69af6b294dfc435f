// Package history keeps the bounded, durable log of generated and
// analyzed contract records. The in-memory sequence is authoritative;
// storage failures are logged and never surfaced.
package history

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"kontratago/internal/models"
)

// DefaultCap bounds the history; appending past it evicts the oldest.
const DefaultCap = 20

// Store is the durable backing for the serialized history sequence.
// Implementations persist one opaque value under one key.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}

// History is the most-recent-first contract record log.
type History struct {
	mu    sync.Mutex
	store Store
	cap   int
	items []models.HistoryItem
}

// New builds an empty history over the given store. A nil store keeps
// the history memory-only. cap <= 0 falls back to DefaultCap.
func New(store Store, cap int) *History {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &History{store: store, cap: cap}
}

// Load reads the persisted sequence once at startup. A missing entry
// or a parse failure yields an empty history, never an error.
func (h *History) Load(ctx context.Context) {
	if h.store == nil {
		return
	}
	data, err := h.store.Load(ctx)
	if err != nil {
		log.Printf("history load: %v", err)
		return
	}
	if len(data) == 0 {
		return
	}
	var items []models.HistoryItem
	if err := json.Unmarshal(data, &items); err != nil {
		log.Printf("history decode: %v", err)
		return
	}
	if len(items) > h.cap {
		items = items[:h.cap]
	}
	h.mu.Lock()
	h.items = items
	h.mu.Unlock()
}

// Append prepends the item, truncates to the cap, and writes the full
// sequence through to the store.
func (h *History) Append(ctx context.Context, item models.HistoryItem) {
	h.mu.Lock()
	h.items = append([]models.HistoryItem{item}, h.items...)
	if len(h.items) > h.cap {
		h.items = h.items[:h.cap]
	}
	snapshot := make([]models.HistoryItem, len(h.items))
	copy(snapshot, h.items)
	h.mu.Unlock()

	h.persist(ctx, snapshot)
}

// Items returns a copy of the sequence, newest first.
func (h *History) Items() []models.HistoryItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.HistoryItem, len(h.items))
	copy(out, h.items)
	return out
}

// Get looks an item up by id.
func (h *History) Get(id string) (models.HistoryItem, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, item := range h.items {
		if item.ID == id {
			return item, true
		}
	}
	return models.HistoryItem{}, false
}

// Clear empties both memory and storage. Caller confirms intent.
func (h *History) Clear(ctx context.Context) {
	h.mu.Lock()
	h.items = nil
	h.mu.Unlock()
	if h.store == nil {
		return
	}
	if err := h.store.Clear(ctx); err != nil {
		log.Printf("history clear: %v", err)
	}
}

func (h *History) persist(ctx context.Context, items []models.HistoryItem) {
	if h.store == nil {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		log.Printf("history encode: %v", err)
		return
	}
	if err := h.store.Save(ctx, data); err != nil {
		log.Printf("history save: %v", err)
	}
}
