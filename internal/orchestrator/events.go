package orchestrator

import "kontratago/internal/models"

// EventKind tags what an orchestration chain is reporting.
type EventKind string

const (
	// EventMessage carries a message appended to the active session.
	EventMessage EventKind = "message"
	// EventPlaceholderShown marks the start of an in-flight stage.
	EventPlaceholderShown EventKind = "placeholder"
	// EventPlaceholderRemoved resolves the placeholder; it always
	// follows a matching shown event, on success and on failure.
	EventPlaceholderRemoved EventKind = "placeholder_removed"
	// EventBanner is a transient, auto-dismissing error banner.
	EventBanner EventKind = "banner"
	// EventHistory reports a record cached into the contract history.
	EventHistory EventKind = "history"
	// EventPreview hands a contract record to the preview surface.
	EventPreview EventKind = "preview"
	// EventFileCleared tells the UI the held upload was reset.
	EventFileCleared EventKind = "file_cleared"
)

// Placeholder identifies one transient processing indicator.
type Placeholder struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Banner is the transient error surface.
type Banner struct {
	Message    string `json:"message"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Event is one step of an orchestration chain, streamed to the render
// layer in order.
type Event struct {
	Kind        EventKind              `json:"kind"`
	Message     *models.Message        `json:"message,omitempty"`
	Placeholder *Placeholder           `json:"placeholder,omitempty"`
	Banner      *Banner                `json:"banner,omitempty"`
	History     *models.HistoryItem    `json:"history,omitempty"`
	Preview     *models.ContractRecord `json:"preview,omitempty"`
}

// EventFn receives chain events. A nil EventFn is allowed; an error
// return stops further emission but never the chain itself.
type EventFn func(Event) error
