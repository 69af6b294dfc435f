// Package mode tracks the active workflow mode and the UI affordances
// derived from it.
package mode

import "sync"

// Mode is one of the three mutually exclusive primary workflows.
type Mode string

const (
	Chat     Mode = "chat"
	Generate Mode = "generate"
	Analyze  Mode = "analyze"
)

var placeholders = map[Mode]string{
	Chat:     "Ask anything about contracts...",
	Generate: "Describe the contract you need (parties, amounts, duration)...",
	Analyze:  "Upload a contract to analyze it for risks and compliance.",
}

var hints = map[Mode]string{
	Generate: "Example: \"Lease contract between Juan Dela Cruz and Maria Santos, 15,000 pesos monthly, one year\"",
	Analyze:  "Supported documents: pdf, txt, doc, docx.",
}

// State is the resolved UI view of the controller.
type State struct {
	Mode            Mode   `json:"mode"`
	EvaluationOpen  bool   `json:"evaluation_open"`
	Placeholder     string `json:"placeholder"`
	HintText        string `json:"hint_text"`
	HintVisible     bool   `json:"hint_visible"`
	UploadRequested bool   `json:"upload_requested"`
}

// Controller holds the primary mode plus the independent evaluation
// overlay flag. A new controller starts in Chat with the overlay
// closed.
type Controller struct {
	mu             sync.Mutex
	mode           Mode
	evaluationOpen bool
}

func NewController() *Controller {
	return &Controller{mode: Chat}
}

// Select switches the primary mode and closes the evaluation overlay.
// Unknown modes are ignored.
func (c *Controller) Select(m Mode) State {
	c.mu.Lock()
	if _, ok := placeholders[m]; ok {
		c.mode = m
		c.evaluationOpen = false
	}
	c.mu.Unlock()
	return c.State()
}

// ToggleEvaluation flips the overlay without touching the primary
// mode or its hint panel.
func (c *Controller) ToggleEvaluation() State {
	c.mu.Lock()
	c.evaluationOpen = !c.evaluationOpen
	c.mu.Unlock()
	return c.State()
}

// Current returns the primary mode.
func (c *Controller) Current() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// EvaluationOpen reports the overlay flag.
func (c *Controller) EvaluationOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluationOpen
}

// Reset restores the initial state, used when a session is created.
func (c *Controller) Reset() State {
	c.mu.Lock()
	c.mode = Chat
	c.evaluationOpen = false
	c.mu.Unlock()
	return c.State()
}

// State resolves the full UI view; it is deterministic per mode.
func (c *Controller) State() State {
	c.mu.Lock()
	m, open := c.mode, c.evaluationOpen
	c.mu.Unlock()
	hint := hints[m]
	return State{
		Mode:            m,
		EvaluationOpen:  open,
		Placeholder:     placeholders[m],
		HintText:        hint,
		HintVisible:     hint != "",
		UploadRequested: m == Analyze,
	}
}
