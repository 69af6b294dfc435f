// Package orchestrator is the single entry point for "send" and "file
// selected" actions. It resolves the active mode, drives the remote
// contract service, and keeps the processing placeholder honest: a
// placeholder is always resolved, on every exit path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"kontratago/internal/apperr"
	"kontratago/internal/client"
	"kontratago/internal/config"
	"kontratago/internal/history"
	"kontratago/internal/mode"
	"kontratago/internal/models"
	"kontratago/internal/session"
	"kontratago/internal/upload"
)

// ErrBusy rejects a submission while a chain is in flight for the
// same session.
var ErrBusy = errors.New("a request is already in flight for this session")

// ErrNoActiveSession reports a dispatch before any session exists.
var ErrNoActiveSession = errors.New("no active session")

// Backend is the slice of the request client the orchestrator drives.
type Backend interface {
	UploadAndExtract(ctx context.Context, file *models.UploadedFile) (*models.Entities, error)
	Analyze(ctx context.Context) (*models.Analysis, error)
	Generate(ctx context.Context, input string) (*models.Contract, error)
	Chat(ctx context.Context, message string, sessionID int64) (*client.ChatReply, error)
}

// Options tunes the orchestrator; zero values take the defaults
// below.
type Options struct {
	ChatMode     string
	MinPromptLen int
	MaxPromptLen int
	BannerTTL    time.Duration
	// ChatDelay paces the plain-chat static reply; ChainDelay sits
	// between the extract and analyze stages.
	ChatDelay  time.Duration
	ChainDelay time.Duration
	UploadTTL  time.Duration
}

const (
	defaultChatDelay  = 600 * time.Millisecond
	defaultChainDelay = 800 * time.Millisecond
)

const chatGuidance = "I can help you with contracts. Switch to Generate to draft a new contract from a description, or to Analyze to upload an existing one for a risk and compliance review."

const analyzeGuidance = "Analyze mode works on documents. Use the upload control to submit a contract (pdf, txt, doc, or docx)."

// Orchestrator coordinates the stores, the mode controller, and the
// backend client for one gateway process.
type Orchestrator struct {
	opts      Options
	store     *session.Store
	history   *history.History
	modes     *mode.Controller
	validator *upload.Validator
	backend   Backend
	state     *chainState
}

func New(store *session.Store, hist *history.History, modes *mode.Controller, validator *upload.Validator, backend Backend, opts Options) *Orchestrator {
	if opts.ChatMode == "" {
		opts.ChatMode = config.ChatModePlain
	}
	if opts.MinPromptLen <= 0 {
		opts.MinPromptLen = 10
	}
	if opts.MaxPromptLen <= 0 {
		opts.MaxPromptLen = 5000
	}
	if opts.BannerTTL <= 0 {
		opts.BannerTTL = 5 * time.Second
	}
	if opts.ChatDelay == 0 {
		opts.ChatDelay = defaultChatDelay
	}
	if opts.ChainDelay == 0 {
		opts.ChainDelay = defaultChainDelay
	}
	if opts.UploadTTL <= 0 {
		opts.UploadTTL = 30 * time.Minute
	}
	return &Orchestrator{
		opts:      opts,
		store:     store,
		history:   hist,
		modes:     modes,
		validator: validator,
		backend:   backend,
		state:     newChainState(),
	}
}

// Send handles the send action against the current session under the
// active mode. It blocks until the chain resolves, streaming events
// through emit.
func (o *Orchestrator) Send(ctx context.Context, content string, emit EventFn) error {
	cur := o.store.Current()
	if cur == nil {
		return ErrNoActiveSession
	}
	sid := cur.ID

	activeMode := o.modes.Current()
	if activeMode == mode.Generate {
		// Length bounds block the call before any network request.
		if err := o.checkPromptLength(content); err != nil {
			return err
		}
	}

	tag := uuid.NewString()
	if !o.state.begin(sid, tag) {
		return ErrBusy
	}
	debugLog("[chain %s] send dispatched for session %d in %s mode", tag, sid, activeMode)
	ch := newChain(o, tag, sid, emit)
	defer ch.close()

	switch activeMode {
	case mode.Generate:
		return o.runGenerate(ctx, ch, content)
	case mode.Analyze:
		ch.appendUser(ctx, models.Message{Role: models.RoleUser, Content: content})
		ch.appendAssistant(ctx, models.Message{Role: models.RoleAssistant, Content: analyzeGuidance})
		return nil
	default:
		return o.runChat(ctx, ch, content)
	}
}

// Upload handles the file-selected action: validation, the upload
// request, and the chained analysis. The candidate file is held only
// for the duration of the cycle.
func (o *Orchestrator) Upload(ctx context.Context, file *models.UploadedFile, emit EventFn) error {
	cur := o.store.Current()
	if cur == nil {
		return ErrNoActiveSession
	}
	sid := cur.ID

	// Validator gate: either failure clears file-input state and
	// aborts before any message is appended.
	if err := o.validator.Check(file.Name, file.Size, file.MimeType); err != nil {
		o.state.dropUpload(sid)
		return err
	}

	tag := uuid.NewString()
	if !o.state.begin(sid, tag) {
		return ErrBusy
	}
	debugLog("[chain %s] upload chain dispatched for session %d (%s)", tag, sid, file.Name)
	file.ExpiresAt = time.Now().Add(o.opts.UploadTTL)
	o.state.holdUpload(sid, file)

	ch := newChain(o, tag, sid, emit)
	defer ch.close()
	return o.runAnalyzeChain(ctx, ch, file)
}

// RemoveFile clears the held upload on explicit user request.
func (o *Orchestrator) RemoveFile(sessionID int64) {
	o.state.dropUpload(sessionID)
}

// HeldFile exposes the pending upload for the given session.
func (o *Orchestrator) HeldFile(sessionID int64) *models.UploadedFile {
	return o.state.heldUpload(sessionID)
}

// Busy reports whether a chain is in flight for the session, which is
// when the UI disables the send affordance.
func (o *Orchestrator) Busy(sessionID int64) bool {
	return o.state.busy(sessionID)
}

// LivePlaceholders counts currently visible placeholders.
func (o *Orchestrator) LivePlaceholders() int {
	return o.state.livePlaceholders()
}

func (o *Orchestrator) runChat(ctx context.Context, ch *chain, content string) error {
	ch.appendUser(ctx, models.Message{Role: models.RoleUser, Content: content})
	ch.showPlaceholder("Thinking...")

	if o.opts.ChatMode != config.ChatModeBackend {
		// No backend call is defined for plain chat; resolve after a
		// fixed short delay with static guidance.
		o.pause(ctx, o.opts.ChatDelay)
		ch.removePlaceholder()
		ch.appendAssistant(ctx, models.Message{Role: models.RoleAssistant, Content: chatGuidance})
		return nil
	}

	reply, err := o.backend.Chat(ctx, content, ch.sessionID)
	if err != nil {
		ch.fail(ctx, err)
		return nil
	}
	ch.removePlaceholder()
	ch.appendAssistant(ctx, models.Message{Role: models.RoleAssistant, Content: reply.Response})

	// A reply that carries a processed payload also feeds the history
	// and the preview surface.
	if record := chatRecord(reply); record != nil {
		kind := models.HistoryGenerated
		if record.Analysis != nil {
			kind = models.HistoryAnalyzed
		}
		ch.record(ctx, kind, *record)
		ch.preview(record)
	}
	return nil
}

func (o *Orchestrator) runGenerate(ctx context.Context, ch *chain, content string) error {
	ch.appendUser(ctx, models.Message{Role: models.RoleUser, Content: content})
	ch.showPlaceholder("Generating contract...")

	contract, err := o.backend.Generate(ctx, content)
	if err != nil {
		ch.fail(ctx, err)
		return nil
	}
	ch.removePlaceholder()
	ch.appendAssistant(ctx, models.Message{
		Role:         models.RoleAssistant,
		Content:      formatContract(contract),
		Downloadable: true,
	})
	ch.record(ctx, models.HistoryGenerated, models.ContractRecord{
		ContractType: contract.Title,
		Content:      contract.Content,
		Validation:   &contract.ComplianceChecks,
	})
	return nil
}

func (o *Orchestrator) runAnalyzeChain(ctx context.Context, ch *chain, file *models.UploadedFile) error {
	ch.appendUser(ctx, models.Message{
		Role:     models.RoleUser,
		Content:  fmt.Sprintf("Uploaded %s for analysis", file.Name),
		FileName: file.Name,
	})

	ch.showPlaceholder("Extracting entities...")
	entities, err := o.backend.UploadAndExtract(ctx, file)
	if err != nil {
		ch.failUpload(ctx, err)
		return nil
	}
	ch.removePlaceholder()
	ch.appendAssistant(ctx, models.Message{
		Role:    models.RoleAssistant,
		Content: formatEntities(file.Name, entities),
	})

	// The analysis stage chains after a short fixed delay, under its
	// own placeholder.
	o.pause(ctx, o.opts.ChainDelay)
	ch.showPlaceholder("Analyzing contract...")
	analysis, err := o.backend.Analyze(ctx)
	if err != nil {
		ch.failUpload(ctx, err)
		return nil
	}
	ch.removePlaceholder()
	ch.appendAssistant(ctx, models.Message{
		Role:    models.RoleAssistant,
		Content: formatAnalysis(analysis),
	})
	ch.record(ctx, models.HistoryAnalyzed, models.ContractRecord{
		ContractType: "analysis",
		Entities:     entities,
		Analysis:     analysis,
	})
	ch.clearUpload()
	return nil
}

func (o *Orchestrator) checkPromptLength(content string) error {
	n := len([]rune(content))
	if n == 0 {
		return apperr.NewValidation("input", "describe the contract you need")
	}
	if n < o.opts.MinPromptLen {
		return apperr.NewValidation("input",
			"description is too short; use at least %d characters", o.opts.MinPromptLen)
	}
	if n > o.opts.MaxPromptLen {
		return apperr.NewValidation("input",
			"description is too long; keep it under %d characters", o.opts.MaxPromptLen)
	}
	return nil
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// StartUploadCleaner drops held uploads whose TTL lapsed, so a user
// who walked away mid-cycle is not stuck with a stale file reference.
func (o *Orchestrator) StartUploadCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				for _, sid := range o.state.expireUploads(now) {
					log.Printf("dropped expired upload for session %d", sid)
				}
			}
		}
	}()
}

func chatRecord(reply *client.ChatReply) *models.ContractRecord {
	if reply.ContractID == "" && reply.Analysis == nil {
		return nil
	}
	return &models.ContractRecord{
		ContractID:      reply.ContractID,
		ContractType:    reply.ContractType,
		Analysis:        reply.Analysis,
		Summary:         reply.Summary,
		Risks:           reply.Risks,
		LegalCompliance: reply.LegalCompliance,
	}
}
