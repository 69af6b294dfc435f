// Package api exposes the orchestration layer to the render surface
// over a local HTTP API. Long-running chains stream their events as
// SSE so the UI can show and resolve processing placeholders live.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"kontratago/internal/apperr"
	"kontratago/internal/feedback"
	"kontratago/internal/history"
	"kontratago/internal/menu"
	"kontratago/internal/mode"
	"kontratago/internal/models"
	"kontratago/internal/orchestrator"
	"kontratago/internal/session"
	"kontratago/internal/upload"
)

// Orchestrator is the chain surface the handlers drive.
type Orchestrator interface {
	Send(ctx context.Context, content string, emit orchestrator.EventFn) error
	Upload(ctx context.Context, file *models.UploadedFile, emit orchestrator.EventFn) error
	RemoveFile(sessionID int64)
	Busy(sessionID int64) bool
}

// ContractFetcher proxies stored-contract reads to the backend.
type ContractFetcher interface {
	FetchContractContent(ctx context.Context, id string) (string, error)
	DownloadContract(ctx context.Context, id string) ([]byte, string, error)
}

// Handler wires HTTP routes to the session store, mode controller,
// orchestrator, menus, history, and feedback collector.
type Handler struct {
	store     *session.Store
	modes     *mode.Controller
	orch      Orchestrator
	menus     *menu.Controller
	history   *history.History
	feedback  *feedback.Collector
	contracts ContractFetcher
	validator *upload.Validator

	// rev counts session mutations; the sidebar polls it to decide
	// whether to re-fetch the list.
	rev atomic.Int64
}

// NewHandler constructs a Handler instance.
func NewHandler(store *session.Store, modes *mode.Controller, orch Orchestrator, menus *menu.Controller, hist *history.History, fb *feedback.Collector, contracts ContractFetcher, validator *upload.Validator) *Handler {
	h := &Handler{
		store:     store,
		modes:     modes,
		orch:      orch,
		menus:     menus,
		history:   hist,
		feedback:  fb,
		contracts: contracts,
		validator: validator,
	}
	store.SetOnChange(func() { h.rev.Add(1) })
	return h
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	app := router.Group("/app")
	app.GET("/sessions", h.listSessions)
	app.POST("/sessions", h.createSession)
	app.GET("/sessions/:id", h.getSession)
	app.POST("/sessions/:id/switch", h.switchSession)
	app.DELETE("/sessions/:id", h.deleteSession)

	app.POST("/sessions/:id/menu", h.openMenu)
	app.POST("/sessions/:id/menu/:action", h.menuAction)
	app.POST("/menu/close", h.closeMenu)
	app.GET("/menu", h.menuState)

	app.GET("/mode", h.modeState)
	app.POST("/mode/:mode", h.selectMode)
	app.POST("/evaluation/toggle", h.toggleEvaluation)

	app.POST("/send", h.send)
	app.POST("/upload", h.uploadFile)
	app.DELETE("/sessions/:id/upload", h.removeFile)

	app.GET("/history", h.listHistory)
	app.DELETE("/history", h.clearHistory)
	app.GET("/history/:id/content", h.historyContent)
	app.GET("/history/:id/download", h.downloadContract)

	app.GET("/metrics", h.metrics)
	app.POST("/feedback/ratings", h.setRating)
	app.POST("/feedback/submit", h.submitFeedback)
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions := h.store.List()
	current := h.store.Current()
	var currentID int64
	if current != nil {
		currentID = current.ID
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions":   summaries(sessions, h.orch),
		"current_id": currentID,
		"revision":   h.rev.Load(),
	})
}

func (h *Handler) createSession(c *gin.Context) {
	se := h.store.Create(c.Request.Context())
	h.modes.Reset()
	c.JSON(http.StatusCreated, gin.H{
		"id":         se.ID,
		"title":      se.Title,
		"created_at": se.CreatedAt,
		"mode":       h.modes.State(),
	})
}

func (h *Handler) getSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	se, found := h.store.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": se})
}

func (h *Handler) switchSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	se := h.store.Switch(id)
	if se == nil {
		// Unknown ids are a silent no-op in the store; report the
		// still-current session so the UI stays consistent.
		c.JSON(http.StatusOK, gin.H{"session": h.store.Current()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": se})
}

func (h *Handler) deleteSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deletion requires confirmation"})
		return
	}
	if !h.store.Delete(c.Request.Context(), id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": h.store.Current().ID})
}

func (h *Handler) openMenu(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, found := h.store.Get(id); !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	h.menus.Open(id)
	c.JSON(http.StatusOK, gin.H{"open_id": h.menus.OpenID()})
}

func (h *Handler) closeMenu(c *gin.Context) {
	h.menus.Close()
	c.Status(http.StatusNoContent)
}

func (h *Handler) menuState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"open_id": h.menus.OpenID()})
}

func (h *Handler) menuAction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Title     string `json:"title"`
		Confirmed bool   `json:"confirmed"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	result, err := h.menus.Dispatch(c.Request.Context(), menu.Action(c.Param("action")), menu.Request{
		SessionID: id,
		Title:     req.Title,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, menu.ErrUnknownAction) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *Handler) modeState(c *gin.Context) {
	c.JSON(http.StatusOK, h.modes.State())
}

func (h *Handler) selectMode(c *gin.Context) {
	m := mode.Mode(c.Param("mode"))
	switch m {
	case mode.Chat, mode.Generate, mode.Analyze:
		c.JSON(http.StatusOK, h.modes.Select(m))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mode"})
	}
}

func (h *Handler) toggleEvaluation(c *gin.Context) {
	c.JSON(http.StatusOK, h.modes.ToggleEvaluation())
}

type sendRequest struct {
	Content string `json:"content"`
}

func (h *Handler) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	stream, err := newEventStream(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.orch.Send(c.Request.Context(), req.Content, stream.emit); err != nil {
		stream.fail(err)
		return
	}
	stream.done()
}

func (h *Handler) uploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	content, err := io.ReadAll(io.LimitReader(f, h.validator.MaxBytes()+1))
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}
	file := &models.UploadedFile{
		Name:     fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  content,
	}
	stream, err := newEventStream(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.orch.Upload(c.Request.Context(), file, stream.emit); err != nil {
		stream.fail(err)
		return
	}
	stream.done()
}

func (h *Handler) removeFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.orch.RemoveFile(id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) listHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"history": h.history.Items()})
}

func (h *Handler) clearHistory(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clearing history requires confirmation"})
		return
	}
	h.history.Clear(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *Handler) historyContent(c *gin.Context) {
	item, found := h.history.Get(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "history item not found"})
		return
	}
	if item.Data.Content != "" {
		c.JSON(http.StatusOK, gin.H{"content": item.Data.Content})
		return
	}
	if item.Data.ContractID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stored contract for this item"})
		return
	}
	content, err := h.contracts.FetchContractContent(c.Request.Context(), item.Data.ContractID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

func (h *Handler) downloadContract(c *gin.Context) {
	item, found := h.history.Get(c.Param("id"))
	if !found || item.Data.ContractID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no downloadable contract for this item"})
		return
	}
	data, contentType, err := h.contracts.DownloadContract(c.Request.Context(), item.Data.ContractID)
	if err != nil {
		writeError(c, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "contract-"+item.Data.ContractID))
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) metrics(c *gin.Context) {
	m, err := h.feedback.Metrics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) setRating(c *gin.Context) {
	var req struct {
		Category string `json:"category"`
		Value    int    `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.feedback.Set(models.RatingCategory(req.Category), req.Value)
	c.JSON(http.StatusOK, gin.H{"ratings": h.feedback.Ratings()})
}

func (h *Handler) submitFeedback(c *gin.Context) {
	avg, err := h.feedback.Submit(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"averageScore": avg})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}

type sessionSummary struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Pinned   bool      `json:"pinned"`
	Archived bool      `json:"archived"`
	Busy     bool      `json:"busy"`
	Updated  time.Time `json:"updated_at"`
}

func summaries(sessions []*models.Session, orch Orchestrator) []sessionSummary {
	out := make([]sessionSummary, 0, len(sessions))
	for _, se := range sessions {
		out = append(out, sessionSummary{
			ID:       se.ID,
			Title:    se.Title,
			Pinned:   se.Pinned,
			Archived: se.Archived,
			Busy:     orch.Busy(se.ID),
			Updated:  se.UpdatedAt,
		})
	}
	return out
}

// writeError maps the error taxonomy onto HTTP statuses: validation
// failures are the caller's fault, busy means retry, and backend or
// transport trouble surfaces as a bad gateway with the most specific
// message available.
func writeError(c *gin.Context, err error) {
	var vErr *apperr.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		return
	}
	if errors.Is(err, orchestrator.ErrBusy) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "a request is already in flight, please wait"})
		return
	}
	var tErr *apperr.TransportError
	var bErr *apperr.BackendError
	if errors.As(err, &tErr) || errors.As(err, &bErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": apperr.UserMessage(err)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// eventStream writes orchestrator events as SSE.
type eventStream struct {
	c       *gin.Context
	flusher http.Flusher
	started bool
}

func newEventStream(c *gin.Context) (*eventStream, error) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}
	return &eventStream{c: c, flusher: flusher}, nil
}

func (s *eventStream) start() {
	if s.started {
		return
	}
	s.c.Writer.Header().Set("Content-Type", "text/event-stream")
	s.c.Writer.Header().Set("Cache-Control", "no-cache")
	s.c.Writer.Header().Set("Connection", "keep-alive")
	s.c.Writer.Header().Set("X-Accel-Buffering", "no")
	s.c.Status(http.StatusOK)
	s.started = true
}

func (s *eventStream) emit(ev orchestrator.Event) error {
	s.start()
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.c.Writer, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// fail reports a pre-stream error as a status response, or as a
// terminal SSE event when headers already went out.
func (s *eventStream) fail(err error) {
	if !s.started {
		writeError(s.c, err)
		return
	}
	payload, _ := json.Marshal(gin.H{"message": apperr.UserMessage(err)})
	fmt.Fprintf(s.c.Writer, "event: error\ndata: %s\n\n", payload)
	s.flusher.Flush()
}

func (s *eventStream) done() {
	s.start()
	fmt.Fprint(s.c.Writer, "event: done\ndata: {}\n\n")
	s.flusher.Flush()
}
