package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"kontratago/internal/client"
	"kontratago/internal/config"
	"kontratago/internal/feedback"
	"kontratago/internal/history"
	"kontratago/internal/menu"
	"kontratago/internal/mode"
	"kontratago/internal/orchestrator"
	"kontratago/internal/session"
	"kontratago/internal/storage"
	"kontratago/internal/upload"
)

func TestHandlersEndToEndFlow(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	// The store boots with exactly one session.
	listResp := doJSONRequest(t, router, http.MethodGet, "/app/sessions", nil, nil)
	assertStatus(t, listResp, http.StatusOK)
	var listBody struct {
		Sessions []struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"sessions"`
		CurrentID int64 `json:"current_id"`
		Revision  int64 `json:"revision"`
	}
	decodeJSON(t, listResp.Body.Bytes(), &listBody)
	if len(listBody.Sessions) != 1 || listBody.CurrentID != listBody.Sessions[0].ID {
		t.Fatalf("unexpected initial session list: %+v", listBody)
	}
	firstID := listBody.CurrentID
	startRev := listBody.Revision

	// Switch to generate mode and run a full generation over SSE.
	modeResp := doJSONRequest(t, router, http.MethodPost, "/app/mode/generate", nil, nil)
	assertStatus(t, modeResp, http.StatusOK)

	sendResp := doJSONRequest(t, router, http.MethodPost, "/app/send",
		map[string]string{"content": "a one year lease for an apartment in Manila"}, nil)
	assertStatus(t, sendResp, http.StatusOK)
	events := parseSSE(t, sendResp.Body.String())
	wantSequence(t, events, "message", "placeholder", "placeholder_removed", "message", "history", "done")

	var result struct {
		Message struct {
			Role         string `json:"role"`
			Content      string `json:"content"`
			Downloadable bool   `json:"downloadable"`
		} `json:"message"`
	}
	decodeJSON(t, []byte(events[3].Data), &result)
	if result.Message.Role != "assistant" || !result.Message.Downloadable {
		t.Fatalf("unexpected generation result: %+v", result.Message)
	}
	if !strings.Contains(result.Message.Content, "Service Agreement") {
		t.Fatalf("result missing contract title: %q", result.Message.Content)
	}

	// The generation landed in the history; its content serves locally.
	histResp := doJSONRequest(t, router, http.MethodGet, "/app/history", nil, nil)
	assertStatus(t, histResp, http.StatusOK)
	var histBody struct {
		History []struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"history"`
	}
	decodeJSON(t, histResp.Body.Bytes(), &histBody)
	if len(histBody.History) != 1 || histBody.History[0].Kind != "generated" {
		t.Fatalf("unexpected history: %+v", histBody)
	}

	contentResp := doJSONRequest(t, router, http.MethodGet,
		"/app/history/"+histBody.History[0].ID+"/content", nil, nil)
	assertStatus(t, contentResp, http.StatusOK)
	if !strings.Contains(contentResp.Body.String(), "THE PARTIES AGREE") {
		t.Fatalf("history content missing contract text: %s", contentResp.Body.String())
	}

	// Both messages of the exchange were written through to the db.
	if got := countMessages(t, db, firstID); got != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", got)
	}

	// A new session becomes current; switching back restores the first.
	createResp := doJSONRequest(t, router, http.MethodPost, "/app/sessions", nil, nil)
	assertStatus(t, createResp, http.StatusCreated)
	var createBody struct {
		ID int64 `json:"id"`
	}
	decodeJSON(t, createResp.Body.Bytes(), &createBody)
	if createBody.ID == firstID {
		t.Fatalf("new session reused the first id")
	}

	listResp = doJSONRequest(t, router, http.MethodGet, "/app/sessions", nil, nil)
	decodeJSON(t, listResp.Body.Bytes(), &listBody)
	if listBody.Revision <= startRev {
		t.Fatalf("mutations should advance the session revision, got %d", listBody.Revision)
	}

	switchResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/app/sessions/%d/switch", firstID), nil, nil)
	assertStatus(t, switchResp, http.StatusOK)

	// Menu: open, rename through the dispatch route, menu closes after.
	openResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/app/sessions/%d/menu", firstID), nil, nil)
	assertStatus(t, openResp, http.StatusOK)

	renameResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/app/sessions/%d/menu/rename", firstID),
		map[string]string{"title": "Apartment lease"}, nil)
	assertStatus(t, renameResp, http.StatusOK)

	menuResp := doJSONRequest(t, router, http.MethodGet, "/app/menu", nil, nil)
	assertStatus(t, menuResp, http.StatusOK)
	var menuBody struct {
		OpenID int64 `json:"open_id"`
	}
	decodeJSON(t, menuResp.Body.Bytes(), &menuBody)
	if menuBody.OpenID != 0 {
		t.Fatalf("menu should close after an action, open_id = %d", menuBody.OpenID)
	}

	getResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/app/sessions/%d", firstID), nil, nil)
	assertStatus(t, getResp, http.StatusOK)
	if !strings.Contains(getResp.Body.String(), "Apartment lease") {
		t.Fatalf("rename did not stick: %s", getResp.Body.String())
	}

	// Deletion needs explicit confirmation.
	delResp := doJSONRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/app/sessions/%d", firstID), nil, nil)
	assertStatus(t, delResp, http.StatusBadRequest)

	delResp = doJSONRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/app/sessions/%d?confirm=true", firstID), nil, nil)
	assertStatus(t, delResp, http.StatusOK)
	var delBody struct {
		Current int64 `json:"current"`
	}
	decodeJSON(t, delResp.Body.Bytes(), &delBody)
	if delBody.Current != createBody.ID {
		t.Fatalf("expected fallback to session %d, got %d", createBody.ID, delBody.Current)
	}
}

func TestSendValidationFailsBeforeStreaming(t *testing.T) {
	router, db, backend := newTestServer(t)
	defer db.Close()

	modeResp := doJSONRequest(t, router, http.MethodPost, "/app/mode/generate", nil, nil)
	assertStatus(t, modeResp, http.StatusOK)

	resp := doJSONRequest(t, router, http.MethodPost, "/app/send",
		map[string]string{"content": "lease"}, nil)
	assertStatus(t, resp, http.StatusBadRequest)
	if !strings.Contains(resp.Body.String(), "too short") {
		t.Fatalf("expected a length message, got %s", resp.Body.String())
	}
	if backend.generateCalls != 0 {
		t.Fatalf("validation failure must not reach the backend")
	}
}

func TestUploadChainOverSSE(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	resp := doUpload(t, router, "lease.txt", "text/plain", []byte("THE PARTIES..."))
	assertStatus(t, resp, http.StatusOK)
	events := parseSSE(t, resp.Body.String())
	wantSequence(t, events,
		"message",
		"placeholder", "placeholder_removed", "message",
		"placeholder", "placeholder_removed", "message",
		"history", "file_cleared", "done")

	var userMsg struct {
		Message struct {
			FileName string `json:"file_name"`
		} `json:"message"`
	}
	decodeJSON(t, []byte(events[0].Data), &userMsg)
	if userMsg.Message.FileName != "lease.txt" {
		t.Fatalf("upload message missing file name: %s", events[0].Data)
	}
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	router, db, backend := newTestServer(t)
	defer db.Close()

	resp := doUpload(t, router, "setup.exe", "application/octet-stream", []byte("MZ"))
	assertStatus(t, resp, http.StatusBadRequest)
	if backend.uploadCalls != 0 {
		t.Fatalf("rejected upload must not reach the backend")
	}
}

func TestBackendFailureStreamsBanner(t *testing.T) {
	router, db, backend := newTestServer(t)
	defer db.Close()
	backend.failGenerate = true

	modeResp := doJSONRequest(t, router, http.MethodPost, "/app/mode/generate", nil, nil)
	assertStatus(t, modeResp, http.StatusOK)

	resp := doJSONRequest(t, router, http.MethodPost, "/app/send",
		map[string]string{"content": "a one year lease for an apartment"}, nil)
	assertStatus(t, resp, http.StatusOK)
	events := parseSSE(t, resp.Body.String())
	wantSequence(t, events, "message", "placeholder", "placeholder_removed", "message", "banner", "done")
	if !strings.Contains(events[4].Data, "generation failed") {
		t.Fatalf("banner missing the backend message: %s", events[4].Data)
	}

	histResp := doJSONRequest(t, router, http.MethodGet, "/app/history", nil, nil)
	var histBody struct {
		History []json.RawMessage `json:"history"`
	}
	decodeJSON(t, histResp.Body.Bytes(), &histBody)
	if len(histBody.History) != 0 {
		t.Fatalf("failed generation must not enter the history")
	}
}

func TestUnknownModeRejected(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodPost, "/app/mode/flying", nil, nil)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestHistoryClearRequiresConfirmation(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodDelete, "/app/history", nil, nil)
	assertStatus(t, resp, http.StatusBadRequest)

	resp = doJSONRequest(t, router, http.MethodDelete, "/app/history?confirm=true", nil, nil)
	assertStatus(t, resp, http.StatusNoContent)
}

func TestFeedbackRoutes(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	// Out-of-range values clamp on the way in.
	resp := doJSONRequest(t, router, http.MethodPost, "/app/feedback/ratings",
		map[string]interface{}{"category": "clarity", "value": 9}, nil)
	assertStatus(t, resp, http.StatusOK)
	var ratingsBody struct {
		Ratings map[string]int `json:"ratings"`
	}
	decodeJSON(t, resp.Body.Bytes(), &ratingsBody)
	if ratingsBody.Ratings["clarity"] != 5 {
		t.Fatalf("expected clamp to 5, got %v", ratingsBody.Ratings)
	}

	resp = doJSONRequest(t, router, http.MethodPost, "/app/feedback/submit", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var submitBody struct {
		AverageScore float64 `json:"averageScore"`
	}
	decodeJSON(t, resp.Body.Bytes(), &submitBody)
	if submitBody.AverageScore != 4.2 {
		t.Fatalf("averageScore = %v, want 4.2", submitBody.AverageScore)
	}

	resp = doJSONRequest(t, router, http.MethodGet, "/app/metrics", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Body.String(), "0.9") {
		t.Fatalf("metrics passthrough broken: %s", resp.Body.String())
	}
}

// stubBackend emulates the remote contract-processing service.
type stubBackend struct {
	srv           *httptest.Server
	failGenerate  bool
	uploadCalls   int
	generateCalls int
}

func newStubBackend(t *testing.T) *stubBackend {
	t.Helper()
	s := &stubBackend{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/upload":
			s.uploadCalls++
			fmt.Fprint(w, `{"success":true,"entities":{"parties":["Juan dela Cruz","Maria Santos"],"dates":["2026-01-01"],"amounts":["PHP 25,000"],"obligations":[]}}`)
		case r.URL.Path == "/api/analyze":
			fmt.Fprint(w, `{"success":true,"analysis":{"riskLevel":"low","missingClauses":[],"recommendations":["add a notarization clause"]}}`)
		case r.URL.Path == "/api/generate":
			s.generateCalls++
			if s.failGenerate {
				fmt.Fprint(w, `{"success":false,"error":"generation failed"}`)
				return
			}
			fmt.Fprint(w, `{"success":true,"contract":{"title":"Service Agreement","content":"THE PARTIES AGREE...","complianceChecks":{"requiredClauses":true,"legalCompliance":true,"durationValid":true,"amountsValid":true}}}`)
		case r.URL.Path == "/api/chat":
			fmt.Fprint(w, `{"response":"Hello!"}`)
		case r.URL.Path == "/api/metrics":
			fmt.Fprint(w, `{"precision":0.9,"recall":0.85,"errorRate":0.05,"processingTime":1.2}`)
		case r.URL.Path == "/api/feedback":
			fmt.Fprint(w, `{"success":true,"averageScore":4.2}`)
		case strings.HasPrefix(r.URL.Path, "/api/get-contract-content/"):
			fmt.Fprint(w, `{"content":"stored contract text"}`)
		case strings.HasPrefix(r.URL.Path, "/api/download-contract/"):
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "rendered contract")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func newTestServer(t *testing.T) (*gin.Engine, *sql.DB, *stubBackend) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	backend := newStubBackend(t)
	cl := client.New(backend.srv.URL, 5*time.Second)

	store := session.NewStore(db)
	if err := store.Load(t.Context()); err != nil {
		t.Fatalf("load store: %v", err)
	}
	hist := history.New(history.NewFileStore(filepath.Join(t.TempDir(), "history.json")), 20)
	modes := mode.NewController()
	validator := upload.NewValidator(16<<20, nil)
	orch := orchestrator.New(store, hist, modes, validator, cl, orchestrator.Options{
		ChatMode:   config.ChatModeBackend,
		ChatDelay:  -1,
		ChainDelay: -1,
	})
	menus := menu.NewController(store)
	fb := feedback.NewCollector(cl)

	handler := NewHandler(store, modes, orch, menus, hist, fb, cl, validator)
	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db, backend
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, router *gin.Engine, name, mimeType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	hdr.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/app/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func countMessages(t *testing.T, db *sql.DB, sessionID int64) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID).Scan(&n); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(t *testing.T, payload string) []sseEvent {
	t.Helper()
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	chunks := strings.Split(payload, "\n\n")
	var events []sseEvent
	for _, chunk := range chunks {
		lines := strings.Split(strings.TrimSpace(chunk), "\n")
		if len(lines) == 0 {
			continue
		}
		var evt sseEvent
		for _, line := range lines {
			switch {
			case strings.HasPrefix(line, "event:"):
				evt.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if evt.Data == "" {
					evt.Data = data
				} else {
					evt.Data += "\n" + data
				}
			}
		}
		events = append(events, evt)
	}
	return events
}

func wantSequence(t *testing.T, events []sseEvent, names ...string) {
	t.Helper()
	got := make([]string, len(events))
	for i, ev := range events {
		got[i] = ev.Name
	}
	if len(got) != len(names) {
		t.Fatalf("event sequence %v, want %v", got, names)
	}
	for i := range names {
		if got[i] != names[i] {
			t.Fatalf("event[%d] = %s, want %s (full: %v)", i, got[i], names[i], got)
		}
	}
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}
