// Package client is the typed wrapper around every call to the remote
// contract-processing service. Each operation issues exactly one
// request and surfaces exactly one outcome; retries are left to the
// user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kontratago/internal/apperr"
	"kontratago/internal/models"
)

// Client talks to the contract backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type statusEnvelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// UploadAndExtract sends the document as a multipart form and returns
// the extracted entities.
func (c *Client) UploadAndExtract(ctx context.Context, file *models.UploadedFile) (*models.Entities, error) {
	const op = "upload"
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: build form: %w", op, err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, fmt.Errorf("%s: write form: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: close form: %w", op, err)
	}

	var out struct {
		statusEnvelope
		Entities *models.Entities `json:"entities"`
	}
	if err := c.do(ctx, op, http.MethodPost, "/api/upload", mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	if err := out.failure(op); err != nil {
		return nil, err
	}
	if out.Entities == nil {
		return nil, &apperr.BackendError{Op: op, Message: "empty response from the contract service"}
	}
	return out.Entities, nil
}

// Analyze runs the risk/compliance analysis over the last uploaded
// document.
func (c *Client) Analyze(ctx context.Context) (*models.Analysis, error) {
	const op = "analyze"
	var out struct {
		statusEnvelope
		Analysis *models.Analysis `json:"analysis"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/api/analyze", nil, &out); err != nil {
		return nil, err
	}
	if err := out.failure(op); err != nil {
		return nil, err
	}
	if out.Analysis == nil {
		return nil, &apperr.BackendError{Op: op, Message: "empty response from the contract service"}
	}
	return out.Analysis, nil
}

// Generate produces a contract from a free-text request.
func (c *Client) Generate(ctx context.Context, input string) (*models.Contract, error) {
	const op = "generate"
	var out struct {
		statusEnvelope
		Contract *models.Contract `json:"contract"`
	}
	body := map[string]string{"input": input}
	if err := c.doJSON(ctx, op, http.MethodPost, "/api/generate", body, &out); err != nil {
		return nil, err
	}
	if err := out.failure(op); err != nil {
		return nil, err
	}
	if out.Contract == nil {
		return nil, &apperr.BackendError{Op: op, Message: "empty response from the contract service"}
	}
	return out.Contract, nil
}

// ChatReply is the backend-chat response; the contract/analysis fields
// are set only when the reply carries a processed payload.
type ChatReply struct {
	Response        string           `json:"response"`
	ContractID      string           `json:"contract_id"`
	ContractType    string           `json:"contract_type"`
	Analysis        *models.Analysis `json:"analysis"`
	Summary         string           `json:"summary"`
	Risks           []string         `json:"risks"`
	LegalCompliance string           `json:"legal_compliance"`
}

// Chat sends a free-form message tagged with its session.
func (c *Client) Chat(ctx context.Context, message string, sessionID int64) (*ChatReply, error) {
	const op = "chat"
	body := map[string]interface{}{
		"message":    message,
		"session_id": fmt.Sprintf("%d", sessionID),
	}
	var out ChatReply
	if err := c.doJSON(ctx, op, http.MethodPost, "/api/chat", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchMetrics reads the evaluation snapshot.
func (c *Client) FetchMetrics(ctx context.Context) (*models.Metrics, error) {
	const op = "metrics"
	var out models.Metrics
	if err := c.doJSON(ctx, op, http.MethodGet, "/api/metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitFeedback sends the full rating set and returns the
// backend-computed average.
func (c *Client) SubmitFeedback(ctx context.Context, ratings models.Ratings) (float64, error) {
	const op = "feedback"
	var out struct {
		statusEnvelope
		AverageScore float64 `json:"averageScore"`
	}
	body := map[string]interface{}{"ratings": ratings}
	if err := c.doJSON(ctx, op, http.MethodPost, "/api/feedback", body, &out); err != nil {
		return 0, err
	}
	if err := out.failure(op); err != nil {
		return 0, err
	}
	return out.AverageScore, nil
}

// FetchContractContent retrieves the full text of a stored contract.
func (c *Client) FetchContractContent(ctx context.Context, id string) (string, error) {
	const op = "contract content"
	var out struct {
		Content string `json:"content"`
	}
	path := "/api/get-contract-content/" + url.PathEscape(id)
	if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// DownloadContract streams the rendered document. The caller owns the
// returned bytes; the content type names the document format.
func (c *Client) DownloadContract(ctx context.Context, id string) ([]byte, string, error) {
	const op = "download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/download-contract/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%s: build request: %w", op, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", &apperr.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", transportFromBody(op, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &apperr.TransportError{Op: op, Err: err}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (e *statusEnvelope) failure(op string) error {
	if e.Success != nil && !*e.Success {
		msg := e.Error
		if msg == "" {
			msg = e.Details
		}
		return &apperr.BackendError{Op: op, Message: msg}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	return c.do(ctx, op, method, path, "application/json", reader, out)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &apperr.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return transportFromBody(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.TransportError{Op: op, StatusCode: resp.StatusCode,
			Message: "unexpected response from the contract service"}
	}
	return nil
}

// transportFromBody reads a structured error message out of a failed
// response, falling back to a generic message when the body is not
// parseable.
func transportFromBody(op string, resp *http.Response) error {
	terr := &apperr.TransportError{Op: op, StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return terr
	}
	var env statusEnvelope
	if err := json.Unmarshal(data, &env); err == nil {
		if env.Error != "" {
			terr.Message = env.Error
		} else if env.Details != "" {
			terr.Message = env.Details
		}
	}
	return terr
}
