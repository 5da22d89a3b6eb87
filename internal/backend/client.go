package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/common"
	"github.com/linetrace/linelist-tracker/internal/entity"
)

// Multipart part names on the submission endpoint.
const (
	partPrimary     = "primary_document"
	partGrammar     = "grammar"
	partIncludeArea = "include_area"
)

var rolePartNames = map[constants.Role]string{
	constants.RoleSecondaryProcess: "secondary_process_document",
	constants.RoleMaterial:         "material_document",
	constants.RoleCorrosion:        "corrosion_document",
}

// ServerError is a non-2xx response from the backend, carrying whatever
// message the server included.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend rejected request (%d)", e.StatusCode)
}

// StatusResponse is the backend's job status payload.
type StatusResponse struct {
	State   constants.BackendState `json:"state"`
	Percent *int                   `json:"percent,omitempty"`
	Status  string                 `json:"status,omitempty"`
	Result  json.RawMessage        `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Client talks to the extraction backend's submission and status endpoints.
// Submissions use a dedicated long-timeout HTTP client, since OCR-scale
// drawing uploads run far past ordinary request deadlines.
type Client struct {
	baseURL    string
	uploadHTTP *http.Client
	statusHTTP *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient builds a backend client from config.
func NewClient(cfg common.BackendConfig, tokens TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		uploadHTTP: &http.Client{Timeout: cfg.UploadTimeout},
		statusHTTP: &http.Client{Timeout: cfg.StatusTimeout},
		tokens:     tokens,
		logger:     logger,
	}
}

// Submit uploads the request's documents and serialized grammar. A 200
// response carries the result payload directly; a 202 carries a job ticket.
// Cancelling ctx before a ticket is obtained aborts the transfer.
func (c *Client) Submit(ctx context.Context, req entity.ExtractionRequest, grammarJSON []byte) (entity.SubmissionResult, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return entity.SubmissionResult{}, err
	}

	reqID := uuid.New().String()
	start := time.Now()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := writeDocument(mw, partPrimary, req.Primary); err != nil {
		return entity.SubmissionResult{}, err
	}
	for _, role := range constants.EnrichmentRoles() {
		doc, ok := req.Enrichments[role]
		if !ok {
			continue
		}
		if err := writeDocument(mw, rolePartNames[role], doc); err != nil {
			return entity.SubmissionResult{}, err
		}
	}
	if err := mw.WriteField(partGrammar, string(grammarJSON)); err != nil {
		return entity.SubmissionResult{}, fmt.Errorf("write grammar field: %w", err)
	}
	if err := mw.WriteField(partIncludeArea, strconv.FormatBool(req.Profile.IncludeAreaComponent)); err != nil {
		return entity.SubmissionResult{}, fmt.Errorf("write include_area field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return entity.SubmissionResult{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/extract", &body)
	if err != nil {
		return entity.SubmissionResult{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+token)

	c.logger.Info("backend.submit.request",
		"req_id", reqID,
		"session_id", common.SessionIDFromContext(ctx),
		"primary", req.Primary.Filename,
		"enrichments", req.EnrichmentCount(),
		"bytes", body.Len(),
	)

	resp, err := c.uploadHTTP.Do(httpReq)
	if err != nil {
		c.logger.Error("backend.submit.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.SubmissionResult{}, err
	}
	defer closeBody(resp.Body, c.logger, reqID)

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Info("backend.submit.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch resp.StatusCode {
	case http.StatusOK:
		return entity.SubmissionResult{Payload: raw}, nil
	case http.StatusAccepted:
		var ticket struct {
			TaskID string `json:"task_id"`
		}
		if err := json.Unmarshal(raw, &ticket); err != nil || ticket.TaskID == "" {
			return entity.SubmissionResult{}, fmt.Errorf("deferred response without task_id: %w", err)
		}
		return entity.SubmissionResult{
			Handle: &entity.JobHandle{JobID: ticket.TaskID, SubmittedAt: time.Now().UTC()},
		}, nil
	default:
		return entity.SubmissionResult{}, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    serverMessage(raw),
		}
	}
}

// Status queries the job status endpoint for one job id.
func (c *Client) Status(ctx context.Context, jobID string) (StatusResponse, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return StatusResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/extract/status/"+jobID, nil)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.statusHTTP.Do(httpReq)
	if err != nil {
		return StatusResponse{}, err
	}
	defer closeBody(resp.Body, c.logger, jobID)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return StatusResponse{}, &ServerError{StatusCode: resp.StatusCode, Message: serverMessage(raw)}
	}

	var status StatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return StatusResponse{}, fmt.Errorf("decode status response: %w", err)
	}
	if !status.State.Valid() {
		return StatusResponse{}, fmt.Errorf("backend reported unknown state %q", status.State)
	}
	return status, nil
}

func writeDocument(mw *multipart.Writer, field string, doc entity.Document) error {
	part, err := mw.CreateFormFile(field, doc.Filename)
	if err != nil {
		return fmt.Errorf("create part %s: %w", field, err)
	}
	if _, err := part.Write(doc.Content); err != nil {
		return fmt.Errorf("write part %s: %w", field, err)
	}
	return nil
}

func serverMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(bytes.TrimSpace(raw))
}

func closeBody(body io.ReadCloser, logger *slog.Logger, ref string) {
	if err := body.Close(); err != nil {
		logger.Warn("backend.response_body_close_error", "ref", ref, "error", err)
	}
}
