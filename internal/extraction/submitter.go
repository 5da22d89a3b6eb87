package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/backend"
	"github.com/linetrace/linelist-tracker/internal/entity"
	"github.com/linetrace/linelist-tracker/internal/grammar"
)

// SubmissionErrorKind classifies submission failures so the UI can tell the
// operator whether to re-authenticate, retry, or change the file.
type SubmissionErrorKind string

const (
	SubmissionUnsupportedPrimaryType SubmissionErrorKind = "UNSUPPORTED_PRIMARY_TYPE"
	SubmissionAuthRequired           SubmissionErrorKind = "AUTH_REQUIRED"
	SubmissionTimeout                SubmissionErrorKind = "TIMEOUT"
	SubmissionNetworkUnavailable     SubmissionErrorKind = "NETWORK_UNAVAILABLE"
	SubmissionServerRejected         SubmissionErrorKind = "SERVER_REJECTED"
)

// SubmissionError is a terminal failure for the current submission.
type SubmissionError struct {
	Kind    SubmissionErrorKind
	Message string
	Cause   error
}

func (e *SubmissionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// SubmitClient is the slice of the backend client the submitter needs.
type SubmitClient interface {
	Submit(ctx context.Context, req entity.ExtractionRequest, grammarJSON []byte) (entity.SubmissionResult, error)
}

// Submitter packages an extraction request and sends it to the backend.
// Grammar and credential problems fail before any bytes move.
type Submitter struct {
	client SubmitClient
	engine *grammar.Engine
	logger *slog.Logger
}

// NewSubmitter creates a submitter over the given backend client.
func NewSubmitter(client SubmitClient, engine *grammar.Engine, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = grammar.NewEngine()
	}
	return &Submitter{client: client, engine: engine, logger: logger}
}

// grammarConfig is the serialized grammar shipped with the documents.
type grammarConfig struct {
	Template                string             `json:"template"`
	Separator               string             `json:"separator"`
	AllowVariableSeparators bool               `json:"allow_variable_separators"`
	Components              []grammarComponent `json:"components"`
}

type grammarComponent struct {
	ID      string `json:"id"`
	Order   int    `json:"order"`
	Pattern string `json:"pattern"`
	Example string `json:"example,omitempty"`
}

// Submit validates the request, compiles its grammar, and uploads. The
// result is either an immediate payload or a deferred job handle. Partial
// enrichment is a valid request; the attached source count is logged for
// downstream accounting. Cancelling ctx before a handle is obtained aborts
// the upload.
func (s *Submitter) Submit(ctx context.Context, req entity.ExtractionRequest) (entity.SubmissionResult, error) {
	if err := checkPrimaryType(req.Primary); err != nil {
		return entity.SubmissionResult{}, err
	}

	matcher, err := s.engine.Compile(req.Profile)
	if err != nil {
		// GrammarError: locally recoverable, blocks before any network call.
		return entity.SubmissionResult{}, err
	}

	grammarJSON, err := json.Marshal(buildGrammarConfig(req.Profile, matcher))
	if err != nil {
		return entity.SubmissionResult{}, fmt.Errorf("serialize grammar: %w", err)
	}

	s.logger.Info("submitting extraction",
		"primary", req.Primary.Filename,
		"template", matcher.Template(),
		"enrichment_sources", req.EnrichmentCount(),
	)

	result, err := s.client.Submit(ctx, req, grammarJSON)
	if err != nil {
		return entity.SubmissionResult{}, mapSubmitError(ctx, err)
	}

	if result.Deferred() {
		s.logger.Info("extraction deferred", "job_id", result.Handle.JobID)
	} else {
		s.logger.Info("extraction completed synchronously", "payload_bytes", len(result.Payload))
	}
	return result, nil
}

func checkPrimaryType(doc entity.Document) error {
	mimeType := doc.MIMEType
	if mimeType == "" {
		ext := constants.NormalizeExt(filepath.Ext(doc.Filename))
		mimeType = constants.AllowedExtensions[ext]
	}
	if !constants.IsDrawingMIME(mimeType) {
		return &SubmissionError{
			Kind:    SubmissionUnsupportedPrimaryType,
			Message: fmt.Sprintf("%q is not a recognized drawing format", doc.Filename),
		}
	}
	return nil
}

func buildGrammarConfig(profile entity.FormatProfile, matcher *grammar.CompositeMatcher) grammarConfig {
	cfg := grammarConfig{
		Template:                matcher.Template(),
		Separator:               profile.Separator,
		AllowVariableSeparators: profile.AllowVariableSeparators,
	}
	for _, c := range profile.EnabledComponents() {
		cfg.Components = append(cfg.Components, grammarComponent{
			ID:      c.ID,
			Order:   c.Order,
			Pattern: c.Pattern,
			Example: c.Example,
		})
	}
	return cfg
}

func mapSubmitError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		// Caller-initiated cancellation is not a submission failure.
		return err
	}
	if errors.Is(err, backend.ErrNoCredential) {
		return &SubmissionError{Kind: SubmissionAuthRequired, Message: "backend credential missing or expired", Cause: err}
	}
	var serverErr *backend.ServerError
	if errors.As(err, &serverErr) {
		return &SubmissionError{Kind: SubmissionServerRejected, Message: serverErr.Message, Cause: err}
	}
	if isTimeout(err) {
		return &SubmissionError{Kind: SubmissionTimeout, Message: "upload timed out", Cause: err}
	}
	return &SubmissionError{Kind: SubmissionNetworkUnavailable, Message: "extraction backend unreachable", Cause: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
