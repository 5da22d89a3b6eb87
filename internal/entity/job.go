package entity

import (
	"encoding/json"
	"time"

	"github.com/linetrace/linelist-tracker/constants"
)

// Document is one uploaded file, held in memory for submission.
type Document struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Content  []byte `json:"-"`
}

// ExtractionRequest packages one primary drawing plus optional enrichment
// documents and the grammar they should be parsed with.
type ExtractionRequest struct {
	Primary     Document                    `json:"primary"`
	Enrichments map[constants.Role]Document `json:"enrichments,omitempty"`
	Profile     FormatProfile               `json:"profile"`
}

// EnrichmentCount returns how many enrichment roles were attached.
func (r ExtractionRequest) EnrichmentCount() int {
	return len(r.Enrichments)
}

// JobHandle is the ticket for deferred backend work.
type JobHandle struct {
	JobID       string    `json:"job_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmissionResult is either an immediate payload or a deferred job handle,
// never both.
type SubmissionResult struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	Handle  *JobHandle      `json:"handle,omitempty"`
}

// Deferred reports whether the backend deferred the work to a job.
func (r SubmissionResult) Deferred() bool {
	return r.Handle != nil
}

// JobProgress is the latest intermediate progress seen while polling.
type JobProgress struct {
	Percent   int    `json:"percent"`
	StepLabel string `json:"step_label"`
}

// PollOutcome is the poller's terminal result for one job.
type PollOutcome struct {
	State    constants.PollState `json:"state"`
	Payload  json.RawMessage     `json:"payload,omitempty"`
	Reason   string              `json:"reason,omitempty"`
	Attempts int                 `json:"attempts"`
}
