package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/backend"
	"github.com/linetrace/linelist-tracker/internal/common"
	"github.com/linetrace/linelist-tracker/internal/entity"
	"github.com/linetrace/linelist-tracker/internal/extraction"
	"github.com/linetrace/linelist-tracker/internal/merge"
	"github.com/linetrace/linelist-tracker/internal/profiles"
	"github.com/linetrace/linelist-tracker/internal/repository"
)

// RunInput is one extraction run: the primary drawing plus optional
// enrichment documents keyed by role.
type RunInput struct {
	Primary     entity.Document
	Enrichments map[constants.Role]entity.Document
}

// RunResult is the terminal outcome of a successful run.
type RunResult struct {
	HistoryID uuid.UUID
	JobID     string // empty when the backend answered synchronously
	Records   []entity.ExtractedRecord
	Report    entity.MergeReport
	Summary   string
}

// Processor coordinates one extraction end to end: resolve the active
// profile, submit, poll if deferred, validate and parse the payload, then
// merge enrichment sources onto the base rows.
type Processor struct {
	resolver  *profiles.Resolver
	submitter *extraction.Submitter
	status    extraction.StatusClient
	pollCfg   common.PollConfig
	pollOpts  []extraction.PollerOption
	merger    *merge.Merger
	history   repository.HistoryRepository
	logger    *slog.Logger
}

// NewProcessor wires the extraction pipeline. history may be nil when no
// audit log is wanted.
func NewProcessor(
	resolver *profiles.Resolver,
	submitter *extraction.Submitter,
	status extraction.StatusClient,
	pollCfg common.PollConfig,
	merger *merge.Merger,
	history repository.HistoryRepository,
	logger *slog.Logger,
	pollOpts ...extraction.PollerOption,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if merger == nil {
		merger = merge.NewMerger(logger)
	}
	return &Processor{
		resolver:  resolver,
		submitter: submitter,
		status:    status,
		pollCfg:   pollCfg,
		pollOpts:  pollOpts,
		merger:    merger,
		history:   history,
		logger:    logger,
	}
}

// Run drives one extraction to completion. A missing profile selection or a
// grammar problem fails before any bytes move. Deferred jobs are polled to a
// terminal state; the job outcome is recorded in the history log either way.
func (p *Processor) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	if common.SessionIDFromContext(ctx) == "" {
		ctx = common.WithSessionID(ctx, uuid.New().String())
	}

	profile, err := p.resolver.Active()
	if err != nil {
		// No format selected yet: fail fast, nothing is uploaded.
		return nil, err
	}

	req := entity.ExtractionRequest{
		Primary:     input.Primary,
		Enrichments: input.Enrichments,
		Profile:     profile,
	}

	entry := &repository.HistoryEntry{
		PrimaryFilename: input.Primary.Filename,
		Template:        profile.Template(),
		EnrichmentCount: req.EnrichmentCount(),
	}
	if p.history != nil {
		if err := p.history.RecordSubmission(ctx, entry); err != nil {
			p.logger.Warn("pipeline.history_write_failed", "error", err)
		}
	}

	result, err := p.submitter.Submit(ctx, req)
	if err != nil {
		p.recordFailure(ctx, entry.ID, err)
		return nil, err
	}

	payload := result.Payload
	jobID := ""
	if result.Deferred() {
		jobID = result.Handle.JobID
		poller := extraction.NewPoller(p.status, p.pollCfg, p.logger, p.pollOpts...)
		outcome, err := poller.Poll(ctx, *result.Handle, nil)
		if err != nil {
			p.recordPollFailure(ctx, entry.ID, err)
			return nil, err
		}
		payload = outcome.Payload
	}

	if err := backend.ValidateResult(payload); err != nil {
		p.recordFailure(ctx, entry.ID, err)
		return nil, err
	}
	base, sources, err := backend.ParseResult(payload)
	if err != nil {
		p.recordFailure(ctx, entry.ID, err)
		return nil, err
	}

	records, report := p.merger.Merge(base, sources)
	if p.history != nil {
		if err := p.history.RecordOutcome(ctx, entry.ID, constants.HistoryStatusSucceeded,
			report.Records, len(report.Succeeded), ""); err != nil {
			p.logger.Warn("pipeline.history_write_failed", "error", err)
		}
	}

	p.logger.Info("pipeline.run.ok",
		"session_id", common.SessionIDFromContext(ctx),
		"primary", input.Primary.Filename,
		"job_id", jobID,
		"records", report.Records,
		"sources_ok", len(report.Succeeded),
	)
	return &RunResult{
		HistoryID: entry.ID,
		JobID:     jobID,
		Records:   records,
		Report:    report,
		Summary:   merge.Summary(report),
	}, nil
}

func (p *Processor) recordFailure(ctx context.Context, id uuid.UUID, cause error) {
	if p.history == nil || id == uuid.Nil {
		return
	}
	if err := p.history.RecordOutcome(ctx, id, constants.HistoryStatusFailed, 0, 0, cause.Error()); err != nil {
		p.logger.Warn("pipeline.history_write_failed", "error", err)
	}
}

func (p *Processor) recordPollFailure(ctx context.Context, id uuid.UUID, cause error) {
	status := constants.HistoryStatusFailed
	var pollErr *extraction.PollError
	if errors.As(cause, &pollErr) && pollErr.Kind == extraction.PollTimedOut {
		status = constants.HistoryStatusTimedOut
	}
	if p.history == nil || id == uuid.Nil {
		return
	}
	if err := p.history.RecordOutcome(ctx, id, status, 0, 0, cause.Error()); err != nil {
		p.logger.Warn("pipeline.history_write_failed", "error", err)
	}
}
