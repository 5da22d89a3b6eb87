package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/backend"
	"github.com/linetrace/linelist-tracker/internal/common"
	"github.com/linetrace/linelist-tracker/internal/entity"
)

// PollErrorKind classifies terminal polling failures.
type PollErrorKind string

const (
	PollTimedOut      PollErrorKind = "TIMED_OUT"
	PollServerFailure PollErrorKind = "SERVER_FAILURE"
)

// PollError is a terminal failure for the polled job. TimedOut is distinct
// from a server-reported failure: the job may still be running server-side.
type PollError struct {
	Kind     PollErrorKind
	Reason   string
	Attempts int
}

func (e *PollError) Error() string {
	switch e.Kind {
	case PollTimedOut:
		return fmt.Sprintf("job status polling timed out after %d attempts", e.Attempts)
	default:
		return fmt.Sprintf("job failed server-side: %s", e.Reason)
	}
}

// Clock abstracts the inter-poll delay so tests can drive the poller
// deterministically instead of sleeping.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// StatusClient is the slice of the backend client the poller needs.
type StatusClient interface {
	Status(ctx context.Context, jobID string) (backend.StatusResponse, error)
}

// Poller converts a job ticket into a terminal result by querying the status
// endpoint with a fixed delay between attempts and a hard attempt ceiling.
// Queries for a job are strictly sequential: never more than one in flight.
type Poller struct {
	client      StatusClient
	interval    time.Duration
	maxAttempts int
	clock       Clock
	logger      *slog.Logger

	mu       sync.Mutex
	state    constants.PollState
	progress entity.JobProgress
	outcome  *entity.PollOutcome
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithClock injects a clock, used by tests.
func WithClock(clock Clock) PollerOption {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewPoller creates a poller for one job lifecycle. A poller is single-use:
// once terminal it never issues another query.
func NewPoller(client StatusClient, cfg common.PollConfig, logger *slog.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		client:      client,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		clock:       realClock{},
		logger:      logger,
		state:       constants.PollStateIdle,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// State returns the poller's current state machine position.
func (p *Poller) State() constants.PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Progress returns the latest intermediate progress seen so far.
func (p *Poller) Progress() entity.JobProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Poll drives the job to a terminal state. The observer, when non-nil,
// receives the latest progress after each response; it must not block.
//
// Once a terminal state is reached, further Poll calls return the stored
// outcome without touching the backend. Cancelling ctx stops scheduling and
// abandons the job server-side (no cancel request is sent).
func (p *Poller) Poll(ctx context.Context, handle entity.JobHandle, observe func(entity.JobProgress)) (entity.PollOutcome, error) {
	p.mu.Lock()
	if p.state.Terminal() {
		outcome := *p.outcome
		p.mu.Unlock()
		return outcome, terminalError(outcome)
	}
	if p.state == constants.PollStatePolling {
		p.mu.Unlock()
		return entity.PollOutcome{}, fmt.Errorf("poll already in progress for job %s", handle.JobID)
	}
	p.state = constants.PollStatePolling
	p.mu.Unlock()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		status, err := p.client.Status(ctx, handle.JobID)
		if err != nil {
			if ctx.Err() != nil {
				return p.abandon(ctx, handle)
			}
			// Transient transport trouble burns an attempt but does not
			// terminate: the job may be progressing fine server-side.
			p.logger.Warn("poll.status_error", "job_id", handle.JobID, "attempt", attempt, "error", err)
		} else {
			switch status.State {
			case constants.BackendStateSuccess:
				return p.finish(entity.PollOutcome{
					State:    constants.PollStateSucceeded,
					Payload:  status.Result,
					Attempts: attempt,
				})
			case constants.BackendStateFailure:
				return p.finish(entity.PollOutcome{
					State:    constants.PollStateFailed,
					Reason:   status.Error,
					Attempts: attempt,
				})
			default:
				p.recordProgress(status, observe)
			}
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return p.abandon(ctx, handle)
		case <-p.clock.After(p.interval):
		}
	}

	p.logger.Warn("poll.timed_out", "job_id", handle.JobID, "attempts", p.maxAttempts)
	return p.finish(entity.PollOutcome{
		State:    constants.PollStateTimedOut,
		Attempts: p.maxAttempts,
	})
}

func (p *Poller) recordProgress(status backend.StatusResponse, observe func(entity.JobProgress)) {
	p.mu.Lock()
	if status.Percent != nil && *status.Percent > p.progress.Percent {
		p.progress.Percent = *status.Percent
	}
	// Cap below 100 until SUCCESS is actually observed.
	if p.progress.Percent > 99 {
		p.progress.Percent = 99
	}
	if status.Status != "" {
		p.progress.StepLabel = status.Status
	}
	latest := p.progress
	p.mu.Unlock()

	if observe != nil {
		observe(latest)
	}
}

func (p *Poller) finish(outcome entity.PollOutcome) (entity.PollOutcome, error) {
	p.mu.Lock()
	p.state = outcome.State
	p.outcome = &outcome
	if outcome.State == constants.PollStateSucceeded {
		p.progress.Percent = 100
	}
	p.mu.Unlock()
	return outcome, terminalError(outcome)
}

// abandon returns the poller to Idle after caller cancellation. The job is
// left running server-side; no cancel request is sent.
func (p *Poller) abandon(ctx context.Context, handle entity.JobHandle) (entity.PollOutcome, error) {
	p.mu.Lock()
	p.state = constants.PollStateIdle
	p.mu.Unlock()
	p.logger.Info("poll.abandoned", "job_id", handle.JobID)
	return entity.PollOutcome{}, ctx.Err()
}

func terminalError(outcome entity.PollOutcome) error {
	switch outcome.State {
	case constants.PollStateFailed:
		return &PollError{Kind: PollServerFailure, Reason: outcome.Reason, Attempts: outcome.Attempts}
	case constants.PollStateTimedOut:
		return &PollError{Kind: PollTimedOut, Attempts: outcome.Attempts}
	default:
		return nil
	}
}
