package constants

// BackendState is the job state reported by the extraction backend's status
// endpoint.
type BackendState string

// Stable values (match the backend's wire strings exactly).
const (
	BackendStatePending    BackendState = "PENDING"
	BackendStateProcessing BackendState = "PROCESSING"
	BackendStateSuccess    BackendState = "SUCCESS"
	BackendStateFailure    BackendState = "FAILURE"
)

// Terminal reports whether the backend will never leave this state.
func (s BackendState) Terminal() bool {
	return s == BackendStateSuccess || s == BackendStateFailure
}

// Valid reports whether the state is one the backend is allowed to report.
func (s BackendState) Valid() bool {
	switch s {
	case BackendStatePending, BackendStateProcessing, BackendStateSuccess, BackendStateFailure:
		return true
	default:
		return false
	}
}

// CanTransitionTo guards the allowed status progression:
//
//	PENDING -> PROCESSING | SUCCESS | FAILURE
//	PROCESSING -> PROCESSING | SUCCESS | FAILURE
//
// Terminal states never transition.
func (s BackendState) CanTransitionTo(next BackendState) bool {
	switch s {
	case BackendStatePending:
		return next == BackendStateProcessing || next == BackendStateSuccess || next == BackendStateFailure
	case BackendStateProcessing:
		return next == BackendStateProcessing || next == BackendStateSuccess || next == BackendStateFailure
	default:
		return false
	}
}

// PollState is the local poller's state machine position.
type PollState string

const (
	PollStateIdle      PollState = "IDLE"
	PollStatePolling   PollState = "POLLING"
	PollStateSucceeded PollState = "SUCCEEDED"
	PollStateFailed    PollState = "FAILED"
	PollStateTimedOut  PollState = "TIMED_OUT"
)

// Terminal reports whether the poller has stopped scheduling queries.
func (s PollState) Terminal() bool {
	return s == PollStateSucceeded || s == PollStateFailed || s == PollStateTimedOut
}

// HistoryStatus is the canonical status for rows in extraction_history.
type HistoryStatus string

const (
	HistoryStatusSubmitted HistoryStatus = "SUBMITTED"
	HistoryStatusSucceeded HistoryStatus = "SUCCEEDED"
	HistoryStatusFailed    HistoryStatus = "FAILED"
	HistoryStatusTimedOut  HistoryStatus = "TIMED_OUT"
)
