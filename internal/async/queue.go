package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/linetrace/linelist-tracker/internal/pipeline"
)

// Job is one queued extraction run. Extend as needed later (priority, retry, etc).
type Job struct {
	ID          uuid.UUID
	Input       pipeline.RunInput
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
