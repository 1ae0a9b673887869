package repository

import (
	"context"
	"time"
)

// TrackedJob records a job the gateway is polling, so a restarted process
// can attach to it again.
type TrackedJob struct {
	JobID       string    `json:"job_id"`
	Payload     string    `json:"payload"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type TrackedJobStore interface {
	Track(ctx context.Context, job TrackedJob, ttl time.Duration) error
	Untrack(ctx context.Context, jobID string) error
	List(ctx context.Context) ([]TrackedJob, error)
}
