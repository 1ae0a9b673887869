package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"vidiwise/internal/domain/ports/repository"
)

var _ repository.TrackedJobStore = (*TrackedJobs)(nil)

const trackedPrefix = "tracked_job:"

// TrackedJobs stores one key per in-flight job. Keys expire with the job
// timeout, so a crashed process leaves nothing behind for long.
type TrackedJobs struct {
	cli *redis.Client
}

func NewTrackedJobs(c *Client) *TrackedJobs {
	return &TrackedJobs{cli: c.cli}
}

func (s *TrackedJobs) Track(ctx context.Context, job repository.TrackedJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.cli.Set(ctx, trackedPrefix+job.JobID, data, ttl).Err()
}

func (s *TrackedJobs) Untrack(ctx context.Context, jobID string) error {
	return s.cli.Del(ctx, trackedPrefix+jobID).Err()
}

func (s *TrackedJobs) List(ctx context.Context) ([]repository.TrackedJob, error) {
	var out []repository.TrackedJob
	iter := s.cli.Scan(ctx, 0, trackedPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.cli.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, err
		}
		var job repository.TrackedJob
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, iter.Err()
}
