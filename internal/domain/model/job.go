package model

import "time"

// JobState is the lifecycle state of a video analysis job as seen by this client.
type JobState string

const (
	JobSubmitted  JobState = "submitted"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobTimedOut   JobState = "timed_out"
	JobCancelled  JobState = "cancelled"
)

// IsTerminal reports whether no further transition is possible from s.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobTimedOut, JobCancelled:
		return true
	}
	return false
}

// RemoteStatus is the status string reported by the backend for a job id.
type RemoteStatus string

const (
	RemoteProcessing RemoteStatus = "processing"
	RemoteCompleted  RemoteStatus = "completed"
	RemoteFailed     RemoteStatus = "failed"
	RemoteNotFound   RemoteStatus = "not_found"
)

func (s RemoteStatus) Valid() bool {
	switch s {
	case RemoteProcessing, RemoteCompleted, RemoteFailed, RemoteNotFound:
		return true
	}
	return false
}

// JobResult is the payload the backend attaches to a completed job.
type JobResult struct {
	VideoID       string
	Title         string
	Summary       string
	Folder        string
	AutoGenerated bool
}

// JobStatusUpdate is one observation of a job's remote status.
type JobStatusUpdate struct {
	JobID      string
	Status     RemoteStatus
	Result     *JobResult
	Attempt    int
	ObservedAt time.Time
}

// Job is a unit of remote work tracked from submission to a terminal state.
type Job struct {
	ID          string
	Payload     string
	State       JobState
	Result      *JobResult
	Error       string
	Polls       int
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// NewJob returns a job in the Submitted state.
func NewJob(id, payload string, submittedAt time.Time) *Job {
	return &Job{
		ID:          id,
		Payload:     payload,
		State:       JobSubmitted,
		SubmittedAt: submittedAt,
		UpdatedAt:   submittedAt,
	}
}

// Start moves a submitted job to Processing.
func (j *Job) Start() bool {
	if j.State != JobSubmitted {
		return false
	}
	j.set(JobProcessing)
	return true
}

// Complete records the backend result. Only a processing job can complete.
func (j *Job) Complete(res *JobResult) bool {
	if j.State != JobProcessing {
		return false
	}
	j.Result = res
	j.set(JobCompleted)
	return true
}

// Fail records a remote failure. Only a processing job can fail.
func (j *Job) Fail(cause string) bool {
	if j.State != JobProcessing {
		return false
	}
	j.Error = cause
	j.set(JobFailed)
	return true
}

func (j *Job) TimeOut(cause string) bool {
	if j.State.IsTerminal() {
		return false
	}
	j.Error = cause
	j.set(JobTimedOut)
	return true
}

func (j *Job) Cancel() bool {
	if j.State.IsTerminal() {
		return false
	}
	j.set(JobCancelled)
	return true
}

func (j *Job) set(s JobState) {
	j.State = s
	j.UpdatedAt = time.Now()
}

// Deadline is the instant after which the job times out.
func (j *Job) Deadline(timeout time.Duration) time.Time {
	return j.SubmittedAt.Add(timeout)
}

// Snapshot returns a copy that shares no mutable state with j.
func (j *Job) Snapshot() Job {
	c := *j
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	return c
}
