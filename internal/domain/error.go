package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotReady        = errors.New("job is not completed")
	ErrJobTerminal     = errors.New("job already reached a terminal state")
	ErrAlreadyInFlight = errors.New("a submission for this url is already in flight")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrJobFailed       = errors.New("video processing failed")
	ErrJobTimedOut     = errors.New("processing timed out")

	// Remote call failures. They are carried by *RemoteError.
	ErrSubmission         = errors.New("job submission failed")
	ErrPoll               = errors.New("job status poll failed")
	ErrChatRequest        = errors.New("chat request failed")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendRejected    = errors.New("backend rejected request")
)

// RemoteError describes a failed round trip to the video backend.
// Kind is one of the sentinel errors above and is matched by errors.Is.
type RemoteError struct {
	Kind   error
	Status int // HTTP status, 0 when the request never got a response
	Cause  string
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Cause != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Cause)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *RemoteError) Is(target error) bool { return target == e.Kind }

func (e *RemoteError) Unwrap() error { return e.Err }

// Temporary reports whether the failure happened in transport or on the
// backend side (5xx) rather than being a rejection of the request itself.
func (e *RemoteError) Temporary() bool {
	return e.Status == 0 || e.Status >= 500
}

// Remote re-labels err as kind. When err already is a *RemoteError its status
// and remote cause are kept so callers can still show the backend message.
func Remote(kind error, err error) *RemoteError {
	var re *RemoteError
	if errors.As(err, &re) {
		return &RemoteError{Kind: kind, Status: re.Status, Cause: re.Cause, Err: re}
	}
	return &RemoteError{Kind: kind, Err: err}
}

// Cause returns the most specific human readable cause carried by err.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Cause != "" {
		return re.Cause
	}
	return err.Error()
}
