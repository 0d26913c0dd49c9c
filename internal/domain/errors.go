package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStartupFailure means the extraction tool could not be spawned
	ErrStartupFailure = errors.New("extraction tool could not start")
	// ErrExhaustedRetries means every allowed attempt failed
	ErrExhaustedRetries = errors.New("download retries exhausted")
	// ErrDownloadCancelled is returned to callers waiting on a cancelled request
	ErrDownloadCancelled = errors.New("download cancelled")
	// ErrInvalidTrackID rejects ids that cannot name a file in the downloads directory
	ErrInvalidTrackID = errors.New("invalid track id")
)

// FailureKind classifies terminal download failures
type FailureKind string

const (
	KindStartupFailure   FailureKind = "startup_failure"
	KindExhaustedRetries FailureKind = "exhausted_retries"
)

// DownloadError is the typed failure surfaced by the engine
type DownloadError struct {
	Kind     FailureKind
	ID       string
	ExitCode int
	Retries  int
	Err      error
}

func (e *DownloadError) Error() string {
	switch e.Kind {
	case KindStartupFailure:
		return fmt.Sprintf("download %s: %v: %v", e.ID, ErrStartupFailure, e.Err)
	default:
		msg := fmt.Sprintf("download %s: %v (exit code %d after %d retries)", e.ID, ErrExhaustedRetries, e.ExitCode, e.Retries)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the failure kind
func (e *DownloadError) Is(target error) bool {
	switch target {
	case ErrStartupFailure:
		return e.Kind == KindStartupFailure
	case ErrExhaustedRetries:
		return e.Kind == KindExhaustedRetries
	}
	return false
}

// StartError is reported by a process runner when the binary cannot be spawned
type StartError struct {
	Binary string
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Binary, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}
