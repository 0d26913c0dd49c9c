package domain

import (
	"context"
	"sync"
)

// Stream identifies which output stream a line came from
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// LineHandler receives subprocess output one line at a time
type LineHandler func(stream Stream, line string)

// ProcessResult is the outcome of one subprocess run
type ProcessResult struct {
	ExitCode  int
	Cancelled bool
	// Err is a *StartError when the binary could not be spawned
	Err error
}

// Success reports a clean zero exit
func (r ProcessResult) Success() bool {
	return r.Err == nil && !r.Cancelled && r.ExitCode == 0
}

// ProcessRunner spawns the extraction tool and tracks running processes by key
type ProcessRunner interface {
	// Start launches binary with args. Output lines are passed to onLine.
	// The returned completion resolves exactly once.
	Start(ctx context.Context, key, binary string, args []string, onLine LineHandler) *Completion

	// Cancel terminates the process registered under key
	Cancel(key string) bool
}

// ProgressParser turns one line of tool output into a progress update
type ProgressParser interface {
	Parse(line string) (ProgressUpdate, bool)
}

// Completion is a single-resolution future for a ProcessResult
type Completion struct {
	once   sync.Once
	done   chan struct{}
	result ProcessResult
}

// NewCompletion creates an unresolved completion
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve stores the result. It returns false if the completion was already resolved.
func (c *Completion) Resolve(result ProcessResult) bool {
	resolved := false
	c.once.Do(func() {
		c.result = result
		resolved = true
		close(c.done)
	})
	return resolved
}

// Done is closed once the completion is resolved
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Result returns the resolved result and whether resolution happened yet
func (c *Completion) Result() (ProcessResult, bool) {
	select {
	case <-c.done:
		return c.result, true
	default:
		return ProcessResult{}, false
	}
}

// Wait blocks until the completion resolves or ctx is done
func (c *Completion) Wait(ctx context.Context) (ProcessResult, error) {
	select {
	case <-c.done:
		return c.result, nil
	case <-ctx.Done():
		return ProcessResult{}, ctx.Err()
	}
}
