package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tunegrab/internal/domain"
)

const (
	// defaultWaitDelay bounds how long Wait keeps output pipes open after the
	// process exited or was killed (ffmpeg children may inherit them)
	defaultWaitDelay = 5 * time.Second

	maxLineBytes = 64 * 1024
)

// ExecRunner implements domain.ProcessRunner with os/exec
type ExecRunner struct {
	logs      *ProcessLog
	logger    *zap.Logger
	waitDelay time.Duration

	mu      sync.Mutex
	handles map[string]*processHandle
}

// processHandle is the cancellable entry of one running process
type processHandle struct {
	cancel    context.CancelFunc
	mu        sync.Mutex
	cancelled bool
}

func (h *processHandle) markCancelled() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
}

func (h *processHandle) wasCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// NewExecRunner creates a new runner. logs may be nil.
func NewExecRunner(logs *ProcessLog, logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{
		logs:      logs,
		logger:    logger,
		waitDelay: defaultWaitDelay,
		handles:   make(map[string]*processHandle),
	}
}

// Start implements domain.ProcessRunner
func (r *ExecRunner) Start(ctx context.Context, key, binary string, args []string, onLine domain.LineHandler) *domain.Completion {
	completion := domain.NewCompletion()
	if onLine == nil {
		onLine = func(domain.Stream, string) {}
	}

	session := r.logs.Begin(key, FormatCommandLine(binary, args))
	emit := func(stream domain.Stream, line string) {
		session.Line(stream, line)
		onLine(stream, line)
	}
	stdout := newLineWriter(domain.StreamStdout, emit)
	stderr := newLineWriter(domain.StreamStderr, emit)

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.waitDelay

	if err := cmd.Start(); err != nil {
		cancel()
		startErr := &domain.StartError{Binary: binary, Err: err}
		session.End(false, startErr.Error())
		r.logger.Error("Failed to start extraction tool",
			zap.String("key", key),
			zap.String("binary", binary),
			zap.Error(err))
		completion.Resolve(domain.ProcessResult{Err: startErr})
		return completion
	}

	handle := &processHandle{cancel: cancel}
	r.register(key, handle)

	r.logger.Debug("Extraction tool started",
		zap.String("key", key),
		zap.Int("pid", cmd.Process.Pid))

	go func() {
		waitErr := cmd.Wait()
		stdout.Flush()
		stderr.Flush()

		r.deregister(key, handle)
		cancelled := handle.wasCancelled() || ctx.Err() != nil
		cancel()

		result := domain.ProcessResult{
			ExitCode:  exitCode(cmd, waitErr),
			Cancelled: cancelled,
		}
		session.End(result.Success(), fmt.Sprintf("exit code %d", result.ExitCode))

		r.logger.Debug("Extraction tool exited",
			zap.String("key", key),
			zap.Int("exit_code", result.ExitCode),
			zap.Bool("cancelled", cancelled))

		completion.Resolve(result)
	}()

	return completion
}

// Cancel implements domain.ProcessRunner. The handle is removed immediately;
// the process is killed asynchronously.
func (r *ExecRunner) Cancel(key string) bool {
	r.mu.Lock()
	handle, ok := r.handles[key]
	if ok {
		delete(r.handles, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	handle.markCancelled()
	handle.cancel()
	r.logger.Info("Extraction tool cancelled", zap.String("key", key))
	return true
}

func (r *ExecRunner) register(key string, handle *processHandle) {
	r.mu.Lock()
	r.handles[key] = handle
	r.mu.Unlock()
}

// deregister removes the handle only if it is still the one registered under key
func (r *ExecRunner) deregister(key string, handle *processHandle) {
	r.mu.Lock()
	if r.handles[key] == handle {
		delete(r.handles, key)
	}
	r.mu.Unlock()
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// lineWriter splits a byte stream on \n or \r and emits non-empty lines
type lineWriter struct {
	stream domain.Stream
	emit   func(domain.Stream, string)
	buf    []byte
}

func newLineWriter(stream domain.Stream, emit func(domain.Stream, string)) *lineWriter {
	return &lineWriter{stream: stream, emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		if i > 0 {
			w.emit(w.stream, string(w.buf[:i]))
		}
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxLineBytes {
		w.Flush()
	}
	return len(p), nil
}

// Flush emits any buffered partial line
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit(w.stream, string(w.buf))
		w.buf = nil
	}
}
