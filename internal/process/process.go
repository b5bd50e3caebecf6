package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/dropzone/internal/logging"
)

// ErrCanceled is returned when a context is cancelled before or while a
// command runs. It is a control signal, not a failure.
var ErrCanceled = errors.New("operation canceled")

// Checkpoint names a location where cancellation is polled.
type Checkpoint string

// Cancellation checkpoints.
const (
	CheckpointBeforeLaunch  Checkpoint = "before_launch"
	CheckpointWhileRunning  Checkpoint = "while_running"
	CheckpointBeforeSegment Checkpoint = "before_segment"
	CheckpointBeforeFile    Checkpoint = "before_file"
	CheckpointBeforeConcat  Checkpoint = "before_concat"
)

// Check returns an error wrapping ErrCanceled if ctx is done.
func Check(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return canceled(cp, err)
	}
	return nil
}

func canceled(cp Checkpoint, cause error) error {
	return fmt.Errorf("%w at %s: %w", ErrCanceled, cp, cause)
}

// IsCanceled reports whether err is a cancellation signal.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// Command describes one invocation.
type Command struct {
	Name string
	Args []string
	// OnLine receives stdout lines while the process runs. When nil,
	// stdout is buffered into Result.Stdout.
	OnLine func(line string)
}

// String renders the command for logging.
func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   string
	Elapsed  time.Duration
}

// ExitError is returned when a command exits with a nonzero status.
type ExitError struct {
	Name     string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
}

// Runner executes commands. Implemented by ExecRunner; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

const defaultStderrLimit = 64 * 1024

// ExecRunner runs commands as OS subprocesses.
type ExecRunner struct {
	logger          logging.Logger
	outputLogger    logging.Logger // logger for process stderr (nil = use logger)
	logParser       LogParser      // parses stderr for log level (nil = debug)
	gracefulTimeout time.Duration  // timeout after the stop request before force kill
	killTimeout     time.Duration  // timeout after kill before giving up
	stderrLimit     int
}

// RunnerOption configures an ExecRunner.
type RunnerOption func(*ExecRunner)

// WithTimeouts sets the graceful stop and kill timeouts.
func WithTimeouts(graceful, kill time.Duration) RunnerOption {
	return func(r *ExecRunner) {
		r.gracefulTimeout = graceful
		r.killTimeout = kill
	}
}

// WithLogParser routes stderr lines through parser into logger.
func WithLogParser(logger logging.Logger, parser LogParser) RunnerOption {
	return func(r *ExecRunner) {
		r.outputLogger = logger
		r.logParser = parser
	}
}

// WithStderrLimit bounds the captured stderr in bytes.
func WithStderrLimit(n int) RunnerOption {
	return func(r *ExecRunner) {
		r.stderrLimit = n
	}
}

// NewRunner creates an ExecRunner.
func NewRunner(logger logging.Logger, opts ...RunnerOption) *ExecRunner {
	r := &ExecRunner{
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		stderrLimit:     defaultStderrLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the command and blocks until it exits or ctx is cancelled.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if err := Check(ctx, CheckpointBeforeLaunch); err != nil {
		return nil, err
	}

	cmd := exec.Command(c.Name, c.Args...)
	ctl, err := prepare(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %s: %w", c.Name, err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.Name, err)
	}
	r.logger.Debug("Process started", "pid", cmd.Process.Pid, "command", c.String())

	var stdoutBuf bytes.Buffer
	stderrBuf := &limitedBuffer{limit: r.stderrLimit}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.readStdout(stdout, c.OnLine, &stdoutBuf)
	}()
	go func() {
		defer wg.Done()
		r.readStderr(stderr, stderrBuf)
	}()

	processDone := make(chan error, 1)
	go func() {
		// Pipes must be drained before Wait closes them.
		wg.Wait()
		processDone <- cmd.Wait()
	}()

	select {
	case waitErr := <-processDone:
		res := &Result{
			ExitCode: exitCodeFromError(waitErr),
			Stdout:   stdoutBuf.Bytes(),
			Stderr:   stderrBuf.String(),
			Elapsed:  time.Since(started),
		}
		if waitErr != nil {
			var exitErr *exec.ExitError
			if !errors.As(waitErr, &exitErr) {
				return res, fmt.Errorf("%s failed: %w", c.Name, waitErr)
			}
			return res, &ExitError{Name: c.Name, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		return res, nil

	case <-ctx.Done():
		r.logger.Info("Context cancelled, stopping process", "pid", cmd.Process.Pid)
		r.stop(cmd, ctl, processDone)
		return nil, canceled(CheckpointWhileRunning, ctx.Err())
	}
}

// stop asks the process to exit, force-killing it after the grace period.
func (r *ExecRunner) stop(cmd *exec.Cmd, ctl *control, processDone <-chan error) {
	if err := ctl.interrupt(); err != nil {
		r.logger.Warn("Failed to request graceful stop", "error", err)
	}

	select {
	case <-processDone:
		return
	case <-time.After(r.gracefulTimeout):
	}

	r.logger.Warn("Graceful stop timeout, forcing kill", "timeout", r.gracefulTimeout)
	if err := ctl.kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		r.logger.Error("Failed to kill process", "error", err)
	}

	select {
	case <-processDone:
	case <-time.After(r.killTimeout):
		r.logger.Error("Process did not exit after kill signal", "pid", cmd.Process.Pid)
	}
}

func (r *ExecRunner) readStdout(reader io.Reader, onLine func(string), buf *bytes.Buffer) {
	if onLine == nil {
		if _, err := io.Copy(buf, reader); err != nil {
			r.logger.Debug("Error reading stdout", "error", err)
		}
		return
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		r.logger.Debug("Error reading stdout", "error", err)
	}
}

func (r *ExecRunner) readStderr(reader io.Reader, buf *limitedBuffer) {
	logger := r.outputLogger
	if logger == nil {
		logger = r.logger
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteLine(line)

		level, msg := "debug", line
		if r.logParser != nil {
			level, msg = r.logParser(line)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		default:
			logger.Debug(msg)
		}
	}
	if err := scanner.Err(); err != nil {
		r.logger.Debug("Error reading stderr", "error", err)
	}
}

// exitCodeFromError extracts the exit code from a Wait error.
// Returns 0 for nil, the exit code for ExitError, or -1 otherwise.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       strings.Builder
	limit     int
	truncated bool
}

func (b *limitedBuffer) WriteLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return
	}
	if b.buf.Len()+len(line)+1 > b.limit {
		b.truncated = true
		return
	}
	b.buf.WriteString(line)
	b.buf.WriteByte('\n')
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Truncate returns at most n bytes of s, marking the cut.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
