package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/swzo/brassworks-updater/internal/logger"
)

const (
	// initialLineBuffer is the size of the output read buffer.
	initialLineBuffer = 64 * 1024
	// maxLineLength caps a single output line; the excess is dropped.
	maxLineLength = 1024 * 1024
)

var (
	// ErrLaunch means the child process could not be started.
	ErrLaunch = errors.New("launch child process")
	// ErrSupervision means reading from or waiting on the child failed.
	ErrSupervision = errors.New("supervise child process")

	errEmptyCommand = errors.New("command must not be empty")
	errStopped      = errors.New("child process stopped before exiting")
)

// Option configures a supervised run.
type Option func(*options)

type options struct {
	timeout    time.Duration
	markerPath string
}

// WithTimeout kills the child once d has elapsed. Zero disables the watchdog.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMarkerPath enables the stale child guard backed by the file at path.
func WithMarkerPath(path string) Option {
	return func(o *options) {
		o.markerPath = path
	}
}

// Run is one supervised child process. It is not safe for concurrent use.
type Run struct {
	// Command is the argv the child was started with.
	Command []string
	// ExitCode is set once the child has been reaped.
	ExitCode *int

	cmd     *exec.Cmd
	output  *os.File
	ctx     context.Context //nolint:containedctx // The run owns the watchdog context.
	cancel  context.CancelFunc
	marker  string
	readErr error
	started bool
	drained bool
}

// Start launches command[0] with the remaining elements as arguments.
func Start(ctx context.Context, command []string, opts ...Option) (*Run, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, errEmptyCommand)
	}

	o := new(options)
	for _, opt := range opts {
		opt(o)
	}

	if o.markerPath != "" {
		if err := terminateStaleChild(ctx, o.markerPath, command[0]); err != nil {
			logger.WarnKV(ctx, "Could not clean up a previous updater", "error", err)
		}
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)

	if o.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		cancel()

		return nil, fmt.Errorf("%w: create output pipe: %w", ErrLaunch, err)
	}

	cmd := exec.CommandContext(runCtx, command[0], command[1:]...)
	cmd.Stdout = writer
	cmd.Stderr = writer

	if err = cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()

		cancel()

		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	// The child holds its own copy; ours must go so EOF arrives when it exits.
	_ = writer.Close()

	run := &Run{
		Command: append([]string(nil), command...),
		cmd:     cmd,
		output:  reader,
		ctx:     runCtx,
		cancel:  cancel,
		marker:  o.markerPath,
	}

	if run.marker != "" {
		if err = writeMarker(run.marker, describeChild(ctx, cmd.Process.Pid, run.Command)); err != nil {
			logger.WarnKV(ctx, "Could not record updater pid", "error", err)

			run.marker = ""
		}
	}

	logger.DebugKV(ctx, "Started child process", "pid", cmd.Process.Pid, "command", strings.Join(command, " "))

	return run, nil
}

// PID returns the process id of the child.
func (r *Run) PID() int {
	return r.cmd.Process.Pid
}

// Lines yields the merged output line by line until the child closes it.
// Lines longer than maxLineLength are truncated, never fatal.
// The sequence can be ranged over once; later calls yield nothing.
func (r *Run) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		if r.started {
			return
		}

		r.started = true

		reader := bufio.NewReaderSize(r.output, initialLineBuffer)

		for {
			line, err := readLine(reader)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					r.readErr = err
				}

				r.drained = true

				return
			}

			if !yield(line) {
				return
			}
		}
	}
}

// readLine reads one line, keeping at most maxLineLength bytes of it and
// discarding the rest.
func readLine(reader *bufio.Reader) (string, error) {
	var line []byte

	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err != nil {
			return "", err
		}

		if room := maxLineLength - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}

		if !isPrefix {
			return strings.TrimRight(string(line), "\r"), nil
		}
	}
}

// Wait drains any unread output, reaps the child and returns its exit code.
func (r *Run) Wait() (int, error) {
	defer r.cancel()
	defer removeMarker(r.marker, r.cmd.Process.Pid)

	var result *multierror.Error

	if !r.drained {
		if _, err := io.Copy(io.Discard, r.output); err != nil {
			result = multierror.Append(result, fmt.Errorf("drain output: %w", err))
		}

		r.drained = true
	}

	_ = r.output.Close()

	if r.readErr != nil {
		result = multierror.Append(result, fmt.Errorf("read output: %w", r.readErr))
	}

	code := -1
	err := r.cmd.Wait()

	var exitErr *exec.ExitError

	switch {
	case err == nil:
		code = 0
	case r.ctx.Err() != nil:
		result = multierror.Append(result, fmt.Errorf("%w: %w", errStopped, r.ctx.Err()))
	case errors.As(err, &exitErr) && exitErr.Exited():
		code = exitErr.ExitCode()
	default:
		result = multierror.Append(result, fmt.Errorf("wait: %w", err))
	}

	if code >= 0 {
		r.ExitCode = &code
	}

	if err = result.ErrorOrNil(); err != nil {
		return code, fmt.Errorf("%w: %w", ErrSupervision, err)
	}

	return code, nil
}
