// Package run launches and tracks one local child process per handle.
//
// A Run exclusively owns its OS process. The child's stdout and stderr are
// merged into a timestamped file under an output directory, and callers
// observe the run through four operations: Status, OutputFile, Updates and
// Cancel. Status is derived from process state on every query rather than
// stored authoritatively.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/seastar-sci/seastar/internal/status"
	"github.com/seastar-sci/seastar/internal/tail"
)

// OutputDirName is the directory created under the working directory to
// hold run output files.
const OutputDirName = "output"

// timestampLayout names output files, e.g. roms_20260830_154502.out.
const timestampLayout = "20060102_150405"

// Spec describes one run.
type Spec struct {
	// Command is the argv of the child process. Required.
	Command []string

	// Dir is the working directory of the child. Defaults to the current
	// directory. The output directory is created underneath it.
	Dir string

	// Env is appended to the parent environment.
	Env map[string]string

	// OutputPrefix names the output file. Defaults to the basename of the
	// command.
	OutputPrefix string

	// TTY runs the child on a pseudo-terminal so line-buffered programs
	// flush output promptly. Output is still captured to the output file.
	TTY bool
}

// LaunchError reports a failure to start the child process.
type LaunchError struct {
	Command []string
	Err     error
}

func (e *LaunchError) Error() string {
	if len(e.Command) == 0 {
		return fmt.Sprintf("launching run: %v", e.Err)
	}
	return fmt.Sprintf("launching %q: %v", e.Command[0], e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Run is the handle for a single tracked child process. The zero value
// reports Unsubmitted from Status; all other methods require a Run
// returned by Start.
type Run struct {
	mu sync.Mutex

	cmd        *exec.Cmd
	outputFile string
	started    time.Time

	cancelRequested bool
	exitCode        int
	exitErr         error

	out      *os.File
	ptmx     *os.File
	copyDone chan struct{}

	done chan struct{}
}

// Start launches the child described by spec and returns its handle, in
// Running state. Launch failures are reported as a *LaunchError.
func Start(spec Spec) (*Run, error) {
	if len(spec.Command) == 0 {
		return nil, &LaunchError{Err: errors.New("empty command")}
	}

	dir := spec.Dir
	if dir == "" {
		dir = "."
	}
	outDir := filepath.Join(dir, OutputDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}

	prefix := spec.OutputPrefix
	if prefix == "" {
		prefix = filepath.Base(spec.Command[0])
	}
	out, path, err := createOutputFile(outDir, prefix)
	if err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), envList(spec.Env)...)

	r := &Run{
		cmd:        cmd,
		outputFile: path,
		out:        out,
		done:       make(chan struct{}),
	}

	if spec.TTY {
		if err := r.startPTY(); err != nil {
			out.Close()
			return nil, &LaunchError{Command: spec.Command, Err: err}
		}
	} else {
		cmd.Stdout = out
		cmd.Stderr = out
		// Own process group so cancellation reaches the whole pipeline.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		if err := cmd.Start(); err != nil {
			out.Close()
			return nil, &LaunchError{Command: spec.Command, Err: err}
		}
	}

	r.started = time.Now()
	go r.waitForExit()
	return r, nil
}

// startPTY starts the child as the session leader of a fresh PTY and tees
// the master side into the output file.
func (r *Run) startPTY() error {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return err
	}

	r.cmd.Stdin = tty
	r.cmd.Stdout = tty
	r.cmd.Stderr = tty
	r.cmd.Env = append(r.cmd.Env, "TERM=dumb")
	// Setsid gives the child its own session (and process group) with the
	// PTY as controlling terminal.
	r.cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := r.cmd.Start(); err != nil {
		ptmx.Close()
		tty.Close()
		return err
	}
	tty.Close()

	r.ptmx = ptmx
	r.copyDone = make(chan struct{})
	go func() {
		defer close(r.copyDone)
		// Read returns EIO once the child closes the slave side.
		_, _ = io.Copy(r.out, r.ptmx)
	}()
	return nil
}

func (r *Run) waitForExit() {
	err := r.cmd.Wait()
	if r.copyDone != nil {
		// Drain buffered PTY output before declaring the run over.
		<-r.copyDone
		r.ptmx.Close()
	}

	r.mu.Lock()
	switch e := err.(type) {
	case nil:
		r.exitCode = 0
	case *exec.ExitError:
		r.exitCode = e.ExitCode()
	default:
		// Wait failed for a reason other than the child exiting; the exit
		// state is unknowable from here.
		r.exitErr = err
	}
	r.mu.Unlock()

	r.out.Close()
	close(r.done)
}

// Status derives the current lifecycle state. It never returns an error:
// inspection failures degrade to Unknown so callers can poll freely.
func (r *Run) Status() status.ExecutionStatus {
	if r == nil || r.cmd == nil {
		return status.Unsubmitted
	}

	r.mu.Lock()
	cancelled := r.cancelRequested
	r.mu.Unlock()
	if cancelled {
		// A recorded cancel overrides whatever the exit code says, and a
		// cancel request is itself the transition out of Running.
		return status.Cancelled
	}

	select {
	case <-r.done:
	default:
		// Not reaped yet. Signal 0 probes the process table; ESRCH means
		// the handle has lost its process to external reaping.
		if r.cmd.Process == nil {
			return status.Unknown
		}
		if err := unix.Kill(r.cmd.Process.Pid, 0); err != nil && err != unix.EPERM {
			return status.Unknown
		}
		return status.Running
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.exitErr != nil:
		return status.Unknown
	case r.exitCode == 0:
		return status.Completed
	default:
		return status.Failed
	}
}

// OutputFile returns the path of the file capturing the child's merged
// stdout and stderr. Stable for the life of the handle.
func (r *Run) OutputFile() string { return r.outputFile }

// PID returns the child's process id, or 0 before launch.
func (r *Run) PID() int {
	if r == nil || r.cmd == nil || r.cmd.Process == nil {
		return 0
	}
	return r.cmd.Process.Pid
}

// Started returns the launch time.
func (r *Run) Started() time.Time { return r.started }

// Command returns the argv the run was started with.
func (r *Run) Command() []string {
	if r == nil || r.cmd == nil {
		return nil
	}
	return r.cmd.Args
}

// Done returns a channel closed when the child has exited and its output
// file is fully written.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the child exits or ctx is done.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return nil
	}
}

// Updates streams lines appended to the output file. d > 0 bounds how long
// to follow; d == 0 follows until the child exits and the file is drained.
// Cancelling ctx ends the sequence cleanly without an error.
func (r *Run) Updates(ctx context.Context, d time.Duration) iter.Seq[string] {
	return tail.Follow(ctx, r.outputFile, tail.Options{
		Duration: d,
		Done:     r.done,
	})
}

// Cancel asks the child to stop with SIGTERM. Idempotent: cancelling an
// already-exited run, or cancelling twice, is a no-op. Once a live run has
// been cancelled its final status is Cancelled regardless of exit code.
func (r *Run) Cancel() error { return r.signal(unix.SIGTERM) }

// CancelKill escalates to SIGKILL for children that ignore SIGTERM.
func (r *Run) CancelKill() error { return r.signal(unix.SIGKILL) }

func (r *Run) signal(sig syscall.Signal) error {
	if r == nil || r.cmd == nil || r.cmd.Process == nil {
		return nil
	}

	select {
	case <-r.done:
		// Already exited naturally; nothing to cancel.
		return nil
	default:
	}

	r.mu.Lock()
	r.cancelRequested = true
	r.mu.Unlock()

	// Process group first so pipelines and launcher wrappers go down with
	// the leader, then the process itself in case the group is gone.
	pid := r.cmd.Process.Pid
	if err := unix.Kill(-pid, sig); err == nil || err == unix.ESRCH {
		return nil
	}
	if err := r.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// createOutputFile creates <dir>/<prefix>_<timestamp>.out, adding a counter
// suffix when two runs share a prefix within the same second.
func createOutputFile(dir, prefix string) (*os.File, string, error) {
	stamp := time.Now().UTC().Format(timestampLayout)
	base := fmt.Sprintf("%s_%s", prefix, stamp)
	for i := 0; ; i++ {
		name := base + ".out"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.out", base, i+1)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
