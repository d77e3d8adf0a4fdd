package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"mountcheck/internal/common"
)

// Process is a spawned process that must be joined before it is forgotten.
type Process interface {
	Pid() int
	Running() bool
	Join() (int, error)
	Kill() error
}

// ProcessConfig configures process management behavior.
type ProcessConfig struct {
	GracefulTimeout time.Duration // Time to wait for graceful shutdown (default: 10s)
	PollInterval    time.Duration // Polling interval for process state (default: 100ms)
}

// Controller spawns and tracks external processes.
type Controller struct {
	Env    []string  // Appended to the parent environment
	Output io.Writer // Receives stdout and stderr; nil streams them into the debug log
}

// ProcessRecord is one spawned process. The exit code is only meaningful
// after Join returns.
type ProcessRecord struct {
	Command string
	Args    []string

	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
	waitErr  error
	logw     *io.PipeWriter
}

// Spawn starts command with args. Launch failures wrap common.ErrSpawn.
func (c *Controller) Spawn(command string, args []string) (*ProcessRecord, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(), c.Env...)

	rec := &ProcessRecord{
		Command:  command,
		Args:     args,
		cmd:      cmd,
		done:     make(chan struct{}),
		exitCode: -1,
	}

	if c.Output != nil {
		cmd.Stdout = c.Output
		cmd.Stderr = c.Output
	} else {
		rec.logw = log.WithField("cmd", filepath.Base(command)).WriterLevel(log.DebugLevel)
		cmd.Stdout = rec.logw
		cmd.Stderr = rec.logw
	}

	if err := cmd.Start(); err != nil {
		if rec.logw != nil {
			rec.logw.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", common.ErrSpawn, command, err)
	}
	log.Debugf("[HELPER] Spawned %s %v (PID %d)", command, args, cmd.Process.Pid)

	go rec.wait()
	return rec, nil
}

func (r *ProcessRecord) wait() {
	r.waitErr = r.cmd.Wait()
	if r.cmd.ProcessState != nil {
		r.exitCode = r.cmd.ProcessState.ExitCode()
	}
	if r.logw != nil {
		r.logw.Close()
	}
	close(r.done)
}

// Pid returns the OS process id.
func (r *ProcessRecord) Pid() int {
	return r.cmd.Process.Pid
}

// Running reports whether the process has not exited yet.
func (r *ProcessRecord) Running() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Join blocks until the process exits and returns its exit code. A nonzero
// code is not an error; the caller decides what it means. Join may be called
// more than once.
func (r *ProcessRecord) Join() (int, error) {
	<-r.done
	var exitErr *exec.ExitError
	if r.waitErr != nil && !errors.As(r.waitErr, &exitErr) {
		return r.exitCode, fmt.Errorf("join %s (PID %d): %w", r.Command, r.Pid(), r.waitErr)
	}
	return r.exitCode, nil
}

// Kill forcibly terminates the process. Killing an exited process is a no-op.
func (r *ProcessRecord) Kill() error {
	if !r.Running() {
		return nil
	}
	if err := r.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s (PID %d): %w", r.Command, r.Pid(), err)
	}
	return nil
}

// StopProcess attempts graceful shutdown, then force kills if needed.
// The gracefulStop function should request the process to stop (e.g. an
// unmap command). The process is always joined before returning.
func StopProcess(ctx context.Context, proc Process, cfg ProcessConfig, gracefulStop func() error) error {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}

	var stopErr error
	if gracefulStop != nil {
		// Continue on failure - we'll force kill if needed
		stopErr = gracefulStop()
	}

	err := PollUntil(ctx, WaitConfig{Timeout: cfg.GracefulTimeout, Interval: cfg.PollInterval}, func() bool {
		return !proc.Running()
	})
	if err != nil {
		log.Warnf("[HELPER] PID %d did not stop within %v, killing", proc.Pid(), cfg.GracefulTimeout)
		if kerr := proc.Kill(); kerr != nil {
			return kerr
		}
	}

	if _, err := proc.Join(); err != nil {
		return err
	}
	return stopErr
}

// CommandResult holds the result of a short-lived command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// TimeoutExitCode is reported when RunCommand kills a command that overran.
const TimeoutExitCode = 124

// RunCommand runs name with args and captures its output. A command that
// outlives timeout is killed and reported with TimeoutExitCode.
func RunCommand(ctx context.Context, timeout time.Duration, env []string, name string, args ...string) CommandResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	// After the context cancels and the process is killed, wait up to 2s for
	// I/O pipes to drain, then forcefully close them.
	cmd.WaitDelay = 2 * time.Second
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if ctx.Err() == context.DeadlineExceeded {
			exitCode = TimeoutExitCode
			stderr.WriteString(fmt.Sprintf("\n[TIMEOUT] Command timed out after %v: %s %v\n", timeout, name, args))
		} else if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
			stderr.WriteString(err.Error())
		}
	}

	return CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: stdout.String() + stderr.String(),
		ExitCode: exitCode,
	}
}
