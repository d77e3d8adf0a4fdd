// Copyright 2024 LatentFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session coordinates the lifecycle of mount helper sessions:
// map, wait for the mount, hand it to probes, unmap and join.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"mountcheck/internal/common"
	"mountcheck/internal/helper"
	"mountcheck/internal/util"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUnmounted State = iota
	StateMapping
	StateMounted
	StateUnmapping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateMapping:
		return "mapping"
	case StateMounted:
		return "mounted"
	case StateUnmapping:
		return "unmapping"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the legal next states. A mounted session can only leave
// through Unmapping, so the helper is always joined first.
var transitions = map[State][]State{
	StateUnmounted: {StateMapping},
	StateMapping:   {StateMounted, StateFailed},
	StateMounted:   {StateUnmapping},
	StateUnmapping: {StateUnmounted, StateFailed},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Mode is the access mode requested from the helper.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
)

func (m Mode) String() string {
	if m == ReadOnly {
		return "read-only"
	}
	return "read-write"
}

// Options describes the session to open.
type Options struct {
	MountPath string
	Mode      Mode
	Label     string // Expected volume label, passed to the helper
	Serial    uint32 // Expected volume serial, passed to the helper
}

func (o Options) mapOptions() helper.MapOptions {
	return helper.MapOptions{
		MountPath: o.MountPath,
		ReadOnly:  o.Mode == ReadOnly,
		Label:     o.Label,
		Serial:    o.Serial,
	}
}

// Helper maps and unmaps mount paths.
type Helper interface {
	Map(opts helper.MapOptions) (util.Process, error)
	Unmap(ctx context.Context, mountPath string) error
}

// Waiter blocks until a mount path is ready.
type Waiter interface {
	WaitForMount(ctx context.Context, path string) (util.PollResult, util.PollAttempt)
}

// FSFactory returns the filesystem view probes use for a mounted root.
type FSFactory func(root string, mode Mode) billy.Filesystem

// OSFS exposes the real mount root through go-billy.
func OSFS(root string, _ Mode) billy.Filesystem {
	return osfs.New(root)
}

// Config configures an Orchestrator.
type Config struct {
	EphemeralRoot string        // Parent directory for per-scenario mount paths
	LockDir       string        // Per-mount-path lock files; empty disables locking
	StopGrace     time.Duration // Wait for the helper to exit after unmap before killing it (default: 30s)
	FS            FSFactory     // Default: OSFS
}

// Orchestrator opens and closes sessions.
type Orchestrator struct {
	helper Helper
	waiter Waiter
	cfg    Config
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(h Helper, w Waiter, cfg Config) *Orchestrator {
	if cfg.StopGrace == 0 {
		cfg.StopGrace = 30 * time.Second
	}
	if cfg.FS == nil {
		cfg.FS = OSFS
	}
	if cfg.EphemeralRoot == "" {
		cfg.EphemeralRoot = filepath.Join(os.TempDir(), "mountcheck")
	}
	return &Orchestrator{helper: h, waiter: w, cfg: cfg}
}

// FreshPath creates an empty directory under the ephemeral root whose name is
// prefix plus a random suffix, for use as an isolated mount path.
func (o *Orchestrator) FreshPath(prefix string) (string, error) {
	path := filepath.Join(o.cfg.EphemeralRoot, common.ArtifactName(prefix))
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create mount path: %w", err)
	}
	return path, nil
}

// ReleasePath removes a directory created by FreshPath. It must no longer be
// mounted.
func (o *Orchestrator) ReleasePath(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warnf("[SESSION] Failed to remove mount path %s: %v", path, err)
	}
}

// Open maps opts.MountPath and blocks until the mount is accessible. Spawn
// failures wrap common.ErrSpawn and readiness timeouts wrap
// common.ErrPollTimeout; in both cases no helper process is left behind.
func (o *Orchestrator) Open(ctx context.Context, opts Options) (*Session, error) {
	s := &Session{opts: opts, orch: o, state: StateUnmounted}

	if err := s.lock(); err != nil {
		return nil, err
	}

	s.mustTransition(StateMapping)
	log.Infof("[SESSION] Mapping %s (%s)", opts.MountPath, opts.Mode)

	proc, err := o.helper.Map(opts.mapOptions())
	if err != nil {
		s.mustTransition(StateFailed)
		s.unlock()
		return nil, fmt.Errorf("map %s: %w", opts.MountPath, err)
	}
	s.proc = proc

	result, attempt := o.waiter.WaitForMount(ctx, opts.MountPath)
	if result != util.PollReady {
		s.mustTransition(StateFailed)
		if err := s.release(ctx); err != nil {
			log.Warnf("[SESSION] Cleanup after failed mount of %s: %v", opts.MountPath, err)
		}
		return nil, fmt.Errorf("%w: %s after %d/%d attempts: %v",
			common.ErrPollTimeout, opts.MountPath, attempt.AttemptsMade, attempt.MaxAttempts, attempt.LastErr)
	}

	s.mustTransition(StateMounted)
	s.fs = o.cfg.FS(opts.MountPath, opts.Mode)
	log.Infof("[SESSION] Mounted %s (PID %d)", opts.MountPath, proc.Pid())
	return s, nil
}

// Session is one live mapping owned by a single helper process.
type Session struct {
	opts  Options
	orch  *Orchestrator
	state State
	proc  util.Process
	fs    billy.Filesystem
	flock *flock.Flock
}

// Root returns the mount path.
func (s *Session) Root() string { return s.opts.MountPath }

// Mode returns the access mode the session was mapped with.
func (s *Session) Mode() Mode { return s.opts.Mode }

// Options returns the options the session was opened with.
func (s *Session) Options() Options { return s.opts }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// FS returns the filesystem view of the mount root.
func (s *Session) FS() billy.Filesystem { return s.fs }

// Close unmaps the session and joins the helper. The helper is joined even
// when unmap fails: it is killed after the stop grace period. Unmap output
// or a nonzero helper exit code wraps common.ErrUnmapFailure.
func (s *Session) Close(ctx context.Context) error {
	if err := s.transition(StateUnmapping); err != nil {
		return err
	}
	log.Infof("[SESSION] Unmapping %s", s.opts.MountPath)

	unmapErr := s.release(ctx)
	code, joinErr := s.proc.Join()
	if joinErr != nil {
		s.mustTransition(StateFailed)
		return joinErr
	}
	s.mustTransition(StateUnmounted)

	var errs []error
	if unmapErr != nil {
		errs = append(errs, unmapErr)
	}
	if code != 0 {
		errs = append(errs, fmt.Errorf("%w: helper for %s exited with code %d", common.ErrUnmapFailure, s.opts.MountPath, code))
	}
	if len(errs) == 0 {
		log.Infof("[SESSION] Unmounted %s", s.opts.MountPath)
	}
	return errors.Join(errs...)
}

// release issues unmap, waits for the helper to exit, kills it after the
// grace period and joins it. The path lock is dropped afterwards. A cancelled
// ctx does not skip the unmap: an interrupted run still unmaps every session
// it opened, bounded by the unmap timeout and the stop grace.
func (s *Session) release(ctx context.Context) error {
	defer s.unlock()
	ctx = context.WithoutCancel(ctx)
	return util.StopProcess(ctx, s.proc, util.ProcessConfig{GracefulTimeout: s.orch.cfg.StopGrace}, func() error {
		return s.orch.helper.Unmap(ctx, s.opts.MountPath)
	})
}

func (s *Session) transition(to State) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s for %s", common.ErrInvalidState, s.state, to, s.opts.MountPath)
	}
	log.Debugf("[SESSION] %s: %s -> %s", s.opts.MountPath, s.state, to)
	s.state = to
	return nil
}

func (s *Session) mustTransition(to State) {
	if err := s.transition(to); err != nil {
		panic(err)
	}
}

func (s *Session) lock() error {
	dir := s.orch.cfg.LockDir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(dir, common.MountKey(s.opts.MountPath)+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", common.ErrPathInUse, s.opts.MountPath)
	}
	s.flock = fl
	return nil
}

func (s *Session) unlock() {
	if s.flock == nil {
		return
	}
	if err := s.flock.Unlock(); err != nil {
		log.Warnf("[SESSION] Failed to release lock for %s: %v", s.opts.MountPath, err)
	}
	s.flock = nil
}
