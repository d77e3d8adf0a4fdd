package session

import (
	"context"
	"errors"
	"sync"

	"mountcheck/internal/common"
	"mountcheck/internal/helper"
	"mountcheck/internal/util"
)

type fakeProcess struct {
	mu       sync.Mutex
	pid      int
	running  bool
	exitCode int
	killed   bool
	joins    int
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *fakeProcess) Join() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return 0, errors.New("fake process joined while running")
	}
	p.joins++
	return p.exitCode, nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.running = false
		p.killed = true
		p.exitCode = -1
	}
	return nil
}

func (p *fakeProcess) exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// fakeHelper records map/unmap calls. By default the mapped process exits
// cleanly when its path is unmapped.
type fakeHelper struct {
	mu          sync.Mutex
	maps        []helper.MapOptions
	unmaps      []string
	procs       map[string]*fakeProcess
	nextPid     int
	spawnFail   bool
	unmapErr    error
	ignoreUnmap bool
	exitCode    int
}

func newFakeHelper() *fakeHelper {
	return &fakeHelper{procs: make(map[string]*fakeProcess), nextPid: 100}
}

func (h *fakeHelper) Map(opts helper.MapOptions) (util.Process, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maps = append(h.maps, opts)
	if h.spawnFail {
		return nil, common.ErrSpawn
	}
	h.nextPid++
	p := &fakeProcess{pid: h.nextPid, running: true, exitCode: h.exitCode}
	h.procs[opts.MountPath] = p
	return p, nil
}

// Unmap fails without unmapping on a cancelled ctx, as a command run under
// that ctx would.
func (h *fakeHelper) Unmap(ctx context.Context, mountPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unmaps = append(h.unmaps, mountPath)
	if p, ok := h.procs[mountPath]; ok && !h.ignoreUnmap {
		p.exit()
	}
	return h.unmapErr
}

func (h *fakeHelper) proc(path string) *fakeProcess {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.procs[path]
}

type fakeWaiter struct {
	mu     sync.Mutex
	result util.PollResult
	calls  []string
}

func (w *fakeWaiter) WaitForMount(_ context.Context, path string) (util.PollResult, util.PollAttempt) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, path)
	attempt := util.PollAttempt{MaxAttempts: 10, AttemptsMade: 1}
	if w.result == util.PollTimeout {
		attempt.AttemptsMade = 10
		attempt.DeadlineReached = true
		attempt.LastErr = errors.New("path not found")
	}
	return w.result, attempt
}
