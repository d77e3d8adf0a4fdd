package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"

	"mountcheck/internal/helper"
	"mountcheck/internal/session"
	"mountcheck/internal/util"
	"mountcheck/internal/volume"
)

type fakeProcess struct {
	mu      sync.Mutex
	pid     int
	running bool
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *fakeProcess) Join() (int, error) { return 0, nil }

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	return nil
}

type fakeHelper struct {
	mu     sync.Mutex
	maps   []helper.MapOptions
	unmaps []string
	procs  map[string]*fakeProcess
}

func newFakeHelper() *fakeHelper {
	return &fakeHelper{procs: make(map[string]*fakeProcess)}
}

func (h *fakeHelper) Map(opts helper.MapOptions) (util.Process, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.maps = append(h.maps, opts)
	p := &fakeProcess{pid: 1000 + len(h.maps), running: true}
	h.procs[opts.MountPath] = p
	return p, nil
}

func (h *fakeHelper) Unmap(_ context.Context, mountPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unmaps = append(h.unmaps, mountPath)
	if p, ok := h.procs[mountPath]; ok {
		p.Kill()
	}
	return nil
}

func (h *fakeHelper) mapped() []helper.MapOptions {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]helper.MapOptions(nil), h.maps...)
}

// fakeWaiter reports every path ready unless timeout says otherwise.
type fakeWaiter struct {
	timeout func(path string) bool
}

func (w *fakeWaiter) WaitForMount(_ context.Context, path string) (util.PollResult, util.PollAttempt) {
	if w.timeout != nil && w.timeout(path) {
		return util.PollTimeout, util.PollAttempt{
			AttemptsMade:    10,
			MaxAttempts:     10,
			DeadlineReached: true,
			LastErr:         errors.New("path not found"),
		}
	}
	return util.PollReady, util.PollAttempt{AttemptsMade: 1, MaxAttempts: 10}
}

// readOnlyFS rejects every mutation the way a read-only mount does, with
// denyErr under a full-path *os.PathError.
type readOnlyFS struct {
	billy.Filesystem
	root    string
	denyErr error
}

func (r *readOnlyFS) deny(op, name string) error {
	return &os.PathError{Op: op, Path: filepath.Join(r.root, name), Err: r.denyErr}
}

// systemMessageErr is an errno whose text is a system message rather than
// the errno name, as Windows reports errors.
type systemMessageErr struct {
	errno error
	msg   string
}

func (e systemMessageErr) Error() string { return e.msg }

func (e systemMessageErr) Unwrap() error { return e.errno }

func (r *readOnlyFS) Create(name string) (billy.File, error) {
	return nil, r.deny("open", name)
}

func (r *readOnlyFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_CREATE|os.O_WRONLY|os.O_RDWR|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, r.deny("open", name)
	}
	return r.Filesystem.OpenFile(name, flag, perm)
}

func (r *readOnlyFS) Remove(name string) error { return r.deny("remove", name) }

func (r *readOnlyFS) Rename(from, _ string) error { return r.deny("rename", from) }

func (r *readOnlyFS) MkdirAll(name string, _ os.FileMode) error { return r.deny("mkdir", name) }

type fakeQuerier struct {
	identity volume.Identity
	idErr    error
	space    volume.Space
	spaceErr error
}

func (q *fakeQuerier) Identity(string) (volume.Identity, error) { return q.identity, q.idErr }

func (q *fakeQuerier) Space(string) (volume.Space, error) { return q.space, q.spaceErr }

func healthyQuerier() *fakeQuerier {
	return &fakeQuerier{
		identity: volume.Identity{
			Label:              "TestCeph",
			FileSystemName:     "Ceph",
			SerialNumber:       1234567890,
			MaxComponentLength: 256,
		},
		space: volume.Space{Capacity: 1 << 30, Free: 1 << 29, Available: 1 << 29},
	}
}

// storageFS returns an FS factory over one backing store, so every mount
// sees the same data. Read-only sessions get a readOnlyFS failing with
// denyErr; a nil denyErr leaves them writable.
func storageFS(store billy.Filesystem, denyErr error) session.FSFactory {
	return func(root string, mode session.Mode) billy.Filesystem {
		if mode == session.ReadOnly && denyErr != nil {
			return &readOnlyFS{Filesystem: store, root: root, denyErr: denyErr}
		}
		return store
	}
}
