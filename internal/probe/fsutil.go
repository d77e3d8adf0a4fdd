package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	log "github.com/sirupsen/logrus"

	"mountcheck/internal/common"
	"mountcheck/internal/session"
)

func failf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{common.ErrAssertion}, args...)...)
}

func violationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{common.ErrReadOnlyViolation}, args...)...)
}

func exists(fs billy.Filesystem, name string) (bool, error) {
	_, err := fs.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

func requireExists(fs billy.Filesystem, name string) error {
	ok, err := exists(fs, name)
	if err != nil {
		return err
	}
	if !ok {
		return failf("%s does not exist", name)
	}
	return nil
}

func requireAbsent(fs billy.Filesystem, name string) error {
	ok, err := exists(fs, name)
	if err != nil {
		return err
	}
	if ok {
		return failf("%s still exists", name)
	}
	return nil
}

func writeFile(fs billy.Filesystem, name string, data []byte) error {
	if err := util.WriteFile(fs, name, data, 0644); err != nil {
		return failf("write %s: %v", name, err)
	}
	return nil
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, failf("open %s: %v", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, failf("read %s: %v", name, err)
	}
	return data, nil
}

func removeFile(fs billy.Filesystem, name string) error {
	if err := fs.Remove(name); err != nil {
		return failf("delete %s: %v", name, err)
	}
	return nil
}

// withSession maps a fresh ephemeral path, runs fn against it and always
// unmaps, returning fn's error joined with any unmap failure.
func withSession(ctx context.Context, env *Env, path string, opts session.Options, fn func(*session.Session) error) error {
	opts.MountPath = path
	sess, err := env.Sessions.Open(ctx, opts)
	if err != nil {
		return err
	}
	runErr := fn(sess)
	closeErr := sess.Close(ctx)
	return errors.Join(runErr, closeErr)
}

// freshPath allocates an ephemeral mount path and returns a func that removes
// it again.
func freshPath(env *Env, prefix string) (string, func(), error) {
	path, err := env.Sessions.FreshPath(prefix)
	if err != nil {
		return "", nil, err
	}
	return path, func() { env.Sessions.ReleasePath(path) }, nil
}

// discardArtifact removes name through the shared session after a probe
// could not clean up through its own mount, so the leak scan does not keep
// reporting it. Every mount path sees the same volume root.
func discardArtifact(env *Env, name string) {
	if env.Shared == nil || env.Shared.State() != session.StateMounted {
		log.Warnf("[PROBE] %s left behind: no mounted shared session to remove it", name)
		return
	}
	if err := env.Shared.FS().Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("[PROBE] Failed to remove leftover %s: %v", name, err)
	}
}
