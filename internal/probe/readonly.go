package probe

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"mountcheck/internal/common"
	"mountcheck/internal/session"
)

var seedContent = []byte("abc123")

// readOnlyEnforcement seeds a file through a writable mount, remounts the
// same storage read-only and checks that nothing can be created or deleted,
// then remounts writable to clean up. The cleanup remount runs whatever the
// read-only step reports.
func readOnlyEnforcement(ctx context.Context, env *Env) error {
	success := common.ArtifactName("ro_success")
	fail := common.ArtifactName("ro_fail")

	path, release, err := freshPath(env, "test_ro")
	if err != nil {
		return err
	}
	defer release()

	err = withSession(ctx, env, path, session.Options{}, func(s *session.Session) error {
		return writeFile(s.FS(), success, seedContent)
	})
	if err != nil {
		discardArtifact(env, success)
		return err
	}

	roErr := withSession(ctx, env, path, session.Options{Mode: session.ReadOnly}, func(s *session.Session) error {
		return checkReadOnly(s, env.Expect.NoDevicePhrase, success, fail)
	})

	removed := false
	rwErr := withSession(ctx, env, path, session.Options{}, func(s *session.Session) error {
		fs := s.FS()
		if err := removeFile(fs, success); err != nil {
			return err
		}
		removed = true
		return requireAbsent(fs, success)
	})
	if !removed {
		discardArtifact(env, success)
	}
	return errors.Join(roErr, rwErr)
}

func checkReadOnly(s *session.Session, phrase, success, fail string) error {
	fs := s.FS()

	f, err := fs.OpenFile(fail, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		_, _ = f.Write(seedContent)
		_ = f.Close()
		return violationf("created %s on a read-only mount", fail)
	}
	ok, err := exists(fs, fail)
	if err != nil {
		return err
	}
	if ok {
		return violationf("%s exists after a rejected create", fail)
	}

	got, err := readFile(fs, success)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, seedContent) {
		return failf("%s: read %q, want %q", success, got, seedContent)
	}

	err = fs.Remove(success)
	if err == nil {
		return violationf("deleted %s on a read-only mount", success)
	}
	full := filepath.Join(s.Root(), success)
	if !strings.Contains(err.Error(), full) || !isNoDevice(err, phrase) {
		return failf("unexpected error deleting %s: %q (want path %q and a no-device error)", success, err.Error(), full)
	}
	return requireExists(fs, success)
}

// isNoDevice reports whether err is a no-device rejection: one of the
// platform's no-device errnos, or a message carrying phrase.
func isNoDevice(err error, phrase string) bool {
	for _, target := range noDeviceErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	if phrase == "" {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), strings.ToLower(phrase))
}
