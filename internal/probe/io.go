package probe

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"mountcheck/internal/common"
	"mountcheck/internal/session"
)

// Not a multiple of a page or block size.
const roundTripSize = 64*1024 + 13

var persistContent = []byte("abcdef")

func roundTripIO(_ context.Context, env *Env) error {
	fs := env.Shared.FS()
	name := common.ArtifactName("test_rw")

	data := make([]byte, roundTripSize)
	if _, err := rand.Read(data); err != nil {
		return fmt.Errorf("generate content: %w", err)
	}

	if err := requireAbsent(fs, name); err != nil {
		return err
	}
	if err := writeFile(fs, name, data); err != nil {
		return err
	}
	if err := requireExists(fs, name); err != nil {
		return err
	}
	got, err := readFile(fs, name)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return failf("%s: read %d bytes that differ from the %d written", name, len(got), len(data))
	}
	if err := removeFile(fs, name); err != nil {
		return err
	}
	return requireAbsent(fs, name)
}

func remountPersistence(ctx context.Context, env *Env) error {
	name := common.ArtifactName("test_io")

	first, releaseFirst, err := freshPath(env, "test_mount")
	if err != nil {
		return err
	}
	defer releaseFirst()

	err = withSession(ctx, env, first, session.Options{}, func(s *session.Session) error {
		return writeFile(s.FS(), name, persistContent)
	})
	if err != nil {
		return err
	}

	second, releaseSecond, err := freshPath(env, "test_mount")
	if err != nil {
		discardArtifact(env, name)
		return err
	}
	defer releaseSecond()

	removed := false
	err = withSession(ctx, env, second, session.Options{}, func(s *session.Session) error {
		fs := s.FS()
		got, err := readFile(fs, name)
		if err != nil {
			return err
		}
		if !bytes.Equal(got, persistContent) {
			return failf("%s: read %q after remount, want %q", name, got, persistContent)
		}
		if err := removeFile(fs, name); err != nil {
			return err
		}
		removed = true
		return requireAbsent(fs, name)
	})
	if err != nil && !removed {
		discardArtifact(env, name)
	}
	return err
}

func recursiveEnumeration(_ context.Context, env *Env) error {
	fs := env.Shared.FS()
	base := common.ArtifactName("test_find")
	defer util.RemoveAll(fs, base)

	dirs := []string{"sub"}
	files := []string{"file_1", "file_2", "sub/file_3", "sub/file_4"}

	for _, d := range dirs {
		if err := fs.MkdirAll(path.Join(base, d), 0755); err != nil {
			return failf("mkdir %s: %v", d, err)
		}
	}
	for _, f := range files {
		if err := writeFile(fs, path.Join(base, f), []byte(f)); err != nil {
			return err
		}
	}

	want := make(map[string]bool)
	for _, n := range append(dirs, files...) {
		want[n] = true
	}

	seen := make(map[string]int)
	err := util.Walk(fs, base, func(p string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		rel = common.NormalizePath(rel)
		if rel == "" || rel == "." {
			return nil
		}
		seen[rel]++
		return nil
	})
	if err != nil {
		return failf("walk %s: %v", base, err)
	}

	for n, count := range seen {
		if !want[n] {
			return failf("walk returned unexpected entry %s", n)
		}
		if count != 1 {
			return failf("walk returned %s %d times", n, count)
		}
	}
	for n := range want {
		if seen[n] == 0 {
			return failf("walk did not return %s", n)
		}
	}
	return nil
}

func crossDirectoryMove(_ context.Context, env *Env) error {
	fs := env.Shared.FS()
	srcDir := common.ArtifactName("test_move_src")
	dstDir := common.ArtifactName("test_move_dst")
	defer util.RemoveAll(fs, srcDir)
	defer util.RemoveAll(fs, dstDir)

	for _, d := range []string{srcDir, dstDir} {
		if err := fs.MkdirAll(d, 0755); err != nil {
			return failf("mkdir %s: %v", d, err)
		}
	}

	data := make([]byte, 4096)
	if _, err := rand.Read(data); err != nil {
		return fmt.Errorf("generate content: %w", err)
	}
	src := path.Join(srcDir, "file")
	dst := path.Join(dstDir, "file")
	if err := writeFile(fs, src, data); err != nil {
		return err
	}

	if err := copyFile(fs, src, dst); err != nil {
		return err
	}
	if err := removeFile(fs, src); err != nil {
		return err
	}

	got, err := readFile(fs, dst)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return failf("%s: moved content differs from the original", dst)
	}
	return requireAbsent(fs, src)
}

func copyFile(fs billy.Filesystem, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return failf("open %s: %v", src, err)
	}
	defer in.Close()

	out, err := fs.Create(dst)
	if err != nil {
		return failf("create %s: %v", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return failf("copy %s to %s: %v", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return failf("close %s: %v", dst, err)
	}
	return nil
}
