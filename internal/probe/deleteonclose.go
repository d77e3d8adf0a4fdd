package probe

import (
	"context"
	"errors"

	"mountcheck/internal/common"
)

func createDeleteOnClose(_ context.Context, env *Env) error {
	fs := env.Shared.FS()
	name := common.ArtifactName("test_create")

	f, err := openDeleteOnClose(env.Shared, name)
	if errors.Is(err, common.ErrUnsupported) {
		return err
	}
	if err != nil {
		return failf("create %s with delete-on-close: %v", name, err)
	}
	n, err := f.Write(persistContent)
	if err != nil {
		f.Close()
		return failf("write %s: %v", name, err)
	}
	if n != len(persistContent) {
		f.Close()
		return failf("write %s: wrote %d bytes, want %d", name, n, len(persistContent))
	}
	if err := f.Close(); err != nil {
		return failf("close %s: %v", name, err)
	}
	return requireAbsent(fs, name)
}
