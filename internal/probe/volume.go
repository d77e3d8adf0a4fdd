package probe

import (
	"context"
	"strings"

	"mountcheck/internal/session"
	"mountcheck/internal/volume"
)

func volumeIdentity(ctx context.Context, env *Env) error {
	want := env.Expect.Volume
	path, release, err := freshPath(env, "test_volume")
	if err != nil {
		return err
	}
	defer release()

	opts := session.Options{Label: want.Label, Serial: uint32(want.Serial)}
	return withSession(ctx, env, path, opts, func(s *session.Session) error {
		id, err := env.Volume.Identity(s.Root())
		if err != nil {
			return err
		}
		mismatches := volume.Validate(id, want)
		if len(mismatches) == 0 {
			return nil
		}
		parts := make([]string, len(mismatches))
		for i, m := range mismatches {
			parts[i] = m.String()
		}
		return failf("volume identity of %s: %s", s.Root(), strings.Join(parts, "; "))
	})
}

func freeSpace(_ context.Context, env *Env) error {
	root := env.Shared.Root()
	sp, err := env.Volume.Space(root)
	if err != nil {
		return failf("free space query for %s: %v", root, err)
	}
	if sp.Capacity == 0 || sp.Free == 0 || sp.Available == 0 {
		return failf("free space of %s: capacity=%d free=%d available=%d", root, sp.Capacity, sp.Free, sp.Available)
	}
	return nil
}

func mountUnmount(ctx context.Context, env *Env) error {
	path, release, err := freshPath(env, "test_mount")
	if err != nil {
		return err
	}
	defer release()
	return withSession(ctx, env, path, session.Options{}, func(*session.Session) error { return nil })
}
