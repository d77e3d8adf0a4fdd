package commands

import (
	"mountcheck/internal/config"
	"mountcheck/internal/helper"
	"mountcheck/internal/session"
	"mountcheck/internal/util"
	"mountcheck/internal/volume"
)

// deps are the collaborators a run needs. Tests replace the helper, waiter
// and filesystem with fakes.
type deps struct {
	Settings *config.Settings
	Helper   session.Helper
	Waiter   session.Waiter
	FS       session.FSFactory
	Volume   volume.Querier
}

func systemDeps(s *config.Settings) deps {
	return deps{
		Settings: s,
		Helper:   helper.New(s.Helper.Binary, s.Helper.BaseArgs, s.Helper.Env, s.Helper.UnmapTimeout),
		Waiter:   util.NewPoller(s.PollConfig(), volume.Accessible),
		FS:       session.OSFS,
		Volume:   volume.System{},
	}
}

func (d deps) orchestrator() *session.Orchestrator {
	return session.NewOrchestrator(d.Helper, d.Waiter, session.Config{
		EphemeralRoot: d.Settings.EphemeralRoot(),
		LockDir:       d.Settings.LockDir(),
		StopGrace:     d.Settings.Mount.StopGrace,
		FS:            d.FS,
	})
}
