package integration

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func TestProbesList(t *testing.T) {
	t.Parallel()
	env := NewTestEnv(t)
	g := env.g

	result := env.RunCLI("probes")
	g.Expect(result.ExitCode).To(Equal(0), result.Combined)
	for _, name := range []string{
		"round_trip_io", "remount_persistence", "read_only_enforcement",
		"recursive_enumeration", "cross_directory_move", "volume_identity",
		"free_space", "create_delete_on_close", "mount_unmount", "flush",
	} {
		g.Expect(result.Stdout).To(ContainSubstring(name))
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()
	env := NewTestEnv(t)
	g := env.g

	result := env.RunCLI("config", "show")
	g.Expect(result.ExitCode).To(Equal(0), result.Combined)
	g.Expect(result.Stdout).To(ContainSubstring("binary: ceph-dokan"))
	g.Expect(result.Stdout).To(ContainSubstring("label: TestCeph"))

	result = env.RunCLI("config", "path")
	g.Expect(result.ExitCode).To(Equal(0), result.Combined)
	g.Expect(result.Stdout).To(ContainSubstring(env.SettingsPath))
	g.Expect(result.Stdout).To(ContainSubstring(env.StateDir))

	fresh := filepath.Join(env.TestDir, "fresh", "settings.yaml")
	result = env.RunCLI("--config", fresh, "config", "init")
	g.Expect(result.ExitCode).To(Equal(0), result.Combined)
	g.Expect(result.Stdout).To(ContainSubstring("Wrote default settings"))
	g.Expect(fresh).To(BeAnExistingFile())

	result = env.RunCLI("--config", fresh, "config", "init")
	g.Expect(result.ExitCode).To(Equal(0), result.Combined)
	g.Expect(result.Stdout).To(ContainSubstring("already exist"))
}

func TestInvalidSettingsAreRejected(t *testing.T) {
	t.Parallel()
	env := NewTestEnv(t)
	g := env.g

	g.Expect(os.WriteFile(env.SettingsPath, []byte("log_level: loud\n"), 0600)).To(Succeed())
	result := env.RunCLI("probes")
	g.Expect(result.ExitCode).NotTo(Equal(0))
	g.Expect(result.Stderr).To(ContainSubstring("unknown log_level"))
}

func TestRunWithMissingHelper(t *testing.T) {
	t.Parallel()
	env := NewTestEnv(t)
	g := env.g

	env.Settings.Helper.Binary = filepath.Join(env.TestDir, "no-such-helper")
	env.SaveSettings()

	result := env.RunCLI("run", "free_space")
	g.Expect(result.ExitCode).To(Equal(1), result.Combined)
	g.Expect(result.Stderr).To(ContainSubstring("mount helper could not be launched"))

	// Nothing was recorded for a run that never started.
	result = env.RunCLI("history")
	g.Expect(result.ExitCode).To(Equal(0), result.Combined)
	g.Expect(result.Stdout).To(ContainSubstring("No recorded runs"))
}

func TestRunRejectsUnknownProbe(t *testing.T) {
	t.Parallel()
	env := NewTestEnv(t)

	result := env.RunCLI("run", "no_such_probe")
	env.g.Expect(result.ExitCode).To(Equal(1))
	env.g.Expect(result.Stderr).To(ContainSubstring("unknown probe(s): no_such_probe"))
}

func TestMountCheckOnPlainDirectory(t *testing.T) {
	t.Parallel()
	env := NewTestEnv(t)

	result := env.RunCLI("mount", "check", env.TestDir)
	env.g.Expect(result.ExitCode).NotTo(Equal(0))
	env.g.Expect(result.Stdout).To(ContainSubstring("not mounted"))

	result = env.RunCLI("mount", "check", "-q", filepath.Join(env.TestDir, "missing"))
	env.g.Expect(result.ExitCode).NotTo(Equal(0))
	env.g.Expect(result.Stdout).To(BeEmpty())
}

func TestHistoryEmptyFormats(t *testing.T) {
	t.Parallel()
	env := NewTestEnv(t)
	g := env.g

	result := env.RunCLI("history", "-o", "json")
	g.Expect(result.ExitCode).To(Equal(0), result.Combined)
	g.Expect(result.Stdout).To(ContainSubstring("[]"))

	result = env.RunCLI("history", "show", "missing")
	g.Expect(result.ExitCode).To(Equal(1))
	g.Expect(result.Stderr).To(ContainSubstring("run not found"))

	result = env.RunCLI("history", "-o", "xml")
	g.Expect(result.ExitCode).To(Equal(1))
}

func TestMountCleanup(t *testing.T) {
	t.Parallel()
	env := NewTestEnv(t)
	g := env.g

	result := env.RunCLI("mount", "cleanup")
	g.Expect(result.ExitCode).To(Equal(0), result.Combined)
	g.Expect(result.Stdout).To(ContainSubstring("No stale mount paths"))

	stale := filepath.Join(env.Settings.Mount.EphemeralRoot, "test_mount_stale")
	g.Expect(os.MkdirAll(stale, 0755)).To(Succeed())

	result = env.RunCLI("mount", "cleanup")
	g.Expect(result.ExitCode).To(Equal(0), result.Combined)
	g.Expect(result.Stdout).To(ContainSubstring("Removed 1 stale mount path(s)"))
	g.Expect(stale).NotTo(BeADirectory())
}
