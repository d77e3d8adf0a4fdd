package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountcheck/internal/util"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, "ceph-dokan", s.Helper.Binary)
	assert.Equal(t, 30*time.Second, s.Helper.UnmapTimeout)
	assert.Equal(t, `X:\`, s.Mount.SharedPath)
	assert.Equal(t, util.DefaultPollConfig(), s.PollConfig())
	assert.Equal(t, "TestCeph", s.Expect.Label)
	assert.Equal(t, uint32(1234567890), s.Expect.Serial)
	assert.Equal(t, uint32(256), s.Expect.MaxComponentLength)
	assert.Equal(t, "no such device", s.Expect.NoDevicePhrase)
	assert.Equal(t, []string{"test_*", "ro_success_*", "ro_fail_*"}, s.ArtifactPatterns)
	assert.Equal(t, "info", s.LogLevel)
	require.NoError(t, s.Validate())
}

func TestStateDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MOUNTCHECK_STATE_DIR", dir)
	t.Setenv("MOUNTCHECK_CONFIG", "")

	assert.Equal(t, dir, StateDir())
	assert.Equal(t, filepath.Join(dir, "settings.yaml"), SettingsPath())

	s := Default()
	assert.Equal(t, filepath.Join(dir, "mnt"), s.EphemeralRoot())
	assert.Equal(t, filepath.Join(dir, "locks"), s.LockDir())
	assert.Equal(t, filepath.Join(dir, "history.db"), s.HistoryPath())

	s.Mount.EphemeralRoot = "/mnt/scratch"
	s.HistoryDB = "/var/lib/history.db"
	assert.Equal(t, "/mnt/scratch", s.EphemeralRoot())
	assert.Equal(t, "/var/lib/history.db", s.HistoryPath())
}

func TestSettingsPathFromEnv(t *testing.T) {
	t.Setenv("MOUNTCHECK_CONFIG", "/etc/mountcheck.yaml")
	assert.Equal(t, "/etc/mountcheck.yaml", SettingsPath())
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("MOUNTCHECK_STATE_DIR", t.TempDir())
	t.Setenv("MOUNTCHECK_CONFIG", "")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
helper:
  binary: /usr/bin/ceph-dokan
  base_args: [--id, admin]
mount:
  shared_path: 'Z:\'
poll:
  attempts: 3
  interval: 250ms
expect:
  label: Other
`), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/ceph-dokan", s.Helper.Binary)
	assert.Equal(t, []string{"--id", "admin"}, s.Helper.BaseArgs)
	assert.Equal(t, 30*time.Second, s.Helper.UnmapTimeout)
	assert.Equal(t, `Z:\`, s.Mount.SharedPath)
	assert.Equal(t, util.PollConfig{Attempts: 3, Interval: 250 * time.Millisecond}, s.PollConfig())

	exp := s.Expectations()
	assert.Equal(t, "Other", exp.Volume.Label)
	assert.Equal(t, uint64(1234567890), exp.Volume.Serial)
	assert.Equal(t, uint32(256), exp.Volume.MaxComponentLength)
	assert.Equal(t, "no such device", exp.NoDevicePhrase)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "helper: [\n"},
		{"empty binary", "helper:\n  binary: ''\n"},
		{"empty shared path", "mount:\n  shared_path: ''\n"},
		{"bad log level", "log_level: loud\n"},
		{"bad env", "helper:\n  env: [NOEQUALS]\n"},
		{"negative grace", "mount:\n  stop_grace: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s := Default()
	s.Helper.Env = []string{"CEPH_ARGS=--id admin"}
	s.Mount.StopGrace = 5 * time.Second
	require.NoError(t, Save(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# mountcheck settings")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "settings.yaml")

	written, err := Init(path)
	require.NoError(t, err)
	assert.True(t, written)

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0600))
	written, err = Init(path)
	require.NoError(t, err)
	assert.False(t, written)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})

	c, err := ConfigureLogging("debug", "")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	file := filepath.Join(t.TempDir(), "mountcheck.log")
	c, err = ConfigureLogging("warn", file)
	require.NoError(t, err)
	log.Warn("[TEST] hello")
	require.NoError(t, c.Close())
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[TEST] hello")

	_, err = ConfigureLogging("off", "")
	require.NoError(t, err)
}

func TestTruncateLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0600))

	require.NoError(t, truncateLogFile(path, 200))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.Size())

	require.NoError(t, truncateLogFile(path, 50))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	assert.NoError(t, truncateLogFile(filepath.Join(t.TempDir(), "missing.log"), 1))
}
