// Copyright 2024 LatentFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads mountcheck settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mountcheck/internal/artifacts"
	"mountcheck/internal/probe"
	"mountcheck/internal/util"
	"mountcheck/internal/volume"
)

// StateDir returns the directory holding settings, locks, mount paths and
// the history database. MOUNTCHECK_STATE_DIR overrides ~/.mountcheck.
func StateDir() string {
	if dir := os.Getenv("MOUNTCHECK_STATE_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mountcheck")
}

// SettingsPath returns the settings file path. MOUNTCHECK_CONFIG overrides
// <state dir>/settings.yaml.
func SettingsPath() string {
	if p := os.Getenv("MOUNTCHECK_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(StateDir(), "settings.yaml")
}

// HelperSettings describes the mount helper binary.
type HelperSettings struct {
	Binary       string        `yaml:"binary"`
	BaseArgs     []string      `yaml:"base_args"`
	Env          []string      `yaml:"env"`
	UnmapTimeout time.Duration `yaml:"unmap_timeout"`
}

// MountSettings describes where sessions are mapped.
type MountSettings struct {
	SharedPath    string        `yaml:"shared_path"`
	EphemeralRoot string        `yaml:"ephemeral_root"`
	StopGrace     time.Duration `yaml:"stop_grace"`
}

// PollSettings is the readiness budget.
type PollSettings struct {
	Attempts uint          `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`
}

// ExpectSettings are the values probes assert against.
type ExpectSettings struct {
	Label              string `yaml:"label"`
	Serial             uint32 `yaml:"serial"`
	FileSystemName     string `yaml:"filesystem_name"`
	MaxComponentLength uint32 `yaml:"max_component_length"`
	NoDevicePhrase     string `yaml:"no_device_phrase"`
}

// Settings is the full settings file.
type Settings struct {
	Helper           HelperSettings `yaml:"helper"`
	Mount            MountSettings  `yaml:"mount"`
	Poll             PollSettings   `yaml:"poll"`
	Expect           ExpectSettings `yaml:"expect"`
	ArtifactPatterns []string       `yaml:"artifact_patterns"`
	LogLevel         string         `yaml:"log_level"` // trace, debug, info, warn, off
	LogFile          string         `yaml:"log_file"`
	HistoryDB        string         `yaml:"history_db"`
}

// Default parses the embedded default settings.
func Default() *Settings {
	var s Settings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &s); err != nil {
		panic("failed to parse embedded settings: " + err.Error())
	}
	return &s
}

// Load reads settings from path, or from SettingsPath() when path is empty.
// Fields missing from the file keep their defaults. A missing file at the
// default location yields the defaults; a missing explicit path is an error.
func Load(path string) (*Settings, error) {
	explicit := path != ""
	if !explicit {
		path = SettingsPath()
	}

	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	def := util.DefaultPollConfig()
	if s.Poll.Attempts == 0 {
		s.Poll.Attempts = def.Attempts
	}
	if s.Poll.Interval == 0 {
		s.Poll.Interval = def.Interval
	}
	if s.Expect.MaxComponentLength == 0 {
		s.Expect.MaxComponentLength = volume.DefaultMaxComponentLength
	}
	if s.Expect.NoDevicePhrase == "" {
		s.Expect.NoDevicePhrase = probe.DefaultNoDevicePhrase
	}
	if len(s.ArtifactPatterns) == 0 {
		s.ArtifactPatterns = probe.DefaultArtifactPatterns
	}
}

var validLogLevels = map[string]bool{
	"": true, "none": true, "off": true, "trace": true, "debug": true, "info": true, "warn": true,
}

// Validate reports the first unusable setting.
func (s *Settings) Validate() error {
	switch {
	case s.Helper.Binary == "":
		return errors.New("helper.binary is required")
	case s.Mount.SharedPath == "":
		return errors.New("mount.shared_path is required")
	case s.Helper.UnmapTimeout < 0, s.Mount.StopGrace < 0, s.Poll.Interval < 0:
		return errors.New("durations must not be negative")
	case !validLogLevels[strings.ToLower(s.LogLevel)]:
		return fmt.Errorf("unknown log_level %q", s.LogLevel)
	}
	for _, kv := range s.Helper.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("helper.env entry %q is not KEY=VALUE", kv)
		}
	}
	return nil
}

// EphemeralRoot returns the parent directory for per-probe mount paths.
func (s *Settings) EphemeralRoot() string {
	if s.Mount.EphemeralRoot != "" {
		return s.Mount.EphemeralRoot
	}
	return filepath.Join(StateDir(), "mnt")
}

// LockDir returns the directory for per-mount-path lock files.
func (s *Settings) LockDir() string {
	return filepath.Join(StateDir(), "locks")
}

// HistoryPath returns the run history database path.
func (s *Settings) HistoryPath() string {
	if s.HistoryDB != "" {
		return s.HistoryDB
	}
	return filepath.Join(StateDir(), "history.db")
}

// PollConfig returns the readiness budget.
func (s *Settings) PollConfig() util.PollConfig {
	return util.PollConfig{Attempts: s.Poll.Attempts, Interval: s.Poll.Interval}
}

// Expectations returns what probes assert against.
func (s *Settings) Expectations() probe.Expectations {
	return probe.Expectations{
		Volume: volume.Expectation{
			Label:              s.Expect.Label,
			FileSystemName:     s.Expect.FileSystemName,
			Serial:             uint64(s.Expect.Serial),
			MaxComponentLength: s.Expect.MaxComponentLength,
		},
		NoDevicePhrase: s.Expect.NoDevicePhrase,
	}
}

// Save writes settings to path with the same header as the defaults.
func Save(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	header := []byte("# mountcheck settings\n# See: mountcheck config --help\n\n")
	return os.WriteFile(path, append(header, data...), 0600)
}

// Init writes the default settings file to path unless it already exists.
// It reports whether a file was written.
func Init(path string) (bool, error) {
	if path == "" {
		path = SettingsPath()
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(path, artifacts.GlobalSettings, 0600); err != nil {
		return false, fmt.Errorf("failed to create default settings: %w", err)
	}
	return true, nil
}
