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

// Package probe holds the filesystem behavior scenarios run against a mount.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"mountcheck/internal/common"
	"mountcheck/internal/session"
	"mountcheck/internal/volume"
)

// DefaultNoDevicePhrase is accepted in the message of a failed delete on a
// read-only mount, besides the platform's no-device errnos.
const DefaultNoDevicePhrase = "no such device"

// Sessions opens ephemeral mounts for probes that need their own session.
// *session.Orchestrator satisfies it.
type Sessions interface {
	Open(ctx context.Context, opts session.Options) (*session.Session, error)
	FreshPath(prefix string) (string, error)
	ReleasePath(path string)
}

// Expectations are the values probes assert against.
type Expectations struct {
	Volume         volume.Expectation
	NoDevicePhrase string
}

// Env is everything a probe may touch.
type Env struct {
	Shared   *session.Session
	Sessions Sessions
	Volume   volume.Querier
	Expect   Expectations
}

// Probe is one named scenario.
type Probe struct {
	Name        string
	Description string
	Shared      bool // Runs against the shared session only
	Pending     bool // Placeholder, never run
	Run         func(ctx context.Context, env *Env) error
}

// Status classifies a probe outcome.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

// Result is the outcome of one probe.
type Result struct {
	Name     string
	Status   Status
	Err      error
	Duration time.Duration
}

// Classify maps a probe error to its status. Assertion failures and read-only
// breaches are failures; everything else, such as a mount that never became
// ready, is an error.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusPassed
	case errors.Is(err, common.ErrPending):
		return StatusPending
	case errors.Is(err, common.ErrAssertion), errors.Is(err, common.ErrReadOnlyViolation):
		return StatusFailed
	default:
		return StatusError
	}
}

var registry = []Probe{
	{
		Name:        "round_trip_io",
		Description: "write random bytes, read them back and delete the file",
		Shared:      true,
		Run:         roundTripIO,
	},
	{
		Name:        "remount_persistence",
		Description: "data written through one mount is visible through a later mount",
		Run:         remountPersistence,
	},
	{
		Name:        "read_only_enforcement",
		Description: "a read-only mount rejects creation and deletion",
		Run:         readOnlyEnforcement,
	},
	{
		Name:        "recursive_enumeration",
		Description: "a recursive walk returns every file and directory exactly once",
		Shared:      true,
		Run:         recursiveEnumeration,
	},
	{
		Name:        "cross_directory_move",
		Description: "copy a file to another directory and delete the original",
		Shared:      true,
		Run:         crossDirectoryMove,
	},
	{
		Name:        "volume_identity",
		Description: "label, serial number and max component length match the map options",
		Run:         volumeIdentity,
	},
	{
		Name:        "free_space",
		Description: "capacity, free and available bytes are reported",
		Shared:      true,
		Run:         freeSpace,
	},
	{
		Name:        "create_delete_on_close",
		Description: "a file opened with delete-on-close is gone once closed (Windows only)",
		Shared:      true,
		Pending:     !deleteOnCloseSupported,
		Run:         createDeleteOnClose,
	},
	{
		Name:        "mount_unmount",
		Description: "map a fresh path, wait for it and unmap it cleanly",
		Run:         mountUnmount,
	},
	pending("flush", "flush file buffers"),
	pending("set_end_of_file", "truncate and extend a file"),
	pending("allocation_size", "set the allocation size of a file"),
	pending("file_attributes", "get and set file attributes"),
	pending("file_times", "get and set file times"),
	pending("security_descriptor", "get and set security descriptors"),
	pending("find_files", "list a directory"),
	pending("find_files_with_pattern", "list a directory with a wildcard pattern"),
}

func pending(name, description string) Probe {
	return Probe{
		Name:        name,
		Description: description,
		Pending:     true,
		Run: func(context.Context, *Env) error {
			return fmt.Errorf("%w: %s", common.ErrPending, name)
		},
	}
}

// All returns every registered probe in run order.
func All() []Probe {
	out := make([]Probe, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a probe by name.
func Lookup(name string) (Probe, bool) {
	for _, p := range registry {
		if p.Name == name {
			return p, true
		}
	}
	return Probe{}, false
}

// Select returns the named probes in registry order, or all of them when names
// is empty.
func Select(names []string) ([]Probe, error) {
	if len(names) == 0 {
		return All(), nil
	}
	want := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			unknown = append(unknown, n)
			continue
		}
		want[n] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown probe(s): %s", strings.Join(unknown, ", "))
	}
	var out []Probe
	for _, p := range registry {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Runner executes probes one at a time.
type Runner struct {
	Probes []Probe

	// OnResult, if set, is called after each probe finishes.
	OnResult func(Result)
}

// Run executes every probe against env and returns one result per probe. A
// failing probe never stops the run.
func (r *Runner) Run(ctx context.Context, env *Env) []Result {
	results := make([]Result, 0, len(r.Probes))
	for _, p := range r.Probes {
		res := r.runOne(ctx, env, p)
		results = append(results, res)
		if r.OnResult != nil {
			r.OnResult(res)
		}
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, env *Env, p Probe) Result {
	if p.Pending {
		log.Debugf("[PROBE] %s: pending", p.Name)
		return Result{Name: p.Name, Status: StatusPending}
	}
	if err := ctx.Err(); err != nil {
		return Result{Name: p.Name, Status: StatusError, Err: err}
	}
	if p.Shared && (env.Shared == nil || env.Shared.State() != session.StateMounted) {
		return Result{
			Name:   p.Name,
			Status: StatusError,
			Err:    fmt.Errorf("%w: shared session is not mounted", common.ErrInvalidState),
		}
	}

	log.Infof("[PROBE] Running %s", p.Name)
	start := time.Now()
	err := p.Run(ctx, env)
	res := Result{
		Name:     p.Name,
		Status:   Classify(err),
		Err:      err,
		Duration: time.Since(start),
	}

	switch res.Status {
	case StatusPassed:
		log.Infof("[PROBE] %s passed (%v)", p.Name, res.Duration)
	case StatusFailed:
		log.Warnf("[PROBE] %s failed: %v", p.Name, err)
	default:
		log.Errorf("[PROBE] %s errored: %v", p.Name, err)
	}
	return res
}

// Summary counts results by status.
type Summary struct {
	Passed  int
	Failed  int
	Errored int
	Pending int
}

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusError:
			s.Errored++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// OK reports whether no probe failed or errored.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}
