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

package storage

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// SchemaInfoModel represents the schema_info table
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// RunModel represents the runs table
type RunModel struct {
	bun.BaseModel `bun:"table:runs"`

	ID            string `bun:"id,pk"`
	StartedAt     int64  `bun:"started_at,notnull"` // Unix timestamp
	DurationMs    int64  `bun:"duration_ms,notnull"`
	SharedPath    string `bun:"shared_path,notnull"`
	Helper        string `bun:"helper,notnull"`
	Passed        int    `bun:"passed,notnull"`
	Failed        int    `bun:"failed,notnull"`
	Errored       int    `bun:"errored,notnull"`
	Pending       int    `bun:"pending,notnull"`
	Leaked        string `bun:"leaked,notnull"` // newline separated
	TeardownError string `bun:"teardown_error,notnull"`
}

// ResultModel represents the results table
type ResultModel struct {
	bun.BaseModel `bun:"table:results"`

	RunID      string `bun:"run_id,pk"`
	Seq        int    `bun:"seq,pk"`
	Probe      string `bun:"probe,notnull"`
	Status     string `bun:"status,notnull"`
	Error      string `bun:"error,notnull"`
	DurationMs int64  `bun:"duration_ms,notnull"`
}

// Run is one recorded probe run.
type Run struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	SharedPath    string
	Helper        string
	Passed        int
	Failed        int
	Errored       int
	Pending       int
	Leaked        []string
	TeardownError string
	Results       []Result
}

// Result is one probe outcome within a run.
type Result struct {
	Probe    string
	Status   string
	Error    string
	Duration time.Duration
}

// OK reports whether nothing failed, errored or leaked.
func (r *Run) OK() bool {
	return r.Failed == 0 && r.Errored == 0 && len(r.Leaked) == 0 && r.TeardownError == ""
}

func runModelFromRun(r *Run) *RunModel {
	return &RunModel{
		ID:            r.ID,
		StartedAt:     r.StartedAt.Unix(),
		DurationMs:    r.Duration.Milliseconds(),
		SharedPath:    r.SharedPath,
		Helper:        r.Helper,
		Passed:        r.Passed,
		Failed:        r.Failed,
		Errored:       r.Errored,
		Pending:       r.Pending,
		Leaked:        strings.Join(r.Leaked, "\n"),
		TeardownError: r.TeardownError,
	}
}

func (m *RunModel) toRun() *Run {
	var leaked []string
	if m.Leaked != "" {
		leaked = strings.Split(m.Leaked, "\n")
	}
	return &Run{
		ID:            m.ID,
		StartedAt:     time.Unix(m.StartedAt, 0),
		Duration:      time.Duration(m.DurationMs) * time.Millisecond,
		SharedPath:    m.SharedPath,
		Helper:        m.Helper,
		Passed:        m.Passed,
		Failed:        m.Failed,
		Errored:       m.Errored,
		Pending:       m.Pending,
		Leaked:        leaked,
		TeardownError: m.TeardownError,
	}
}

func (m *ResultModel) toResult() Result {
	return Result{
		Probe:    m.Probe,
		Status:   m.Status,
		Error:    m.Error,
		Duration: time.Duration(m.DurationMs) * time.Millisecond,
	}
}
