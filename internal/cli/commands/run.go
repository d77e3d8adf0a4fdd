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

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mountcheck/internal/cli/output"
	"mountcheck/internal/probe"
	"mountcheck/internal/session"
	"mountcheck/internal/storage"
)

var runCmd = &cobra.Command{
	Use:   "run [probe...]",
	Short: "Mount the shared drive and run probes",
	Long: `Maps the shared mount path, runs the named probes (all of them when none
are given), unmaps, and reports one line per probe.

Probes that need their own mount map a fresh path under the ephemeral root.
A probe that fails or errors never stops the run. Artifacts left at the
shared mount root are reported as leaks.

Exit code is non-zero if any probe failed or errored, anything leaked, or
the shared mount could not be unmapped cleanly.

Examples:
  mountcheck run
  mountcheck run round_trip_io read_only_enforcement
  mountcheck run --no-history`,
	RunE: runRun,
}

var (
	runNoHistory bool
	runKeep      int
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record the run in the history database")
	runCmd.Flags().IntVar(&runKeep, "keep", 0, "Prune history to the most recent N runs after recording (0 keeps all)")
}

func runRun(cmd *cobra.Command, args []string) error {
	probes, err := probe.Select(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	run, err := executeRun(ctx, systemDeps(settings), probes, out)
	if err != nil {
		return err
	}
	printRunSummary(out, run)

	if !runNoHistory {
		if err := recordRun(ctx, run); err != nil {
			log.Warnf("[HISTORY] Failed to record run: %v", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: run not recorded: %v\n", err)
		}
	}

	if !run.OK() {
		return fmt.Errorf("run %s: %d failed, %d errored, %d leaked", run.ID, run.Failed, run.Errored, len(run.Leaked))
	}
	return nil
}

// executeRun mounts the shared session, runs probes, scans for leaked
// artifacts and tears the shared session down. It only fails when the
// shared mount cannot be established.
func executeRun(ctx context.Context, d deps, probes []probe.Probe, out io.Writer) (*storage.Run, error) {
	s := d.Settings
	start := time.Now()

	orch := d.orchestrator()
	suite := session.NewSuite(orch, session.Options{MountPath: s.Mount.SharedPath})
	shared, err := suite.Setup(ctx)
	if err != nil {
		return nil, fmt.Errorf("shared mount %s: %w", s.Mount.SharedPath, err)
	}

	scanner := probe.NewLeakScanner(s.ArtifactPatterns)
	before, snapErr := scanner.Snapshot(shared.FS())
	if snapErr != nil {
		log.Warnf("[PROBE] Leak scan disabled: %v", snapErr)
	}

	runner := &probe.Runner{
		Probes: probes,
		OnResult: func(r probe.Result) {
			fmt.Fprintln(out, formatResultLine(r))
		},
	}
	results := runner.Run(ctx, &probe.Env{
		Shared:   shared,
		Sessions: orch,
		Volume:   d.Volume,
		Expect:   s.Expectations(),
	})

	var leaked []string
	if snapErr == nil {
		leaked, err = scanner.Leaked(shared.FS(), before)
		if err != nil {
			log.Warnf("[PROBE] Leak scan failed: %v", err)
		}
	}

	run := &storage.Run{
		ID:         uuid.NewString(),
		StartedAt:  start,
		SharedPath: s.Mount.SharedPath,
		Helper:     strings.Join(append([]string{s.Helper.Binary}, s.Helper.BaseArgs...), " "),
		Leaked:     leaked,
	}
	if err := suite.Teardown(ctx); err != nil {
		run.TeardownError = err.Error()
	}
	run.Duration = time.Since(start)

	sum := probe.Summarize(results)
	run.Passed, run.Failed, run.Errored, run.Pending = sum.Passed, sum.Failed, sum.Errored, sum.Pending
	for _, r := range results {
		rec := storage.Result{Probe: r.Name, Status: string(r.Status), Duration: r.Duration}
		if r.Err != nil && r.Status != probe.StatusPending {
			rec.Error = r.Err.Error()
		}
		run.Results = append(run.Results, rec)
	}
	return run, nil
}

func formatResultLine(r probe.Result) string {
	label := map[probe.Status]string{
		probe.StatusPassed:  "PASS",
		probe.StatusFailed:  "FAIL",
		probe.StatusError:   "ERROR",
		probe.StatusPending: "PENDING",
	}[r.Status]
	if r.Status == probe.StatusPending {
		return fmt.Sprintf("%-8s %s", label, r.Name)
	}
	line := fmt.Sprintf("%-8s %s (%s)", label, r.Name, r.Duration.Round(time.Millisecond))
	if r.Err != nil {
		line += ": " + r.Err.Error()
	}
	return line
}

func printRunSummary(w io.Writer, run *storage.Run) {
	fmt.Fprintln(w)
	pairs := [][2]string{
		{"Passed", fmt.Sprint(run.Passed)},
		{"Failed", fmt.Sprint(run.Failed)},
		{"Errored", fmt.Sprint(run.Errored)},
		{"Pending", fmt.Sprint(run.Pending)},
		{"Duration", run.Duration.Round(time.Millisecond).String()},
	}
	if len(run.Leaked) > 0 {
		pairs = append(pairs, [2]string{"Leaked", strings.Join(run.Leaked, ", ")})
	}
	if run.TeardownError != "" {
		pairs = append(pairs, [2]string{"Teardown", run.TeardownError})
	}
	_ = output.SimpleTable(w, pairs)
}

func recordRun(ctx context.Context, run *storage.Run) error {
	h, err := storage.Open(settings.HistoryPath())
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.RecordRun(ctx, run); err != nil {
		return err
	}
	if runKeep > 0 {
		if _, err := h.Prune(ctx, runKeep); err != nil {
			return err
		}
	}
	return nil
}
