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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mountcheck/internal/cli/output"
	"mountcheck/internal/helper"
	"mountcheck/internal/session"
	"mountcheck/internal/volume"
)

var mountCmd = &cobra.Command{
	Use:   "mount <mount-path>",
	Short: "Map a path and hold it until interrupted",
	Long: `Maps the given path with the configured helper, waits until it is
accessible, prints its volume identity and keeps it mounted until Ctrl-C.

Examples:
  mountcheck mount 'Y:\'
  mountcheck mount 'Y:\' --read-only
  mountcheck mount 'Y:\' --label TestCeph --serial 1234567890`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

var mountCheckCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Check if paths are mounted",
	Long: `Check if one or more paths are currently accessible mounts.

Returns exit code 0 if ALL paths are mounted, non-zero otherwise.
Use -q/--quiet to suppress output (useful in scripts).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMountCheck,
}

var mountUnmapCmd = &cobra.Command{
	Use:   "unmap <mount-path>",
	Short: "Unmap a path with the configured helper",
	Long: `Runs the helper's unmap command for a path left mounted by an
interrupted run. Succeeds only if the helper exits 0 without output.`,
	Args: cobra.ExactArgs(1),
	RunE: runMountUnmap,
}

var mountCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove mount paths left behind by interrupted runs",
	Long: `Removes empty directories under the ephemeral mount root that no
live session holds. Directories that are still mounted are left alone; use
"mountcheck mount unmap" on them first.`,
	Args: cobra.NoArgs,
	RunE: runMountCleanup,
}

var (
	mountReadOnly   bool
	mountLabel      string
	mountSerial     uint32
	mountCheckQuiet bool
)

func init() {
	rootCmd.AddCommand(mountCmd)
	mountCmd.AddCommand(mountCheckCmd)
	mountCmd.AddCommand(mountUnmapCmd)
	mountCmd.AddCommand(mountCleanupCmd)
	mountCmd.Flags().BoolVar(&mountReadOnly, "read-only", false, "Map read-only")
	mountCmd.Flags().StringVar(&mountLabel, "label", "", "Volume label")
	mountCmd.Flags().Uint32Var(&mountSerial, "serial", 0, "Volume serial number")
	mountCheckCmd.Flags().BoolVarP(&mountCheckQuiet, "quiet", "q", false, "Suppress output, only set exit code")
}

func runMount(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := systemDeps(settings)
	opts := session.Options{
		MountPath: args[0],
		Label:     mountLabel,
		Serial:    mountSerial,
	}
	if mountReadOnly {
		opts.Mode = session.ReadOnly
	}

	sess, err := d.orchestrator().Open(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mounted %s (%s)\n", sess.Root(), sess.Mode())
	if id, err := d.Volume.Identity(sess.Root()); err == nil {
		_ = output.SimpleTable(out, [][2]string{
			{"Label", id.Label},
			{"File system", id.FileSystemName},
			{"Serial", fmt.Sprint(id.SerialNumber)},
			{"Max component length", fmt.Sprint(id.MaxComponentLength)},
		})
	}
	fmt.Fprintln(out, "Press Ctrl-C to unmap")

	<-ctx.Done()
	// The signal context is done; unmap with a fresh one.
	if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	fmt.Fprintf(out, "Unmounted %s\n", sess.Root())
	return nil
}

func runMountCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	allMounted := true
	for _, p := range args {
		err := volume.Accessible(p)
		if err != nil {
			allMounted = false
		}
		if mountCheckQuiet {
			continue
		}
		if err != nil {
			fmt.Fprintf(out, "%s: not mounted (%v)\n", p, err)
		} else {
			fmt.Fprintf(out, "%s: mounted\n", p)
		}
	}
	if !allMounted {
		cmd.SilenceErrors = mountCheckQuiet
		return fmt.Errorf("not all paths are mounted")
	}
	return nil
}

func runMountUnmap(cmd *cobra.Command, args []string) error {
	s := settings
	h := helper.New(s.Helper.Binary, s.Helper.BaseArgs, s.Helper.Env, s.Helper.UnmapTimeout)
	if err := h.Unmap(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unmapped %s\n", args[0])
	return nil
}

func runMountCleanup(cmd *cobra.Command, args []string) error {
	removed, err := systemDeps(settings).orchestrator().CleanupStalePaths()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(removed) == 0 {
		fmt.Fprintln(out, "No stale mount paths")
		return nil
	}
	fmt.Fprintf(out, "Removed %d stale mount path(s):\n", len(removed))
	for _, p := range removed {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	return nil
}
