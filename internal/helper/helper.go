// Package helper drives the external mount helper binary (for example
// ceph-dokan) through its map and unmap commands.
package helper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"mountcheck/internal/common"
	"mountcheck/internal/util"
)

// DefaultUnmapTimeout bounds a single unmap invocation.
const DefaultUnmapTimeout = 30 * time.Second

// MapOptions describes one mapping of the remote volume.
type MapOptions struct {
	MountPath string
	ReadOnly  bool
	Label     string // --win-vol-name, omitted when empty
	Serial    uint32 // --win-vol-serial, omitted when zero
}

// MapArgs builds the argument list for the map command.
func MapArgs(opts MapOptions) []string {
	args := []string{"map", "-l", opts.MountPath}
	if opts.ReadOnly {
		args = append(args, "--read-only")
	}
	if opts.Label != "" {
		args = append(args, "--win-vol-name", opts.Label)
	}
	if opts.Serial != 0 {
		args = append(args, "--win-vol-serial", strconv.FormatUint(uint64(opts.Serial), 10))
	}
	return args
}

// UnmapArgs builds the argument list for the unmap command.
func UnmapArgs(mountPath string) []string {
	return []string{"unmap", "-l", mountPath}
}

// Helper runs the mount helper binary.
type Helper struct {
	Binary       string
	BaseArgs     []string // Prepended to every invocation
	Env          []string
	UnmapTimeout time.Duration

	proc *util.Controller
}

// New creates a Helper for binary.
func New(binary string, baseArgs, env []string, unmapTimeout time.Duration) *Helper {
	if unmapTimeout == 0 {
		unmapTimeout = DefaultUnmapTimeout
	}
	return &Helper{
		Binary:       binary,
		BaseArgs:     baseArgs,
		Env:          env,
		UnmapTimeout: unmapTimeout,
		proc:         &util.Controller{Env: env},
	}
}

func (h *Helper) args(cmdArgs []string) []string {
	return append(append([]string(nil), h.BaseArgs...), cmdArgs...)
}

// Map spawns a long-lived helper process serving opts.MountPath. The process
// stays alive until Unmap is issued and must then be joined.
func (h *Helper) Map(opts MapOptions) (util.Process, error) {
	args := h.args(MapArgs(opts))
	log.Infof("[HELPER] %s %s", h.Binary, strings.Join(args, " "))
	rec, err := h.proc.Spawn(h.Binary, args)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Unmap asks the helper to release mountPath. Success means exit code zero
// and no output at all; anything else wraps common.ErrUnmapFailure.
func (h *Helper) Unmap(ctx context.Context, mountPath string) error {
	args := h.args(UnmapArgs(mountPath))
	log.Infof("[HELPER] %s %s", h.Binary, strings.Join(args, " "))

	res := util.RunCommand(ctx, h.UnmapTimeout, h.Env, h.Binary, args...)
	if res.ExitCode != 0 || res.Combined != "" {
		return fmt.Errorf("%w: %s (exit %d): %q", common.ErrUnmapFailure, mountPath, res.ExitCode, res.Combined)
	}
	log.Infof("[HELPER] Unmounted: %s", mountPath)
	return nil
}
