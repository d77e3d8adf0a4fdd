package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"mountcheck/internal/common"
)

// CleanupStalePaths removes empty directories under the ephemeral root that
// were left behind by crashed or interrupted runs. Paths whose lock is held
// by a live session are skipped, as are non-empty directories, which are
// either still mounted or were not created by FreshPath.
func (o *Orchestrator) CleanupStalePaths() ([]string, error) {
	entries, err := os.ReadDir(o.cfg.EphemeralRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ephemeral root: %w", err)
	}

	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(o.cfg.EphemeralRoot, entry.Name())

		if o.pathLocked(path) {
			log.Debugf("[SESSION] Skipping %s: in use", path)
			continue
		}

		children, err := os.ReadDir(path)
		if err != nil || len(children) > 0 {
			continue
		}

		if err := os.Remove(path); err != nil {
			log.Warnf("[SESSION] Failed to remove stale mount path %s: %v", path, err)
			continue
		}
		removed = append(removed, path)
	}

	if len(removed) > 0 {
		log.Infof("[SESSION] Removed %d stale mount path(s)", len(removed))
	}
	return removed, nil
}

// pathLocked reports whether another session holds the lock for path.
func (o *Orchestrator) pathLocked(path string) bool {
	if o.cfg.LockDir == "" {
		return false
	}
	lockPath := filepath.Join(o.cfg.LockDir, common.MountKey(path)+".lock")
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return false
	}
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return true
	}
	if !locked {
		return true
	}
	_ = fl.Unlock()
	return false
}
