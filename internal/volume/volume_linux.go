//go:build linux

package volume

import (
	"fmt"
	"os"

	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"
)

// Identity reports statfs data for root. Linux has no volume label; the mount
// source from the mount table is reported in its place.
func (System) Identity(root string) (Identity, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return Identity{}, fmt.Errorf("statfs %s: %w", root, err)
	}

	id := Identity{
		SerialNumber:       uint64(uint32(st.Fsid.Val[0])) | uint64(uint32(st.Fsid.Val[1]))<<32,
		MaxComponentLength: uint32(st.Namelen),
		Flags:              uint64(st.Flags),
	}

	mounts, err := mountinfo.GetMounts(mountinfo.SingleEntryFilter(root))
	if err != nil {
		return Identity{}, fmt.Errorf("read mount table for %s: %w", root, err)
	}
	if len(mounts) > 0 {
		id.FileSystemName = mounts[0].FSType
		id.Label = mounts[0].Source
	}
	return id, nil
}

// Space reports capacity for the filesystem containing root.
func (System) Space(root string) (Space, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return Space{}, fmt.Errorf("statfs %s: %w", root, err)
	}
	bsize := uint64(st.Bsize)
	return Space{
		Capacity:  st.Blocks * bsize,
		Free:      st.Bfree * bsize,
		Available: st.Bavail * bsize,
	}, nil
}

// Accessible reports nil once root can be opened for reading and is a mount
// point. The mount directory exists before the helper attaches, so openability
// alone is not enough here.
func Accessible(root string) error {
	f, err := os.Open(root)
	if err != nil {
		return err
	}
	f.Close()

	mounted, err := mountinfo.Mounted(root)
	if err != nil {
		return err
	}
	if !mounted {
		return fmt.Errorf("%s is not a mount point yet", root)
	}
	return nil
}
