//go:build windows

package volume

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// volumeRoot returns root with the trailing separator the volume APIs require.
func volumeRoot(root string) string {
	if !strings.HasSuffix(root, `\`) {
		root += `\`
	}
	return root
}

// Identity reports GetVolumeInformation data for root.
func (System) Identity(root string) (Identity, error) {
	rootPtr, err := windows.UTF16PtrFromString(volumeRoot(root))
	if err != nil {
		return Identity{}, err
	}

	var (
		label   [windows.MAX_PATH + 1]uint16
		fsName  [windows.MAX_PATH + 1]uint16
		serial  uint32
		maxComp uint32
		flags   uint32
	)
	err = windows.GetVolumeInformation(rootPtr,
		&label[0], uint32(len(label)),
		&serial, &maxComp, &flags,
		&fsName[0], uint32(len(fsName)))
	if err != nil {
		return Identity{}, fmt.Errorf("GetVolumeInformation %s: %w", root, err)
	}

	return Identity{
		Label:              windows.UTF16ToString(label[:]),
		FileSystemName:     windows.UTF16ToString(fsName[:]),
		SerialNumber:       uint64(serial),
		MaxComponentLength: maxComp,
		Flags:              uint64(flags),
	}, nil
}

// Space reports GetDiskFreeSpaceEx data for root.
func (System) Space(root string) (Space, error) {
	rootPtr, err := windows.UTF16PtrFromString(volumeRoot(root))
	if err != nil {
		return Space{}, err
	}
	var s Space
	if err := windows.GetDiskFreeSpaceEx(rootPtr, &s.Available, &s.Capacity, &s.Free); err != nil {
		return Space{}, fmt.Errorf("GetDiskFreeSpaceEx %s: %w", root, err)
	}
	return s, nil
}

// Accessible reports nil once root can be opened for reading. The runtime
// opens with read sharing and backup semantics, so drive roots and
// directories both work.
func Accessible(root string) error {
	f, err := os.Open(root)
	if err != nil {
		return err
	}
	return f.Close()
}
