//go:build !linux && !windows

package volume

import (
	"fmt"
	"os"

	"mountcheck/internal/common"
)

func (System) Identity(root string) (Identity, error) {
	return Identity{}, fmt.Errorf("volume identity for %s: %w", root, common.ErrUnsupported)
}

func (System) Space(root string) (Space, error) {
	return Space{}, fmt.Errorf("volume space for %s: %w", root, common.ErrUnsupported)
}

// Accessible reports nil once root can be opened for reading.
func Accessible(root string) error {
	f, err := os.Open(root)
	if err != nil {
		return err
	}
	return f.Close()
}
