//go:build !windows

package probe

import "syscall"

// noDeviceErrors are the errnos a read-only mount returns for a rejected
// mutation.
var noDeviceErrors = []error{syscall.ENODEV}
