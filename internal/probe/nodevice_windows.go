//go:build windows

package probe

import "golang.org/x/sys/windows"

// noDeviceErrors are the Win32 errors a read-only mount returns for a
// rejected mutation. The driver's ENODEV surfaces as one of these, and the
// message text is the localized system string, never the errno name.
var noDeviceErrors = []error{
	windows.ERROR_WRITE_PROTECT,
	windows.ERROR_NOT_READY,
	windows.ERROR_BAD_UNIT,
	windows.ERROR_GEN_FAILURE,
	windows.ERROR_DEV_NOT_EXIST,
	windows.ERROR_NO_SUCH_DEVICE,
}
