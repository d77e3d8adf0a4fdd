//go:build windows

package probe

import (
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"

	"mountcheck/internal/session"
)

const deleteOnCloseSupported = true

// openDeleteOnClose creates name with FILE_FLAG_DELETE_ON_CLOSE so the
// filesystem removes it when the last handle is closed.
func openDeleteOnClose(s *session.Session, name string) (io.WriteCloser, error) {
	full := filepath.Join(s.Root(), name)
	p, err := windows.UTF16PtrFromString(full)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.CREATE_NEW,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_DELETE_ON_CLOSE,
		0,
	)
	if err != nil {
		return nil, &os.PathError{Op: "CreateFile", Path: full, Err: err}
	}
	return os.NewFile(uintptr(h), full), nil
}
