//go:build !windows

package probe

import (
	"fmt"
	"io"

	"mountcheck/internal/common"
	"mountcheck/internal/session"
)

// There is no delete-on-close open flag here; create_delete_on_close is
// reported as pending.
const deleteOnCloseSupported = false

func openDeleteOnClose(_ *session.Session, name string) (io.WriteCloser, error) {
	return nil, fmt.Errorf("%w: delete-on-close open of %s", common.ErrUnsupported, name)
}
