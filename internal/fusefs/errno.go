package fusefs

import (
	"errors"
	"syscall"

	"github.com/ianzepp/monk-ftp/internal/ftpc"
)

// errnoOf maps the bridge error taxonomy onto kernel error codes. Nothing
// protocol-specific survives past this point.
func errnoOf(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ftpc.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, ftpc.ErrAccessDenied):
		return syscall.EACCES
	case errors.Is(err, ftpc.ErrConnection):
		return syscall.ECONNREFUSED
	default:
		return syscall.EIO
	}
}
