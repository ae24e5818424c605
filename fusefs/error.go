package fusefs

import (
	"bazil.org/fuse"

	"github.com/msg555/vericas/unix"
)

type FuseError struct {
	source error
	errno  unix.Errno
}

func (err FuseError) Error() string {
	return err.source.Error()
}

func (err FuseError) Errno() fuse.Errno {
	return fuse.Errno(err.errno)
}
