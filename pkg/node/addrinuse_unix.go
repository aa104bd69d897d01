//go:build !windows

package node

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isAddrInUse(e error) bool {
	return errors.Is(e, unix.EADDRINUSE)
}
