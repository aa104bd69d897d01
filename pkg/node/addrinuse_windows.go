//go:build windows

package node

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isAddrInUse(e error) bool {
	return errors.Is(e, windows.WSAEADDRINUSE)
}
