//go:build unix

package fsx

import (
	"errors"
	"syscall"
)

// isEXDEV sees through *os.LinkError, which unwraps to the errno.
func isEXDEV(err error) bool { return errors.Is(err, syscall.EXDEV) }
