//go:build !linux

package relocate

import (
	"errors"
	"syscall"
)

func renameNoReplace(string, string) error {
	return errNoReplaceUnsupported
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
