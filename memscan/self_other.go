//go:build !linux && !windows

package memscan

import (
	"errors"
	"runtime"
)

func openSelf() (Target, error) {
	return nil, errors.New("in-process scanning is not supported on " + runtime.GOOS)
}
