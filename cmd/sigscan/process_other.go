//go:build !linux && !windows

package main

import (
	"fmt"
	"runtime"

	"sigscan/process"
)

func openProcess(pid process.ProcessID) (process.Process, error) {
	return nil, fmt.Errorf("process memory access is not supported on %s", runtime.GOOS)
}
