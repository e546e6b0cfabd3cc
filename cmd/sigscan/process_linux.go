//go:build linux

package main

import (
	"sigscan/process"
	"sigscan/process_linux"
)

func openProcess(pid process.ProcessID) (process.Process, error) {
	proc, err := process_linux.NewWithPID(pid)
	if err != nil {
		return nil, err
	}
	return proc, nil
}
