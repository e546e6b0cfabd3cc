//go:build windows

package main

import (
	"sigscan/process"
	"sigscan/process_windows"
)

func openProcess(pid process.ProcessID) (process.Process, error) {
	proc, err := process_windows.NewWithPID(pid)
	if err != nil {
		return nil, err
	}
	return proc, nil
}
