package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"sigscan/process"

	ps "github.com/shirou/gopsutil/v4/process"
)

// resolvePID returns pid, or looks up the single process called name.
func resolvePID(ctx context.Context, pid int, name string) (process.ProcessID, error) {
	if pid != 0 {
		return process.ProcessID(pid), nil
	}
	if name == "" {
		return 0, fmt.Errorf("--pid or --name is required")
	}

	procs, err := ps.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing processes: %w", err)
	}

	var found []int32
	for _, p := range procs {
		procName, err := p.NameWithContext(ctx)
		if err != nil {
			continue // exited or not accessible
		}
		if processNameMatches(name, procName) {
			found = append(found, p.Pid)
		}
	}

	switch len(found) {
	case 0:
		return 0, fmt.Errorf("no process named %q", name)
	case 1:
		return process.ProcessID(found[0]), nil
	}
	return 0, fmt.Errorf("%d processes named %q (pids %v), use --pid", len(found), name, found)
}

// processNameMatches compares case-insensitively and ignores a trailing
// ".exe" so that "game" finds "Game.exe".
func processNameMatches(want, have string) bool {
	trim := func(s string) string {
		s = filepath.Base(s)
		return strings.TrimSuffix(strings.ToLower(s), ".exe")
	}
	return trim(want) == trim(have)
}
