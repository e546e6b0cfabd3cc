//go:build windows

package memscan

import "sigscan/process_windows"

func openSelf() (Target, error) {
	return process_windows.Self()
}
