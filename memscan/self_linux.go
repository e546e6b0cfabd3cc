//go:build linux

package memscan

import "sigscan/process_linux"

func openSelf() (Target, error) {
	return process_linux.Self()
}
