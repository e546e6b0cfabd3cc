// Package process describes the processes, modules and memory that the
// scanners read from. Platform code lives in process_linux, process_windows
// and process_blob.
package process

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrModuleNotFound is returned when a named module is not loaded in the process.
	ErrModuleNotFound = errors.New("module not found")
)

// ModuleError reports a failure to resolve a module to an address range.
type ModuleError struct {
	Name string
	Err  error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("resolve module %q: %v", e.Name, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}
