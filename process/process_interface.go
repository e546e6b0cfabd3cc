package process

import (
	"sigscan/process/memory_map"
)

// Memory is the read side of an address space. Query is the liveness check:
// scanners call it before reading any address and only read ranges it has
// reported readable.
type Memory interface {
	// Query returns the page run containing addr. Addresses outside any
	// mapping come back as an unreadable page covering the gap.
	Query(addr ProcessMemoryAddress) (Page, error)

	// ReadMemory reads size bytes starting at addr
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
}

// ModuleResolver resolves a loaded module by name.
type ModuleResolver interface {
	FindModule(name string) (Module, error)
}

// Process is the interface that defines operations for interacting with a system process
type Process interface {
	Memory
	ModuleResolver

	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr ProcessMemoryAddress) bool

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)
}

// ReadableRegions returns the readable mappings of mm as scan regions, in address order.
func ReadableRegions(mm []memory_map.MemoryMapItem) []Region {
	var regions []Region
	for _, item := range mm {
		if !item.IsReadable() {
			continue
		}
		regions = append(regions, Region{
			Base: ProcessMemoryAddress(item.Address),
			Size: ProcessMemorySize(item.Size),
		})
	}
	return regions
}
