package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// Page describes the run of pages containing a queried address. Base and Size
// cover the whole run sharing the same state, not just the queried page.
type Page struct {
	Base     ProcessMemoryAddress
	Size     ProcessMemorySize
	Readable bool
}

// End returns the first address past the page run.
func (p Page) End() ProcessMemoryAddress {
	return p.Base + ProcessMemoryAddress(p.Size)
}

// Contains reports whether addr lies inside the page run.
func (p Page) Contains(addr ProcessMemoryAddress) bool {
	return addr >= p.Base && addr < p.End()
}

// Region is a contiguous address range to scan.
type Region struct {
	Base ProcessMemoryAddress
	Size ProcessMemorySize
}

func (r Region) End() ProcessMemoryAddress {
	return r.Base + ProcessMemoryAddress(r.Size)
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%X-0x%X)", uint64(r.Base), uint64(r.End()))
}

// Module is a named image mapped into a process.
type Module struct {
	Name string
	Path string
	Base ProcessMemoryAddress
	Size ProcessMemorySize
}

// Region returns the address range spanned by the module.
func (m Module) Region() Region {
	return Region{Base: m.Base, Size: m.Size}
}
