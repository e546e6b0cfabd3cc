//go:build linux

package memory_map

import (
	"fmt"
	"os"
)

// LinuxMemoryMap reads memory maps from procfs.
type LinuxMemoryMap struct{}

// NewLinuxMemoryMap creates a new LinuxMemoryMap instance
func NewLinuxMemoryMap() *LinuxMemoryMap {
	return &LinuxMemoryMap{}
}

// ReadMemoryMap reads and parses the memory map for a process from /proc/[pid]/maps
func (l *LinuxMemoryMap) ReadMemoryMap(pid int) ([]MemoryMapItem, error) {
	return readMapsFile(fmt.Sprintf("/proc/%d/maps", pid))
}

// ReadSelfMemoryMap reads the memory map of the calling process.
func (l *LinuxMemoryMap) ReadSelfMemoryMap() ([]MemoryMapItem, error) {
	return readMapsFile("/proc/self/maps")
}

func readMapsFile(name string) ([]MemoryMapItem, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseMemoryMap(file)
}
