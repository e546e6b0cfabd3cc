package memory_map

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 `json:"address"` // The starting address of the memory region
	Size    uint   `json:"size"`    // The size of the memory region in bytes
	Perms   string `json:"perms"`   // Permissions (e.g., "r-xp" for read, execute, private)
	Path    string `json:"path,omitempty"`
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return IsReadablePerms(mmItem.Perms)
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return IsWritablePerms(mmItem.Perms)
}

func IsReadablePerms(perms string) bool {
	return len(perms) > 0 && perms[0] == 'r'
}

func IsWritablePerms(perms string) bool {
	return len(perms) > 1 && perms[1] == 'w'
}

func IsExecutablePerms(perms string) bool {
	return len(perms) > 2 && perms[2] == 'x'
}

// Sort orders the map by address, which FindRegion and PageAt rely on.
func Sort(mm []MemoryMapItem) {
	sort.Slice(mm, func(i, j int) bool {
		return mm[i].Address < mm[j].Address
	})
}

// FindRegion returns the region containing addr. The map must be sorted.
func FindRegion(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// IsValidAddress checks if an address is within a valid, readable memory region
func IsValidAddress(addr uint64, memoryMap []MemoryMapItem) bool {
	item := FindRegion(addr, memoryMap)
	return item != nil && item.IsReadable()
}

// PageAt returns the span around addr that shares one state: either the
// mapping containing addr or the unmapped gap between two mappings.
// Adjacent mappings are not merged. The map must be sorted.
func PageAt(addr uint64, memoryMap []MemoryMapItem) (start, end uint64, readable bool) {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		item := memoryMap[i]
		return item.Address, item.End(), item.IsReadable()
	}

	// gap
	if i > 0 {
		start = memoryMap[i-1].End()
	}
	end = ^uint64(0)
	if i < len(memoryMap) {
		end = memoryMap[i].Address
	}
	return start, end, false
}

// FindModule returns the union of the mappings backed by a file whose base
// name equals name. Windows style names are compared case-insensitively.
func FindModule(name string, memoryMap []MemoryMapItem) (MemoryMapItem, bool) {
	var module MemoryMapItem
	found := false
	for _, item := range memoryMap {
		if item.Path == "" || !moduleNameMatches(name, item.Path) {
			continue
		}
		if !found {
			module = MemoryMapItem{Address: item.Address, Size: item.Size, Perms: item.Perms, Path: item.Path}
			found = true
			continue
		}
		if item.Address < module.Address {
			module.Size += uint(module.Address - item.Address)
			module.Address = item.Address
		}
		if item.End() > module.End() {
			module.Size = uint(item.End() - module.Address)
		}
	}
	return module, found
}

func moduleNameMatches(name, path string) bool {
	if i := strings.LastIndex(path, `\`); i >= 0 {
		return strings.EqualFold(path[i+1:], name)
	}
	return filepath.Base(path) == name
}
