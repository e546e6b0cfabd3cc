//go:build windows

package memory_map

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// ReadMemoryMapHandle walks the address space behind an open process handle.
// Free regions are left out; reserved regions are kept with "---p" perms.
func ReadMemoryMapHandle(handle windows.Handle) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	var mbi windows.MemoryBasicInformation
	address := uintptr(0)

	for {
		if err := windows.VirtualQueryEx(handle, address, &mbi, unsafe.Sizeof(mbi)); err != nil {
			// ERROR_INVALID_PARAMETER marks the end of the user address space
			break
		}
		if mbi.RegionSize == 0 {
			break
		}
		if mbi.State != windows.MEM_FREE {
			memoryMap = append(memoryMap, MemoryMapItem{
				Address: uint64(mbi.BaseAddress),
				Size:    uint(mbi.RegionSize),
				Perms:   PermsFromProtect(mbi.State, mbi.Protect),
			})
		}

		next := mbi.BaseAddress + mbi.RegionSize
		if next <= address {
			break
		}
		address = next
	}

	return memoryMap, nil
}

// IsReadableProtect reports whether a region is committed and readable.
// Guard and no-access pages are never readable.
func IsReadableProtect(state, protect uint32) bool {
	if state != windows.MEM_COMMIT {
		return false
	}
	if protect&(windows.PAGE_GUARD|windows.PAGE_NOACCESS) != 0 {
		return false
	}
	return protect&(windows.PAGE_READONLY|windows.PAGE_READWRITE|windows.PAGE_WRITECOPY|
		windows.PAGE_EXECUTE_READ|windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY) != 0
}

// PermsFromProtect renders a protection in the /proc/[pid]/maps style so the
// rest of the package can treat both platforms alike.
func PermsFromProtect(state, protect uint32) string {
	perms := []byte("---p")
	if IsReadableProtect(state, protect) {
		perms[0] = 'r'
		if protect&(windows.PAGE_READWRITE|windows.PAGE_WRITECOPY|
			windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY) != 0 {
			perms[1] = 'w'
		}
		if protect&(windows.PAGE_EXECUTE_READ|windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY) != 0 {
			perms[2] = 'x'
		}
	}
	return string(perms)
}
