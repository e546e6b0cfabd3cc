//go:build windows

package process_windows

import (
	"fmt"
	"unsafe"

	"sigscan/process"

	"golang.org/x/sys/windows"
)

// SelfProcess reads the memory of the calling process directly, checking
// each range with VirtualQuery first.
type SelfProcess struct{}

// Self opens the calling process.
func Self() (*SelfProcess, error) {
	return &SelfProcess{}, nil
}

func (p *SelfProcess) Query(addr process.ProcessMemoryAddress) (process.Page, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return process.Page{}, fmt.Errorf("VirtualQuery at 0x%x: %w", uint64(addr), err)
	}
	return pageFromMBI(&mbi), nil
}

// ReadMemory copies size bytes at addr once VirtualQuery confirms the whole
// range is committed and readable. The copy goes through ReadProcessMemory so
// a page freed in between fails the read instead of faulting.
func (p *SelfProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	page, err := p.Query(addr)
	if err != nil {
		return nil, err
	}
	if !page.Readable {
		return nil, process.ErrAddressNotMapped
	}
	if addr+process.ProcessMemoryAddress(size) > page.End() {
		return nil, fmt.Errorf("read of %d bytes at 0x%x crosses region end: %w", size, uint64(addr), process.ErrAddressNotMapped)
	}

	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}
	var n uintptr
	if err := windows.ReadProcessMemory(windows.CurrentProcess(), uintptr(addr), &out[0], uintptr(size), &n); err != nil {
		return nil, fmt.Errorf("ReadProcessMemory at 0x%x: %w", uint64(addr), err)
	}
	return out[:n], nil
}

// FindModule resolves a module loaded in this process.
func (p *SelfProcess) FindModule(name string) (process.Module, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return process.Module{}, &process.ModuleError{Name: name, Err: err}
	}

	var module windows.Handle
	if err := windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, namePtr, &module); err != nil {
		return process.Module{}, &process.ModuleError{Name: name, Err: fmt.Errorf("%w: %v", process.ErrModuleNotFound, err)}
	}

	return moduleInfo(windows.CurrentProcess(), module, name)
}
