//go:build windows

package process_windows

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"sigscan/process"
	"sigscan/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	log    *logger.Logger
	mm     []memory_map.MemoryMapItem
	mu     sync.Mutex
}

var _ process.Process = (*WindowsProcess)(nil)

// New creates a new WindowsProcess instance
func New() *WindowsProcess {
	return &WindowsProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*WindowsProcess, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *WindowsProcess) Open(pid process.ProcessID) error {
	handle, err := windows.OpenProcess(windows.PROCESS_VM_READ|windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess failed: %w", err)
	}

	p.mu.Lock()
	p.pid = pid
	p.handle = handle
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		p.log.Warn("Failed to initialize memory map: ", err)
	}

	p.log.Infoln("Process opened")
	return nil
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		if err := windows.CloseHandle(p.handle); err != nil {
			return fmt.Errorf("CloseHandle failed: %w", err)
		}
		p.handle = 0
	}

	p.pid = 0
	p.mm = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *WindowsProcess) openHandle() (windows.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return 0, process.ErrProcessNotOpen
	}
	return p.handle, nil
}

func (p *WindowsProcess) UpdateMemoryMap() error {
	handle, err := p.openHandle()
	if err != nil {
		return err
	}

	mm, err := memory_map.ReadMemoryMapHandle(handle)
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	p.mu.Lock()
	p.mm = mm
	p.mu.Unlock()
	return nil
}

func (p *WindowsProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	page, err := p.Query(addr)
	return err == nil && page.Readable
}

func (p *WindowsProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

// Query asks VirtualQueryEx about the region containing addr.
func (p *WindowsProcess) Query(addr process.ProcessMemoryAddress) (process.Page, error) {
	handle, err := p.openHandle()
	if err != nil {
		return process.Page{}, err
	}

	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQueryEx(handle, uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return process.Page{}, fmt.Errorf("VirtualQueryEx at 0x%x: %w", uint64(addr), err)
	}
	return pageFromMBI(&mbi), nil
}

func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	handle, err := p.openHandle()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	if err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead); err != nil {
		return nil, fmt.Errorf("ReadProcessMemory failed at 0x%x: %w", uint64(addr), err)
	}

	if bytesRead != uintptr(size) {
		return nil, fmt.Errorf("read incomplete: expected %d, got %d", size, bytesRead)
	}

	return buf, nil
}

// FindModule enumerates the modules of the process and matches their base
// names case-insensitively.
func (p *WindowsProcess) FindModule(name string) (process.Module, error) {
	handle, err := p.openHandle()
	if err != nil {
		return process.Module{}, &process.ModuleError{Name: name, Err: err}
	}

	modules, err := enumModules(handle)
	if err != nil {
		return process.Module{}, &process.ModuleError{Name: name, Err: err}
	}

	for _, module := range modules {
		var buf [windows.MAX_PATH]uint16
		if err := windows.GetModuleBaseName(handle, module, &buf[0], uint32(len(buf))); err != nil {
			continue
		}
		if !strings.EqualFold(windows.UTF16ToString(buf[:]), name) {
			continue
		}
		return moduleInfo(handle, module, name)
	}

	return process.Module{}, &process.ModuleError{Name: name, Err: process.ErrModuleNotFound}
}

func enumModules(handle windows.Handle) ([]windows.Handle, error) {
	modules := make([]windows.Handle, 256)
	for {
		var needed uint32
		size := uint32(len(modules)) * uint32(unsafe.Sizeof(modules[0]))
		if err := windows.EnumProcessModules(handle, &modules[0], size, &needed); err != nil {
			return nil, fmt.Errorf("EnumProcessModules: %w", err)
		}
		if needed <= size {
			return modules[:needed/uint32(unsafe.Sizeof(modules[0]))], nil
		}
		modules = make([]windows.Handle, needed/uint32(unsafe.Sizeof(modules[0])))
	}
}

func moduleInfo(handle, module windows.Handle, name string) (process.Module, error) {
	var info windows.ModuleInfo
	if err := windows.GetModuleInformation(handle, module, &info, uint32(unsafe.Sizeof(info))); err != nil {
		return process.Module{}, &process.ModuleError{Name: name, Err: fmt.Errorf("GetModuleInformation: %w", err)}
	}

	var path [windows.MAX_PATH]uint16
	_ = windows.GetModuleFileNameEx(handle, module, &path[0], uint32(len(path)))

	return process.Module{
		Name: name,
		Path: windows.UTF16ToString(path[:]),
		Base: process.ProcessMemoryAddress(info.BaseOfDll),
		Size: process.ProcessMemorySize(info.SizeOfImage),
	}, nil
}

func pageFromMBI(mbi *windows.MemoryBasicInformation) process.Page {
	return process.Page{
		Base:     process.ProcessMemoryAddress(mbi.BaseAddress),
		Size:     process.ProcessMemorySize(mbi.RegionSize),
		Readable: memory_map.IsReadableProtect(mbi.State, mbi.Protect),
	}
}
