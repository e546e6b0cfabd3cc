//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"sync"

	"sigscan/process"
	"sigscan/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// SelfProcess reads the memory of the calling process. The memory map is
// cached and reloaded only when an address falls outside every known
// mapping. Reads go through process_vm_readv, so a mapping that changed
// since the last reload yields an error instead of a fault.
type SelfProcess struct {
	log *logger.Logger
	pid process.ProcessID
	mm  []memory_map.MemoryMapItem
	mu  sync.Mutex
}

// Self opens the calling process.
func Self() (*SelfProcess, error) {
	pid := os.Getpid()
	p := &SelfProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("self-%d", pid))),
		pid: process.ProcessID(pid),
	}
	if err := p.UpdateMemoryMap(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SelfProcess) UpdateMemoryMap() error {
	mm, err := memory_map.NewLinuxMemoryMap().ReadSelfMemoryMap()
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	p.mu.Lock()
	p.mm = mm
	p.mu.Unlock()
	return nil
}

// lookup returns the mapping holding addr, reloading the map once when the
// cached one has none.
func (p *SelfProcess) lookup(addr process.ProcessMemoryAddress) (*memory_map.MemoryMapItem, []memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	mm := p.mm
	p.mu.Unlock()
	if item := memory_map.FindRegion(uint64(addr), mm); item != nil {
		return item, mm, nil
	}

	p.log.Debugln("no mapping at", fmt.Sprintf("0x%x", uint64(addr)), "reloading memory map")
	if err := p.UpdateMemoryMap(); err != nil {
		return nil, nil, err
	}
	p.mu.Lock()
	mm = p.mm
	p.mu.Unlock()
	return memory_map.FindRegion(uint64(addr), mm), mm, nil
}

func (p *SelfProcess) Query(addr process.ProcessMemoryAddress) (process.Page, error) {
	_, mm, err := p.lookup(addr)
	if err != nil {
		return process.Page{}, err
	}
	return pageAt(addr, mm), nil
}

func (p *SelfProcess) FindModule(name string) (process.Module, error) {
	if err := p.UpdateMemoryMap(); err != nil {
		return process.Module{}, &process.ModuleError{Name: name, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return findModule(name, p.mm)
}

// ReadMemory copies size bytes at addr out of this process.
func (p *SelfProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	item, _, err := p.lookup(addr)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.IsReadable() {
		return nil, process.ErrAddressNotMapped
	}
	if uint64(addr)+uint64(size) > item.End() {
		return nil, fmt.Errorf("read of %d bytes at 0x%x crosses mapping end 0x%x: %w",
			size, uint64(addr), item.End(), process.ErrAddressNotMapped)
	}

	data, err := process_vm_readv(p.pid, addr, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read own memory at 0x%x: %w", uint64(addr), err)
	}
	return data, nil
}
