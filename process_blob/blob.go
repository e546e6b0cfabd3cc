package process_blob

import (
	"fmt"

	"sigscan/process"
)

// ProcessBlob is a single readable region backed by a byte slice. Every
// address outside it is unmapped.
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

var _ process.Memory = (*ProcessBlob)(nil)

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

// Region returns the address range covered by the blob.
func (p *ProcessBlob) Region() process.Region {
	return process.Region{Base: p.baseaddress, Size: process.ProcessMemorySize(len(p.data))}
}

func (p *ProcessBlob) Query(addr process.ProcessMemoryAddress) (process.Page, error) {
	region := p.Region()
	switch {
	case addr < region.Base:
		return process.Page{Base: 0, Size: process.ProcessMemorySize(region.Base)}, nil
	case addr >= region.End():
		return process.Page{Base: region.End(), Size: process.ProcessMemorySize(^uint64(0) - uint64(region.End()))}, nil
	}
	return process.Page{Base: region.Base, Size: region.Size, Readable: true}, nil
}

func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if addr < p.baseaddress || uint64(addr)+uint64(size) > uint64(p.baseaddress)+uint64(len(p.data)) {
		return nil, fmt.Errorf("read of %d bytes at 0x%x: %w", size, uint64(addr), process.ErrAddressNotMapped)
	}
	offset := uint64(addr - p.baseaddress)
	out := make([]byte, size)
	copy(out, p.data[offset:offset+uint64(size)])
	return out, nil
}
