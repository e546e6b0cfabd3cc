package process_blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sigscan/process"
	"sigscan/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	metadataFile  = "metadata.json"
	memoryMapFile = "process_memory_map.json"

	// DefaultMaxRegionSize is the largest region Save writes.
	DefaultMaxRegionSize = 100 * 1024 * 1024
)

var log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "process-dump"))

// ProcessDump is a frozen image of a process address space. Regions of the
// memory map that have no saved blob are treated as unreadable, which makes
// a dump a convenient stand-in for sparse live memory.
type ProcessDump struct {
	PID       process.ProcessID
	Name      string
	MemoryMap []memory_map.MemoryMapItem
	Blobs     map[uint64][]byte // Address -> Data
}

var (
	_ process.Memory         = (*ProcessDump)(nil)
	_ process.ModuleResolver = (*ProcessDump)(nil)
)

// NewProcessDump creates an empty dump
func NewProcessDump() *ProcessDump {
	return &ProcessDump{
		Blobs: make(map[uint64][]byte),
	}
}

// AddRegion appends a region. data may be nil for a region that is mapped
// but was not captured. Regions must not overlap.
func (p *ProcessDump) AddRegion(item memory_map.MemoryMapItem, data []byte) error {
	if data != nil && uint(len(data)) != item.Size {
		return fmt.Errorf("region 0x%x: %d bytes of data for size %d", item.Address, len(data), item.Size)
	}
	for _, existing := range p.MemoryMap {
		if item.Address < existing.End() && existing.Address < item.End() {
			return fmt.Errorf("region 0x%x overlaps region 0x%x", item.Address, existing.Address)
		}
	}

	p.MemoryMap = append(p.MemoryMap, item)
	memory_map.Sort(p.MemoryMap)
	if data != nil {
		p.Blobs[item.Address] = data
	}
	return nil
}

func (p *ProcessDump) GetPID() process.ProcessID {
	return p.PID
}

func (p *ProcessDump) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	result := make([]memory_map.MemoryMapItem, len(p.MemoryMap))
	copy(result, p.MemoryMap)
	return result, nil
}

// ReadableRegions returns the regions that have data, in address order.
func (p *ProcessDump) ReadableRegions() []process.Region {
	var regions []process.Region
	for _, item := range p.MemoryMap {
		if _, ok := p.Blobs[item.Address]; ok && item.IsReadable() {
			regions = append(regions, process.Region{
				Base: process.ProcessMemoryAddress(item.Address),
				Size: process.ProcessMemorySize(item.Size),
			})
		}
	}
	return regions
}

func (p *ProcessDump) Query(addr process.ProcessMemoryAddress) (process.Page, error) {
	start, end, readable := memory_map.PageAt(uint64(addr), p.MemoryMap)
	if readable {
		_, readable = p.Blobs[start]
	}
	return process.Page{
		Base:     process.ProcessMemoryAddress(start),
		Size:     process.ProcessMemorySize(end - start),
		Readable: readable,
	}, nil
}

func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	// Find the region containing the address
	region := memory_map.FindRegion(uint64(addr), p.MemoryMap)
	if region == nil {
		return nil, process.ErrAddressNotMapped
	}

	data, ok := p.Blobs[region.Address]
	if !ok {
		return nil, fmt.Errorf("no data for region 0x%x: %w", region.Address, process.ErrAddressNotMapped)
	}

	offset := uint64(addr) - region.Address
	if offset+uint64(size) > uint64(len(data)) {
		return nil, fmt.Errorf("read size %d exceeds region data bounds", size)
	}

	result := make([]byte, size)
	copy(result, data[offset:offset+uint64(size)])
	return result, nil
}

// FindModule resolves a module from the paths recorded in the memory map.
func (p *ProcessDump) FindModule(name string) (process.Module, error) {
	item, ok := memory_map.FindModule(name, p.MemoryMap)
	if !ok {
		return process.Module{}, &process.ModuleError{Name: name, Err: process.ErrModuleNotFound}
	}
	return process.Module{
		Name: name,
		Path: item.Path,
		Base: process.ProcessMemoryAddress(item.Address),
		Size: process.ProcessMemorySize(item.Size),
	}, nil
}

type metadata struct {
	PID  process.ProcessID `json:"pid"`
	Name string            `json:"name"`
}

func blobName(dirname string, item memory_map.MemoryMapItem) string {
	return filepath.Join(dirname, fmt.Sprintf("blob_0x%x_%d.bin", item.Address, item.Size))
}

// Load reads a dump directory written by Save
func (p *ProcessDump) Load(dirname string) error {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, metadataFile))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta metadata
	if err := json.Unmarshal(metadataBytes, &meta); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	p.PID = meta.PID
	p.Name = meta.Name

	mmBytes, err := os.ReadFile(filepath.Join(dirname, memoryMapFile))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	if err := json.Unmarshal(mmBytes, &p.MemoryMap); err != nil {
		return fmt.Errorf("failed to unmarshal memory map: %w", err)
	}
	memory_map.Sort(p.MemoryMap)

	if p.Blobs == nil {
		p.Blobs = make(map[uint64][]byte)
	}
	for _, region := range p.MemoryMap {
		data, err := os.ReadFile(blobName(dirname, region))
		if errors.Is(err, os.ErrNotExist) {
			continue // not saved, e.g. too large or not readable
		}
		if err != nil {
			return fmt.Errorf("failed to read blob for region 0x%x: %w", region.Address, err)
		}
		if uint(len(data)) != region.Size {
			return fmt.Errorf("blob for region 0x%x has %d bytes, want %d", region.Address, len(data), region.Size)
		}
		p.Blobs[region.Address] = data
	}

	log.Infoln("Loaded dump", dirname, ":", len(p.Blobs), "of", len(p.MemoryMap), "regions have data")
	return nil
}

// Source is what Save needs from a process.
type Source interface {
	process.Memory
	GetPID() process.ProcessID
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)
}

// SaveStats counts what Save did with each region.
type SaveStats struct {
	Saved       int
	NotReadable int
	TooLarge    int
	ReadErrors  int
}

// Save writes the readable regions of src to dirname. Regions larger than
// maxRegionSize (0 means DefaultMaxRegionSize) and regions that fail to read
// are recorded in the memory map without data.
func Save(dirname, name string, src Source, maxRegionSize uint) (SaveStats, error) {
	var stats SaveStats
	if maxRegionSize == 0 {
		maxRegionSize = DefaultMaxRegionSize
	}

	if err := os.MkdirAll(dirname, 0755); err != nil {
		return stats, fmt.Errorf("failed to create directory: %w", err)
	}

	mm, err := src.GetMemoryMap()
	if err != nil {
		return stats, fmt.Errorf("failed to get memory map: %w", err)
	}

	if err := writeJSON(filepath.Join(dirname, metadataFile), metadata{PID: src.GetPID(), Name: name}); err != nil {
		return stats, err
	}
	if err := writeJSON(filepath.Join(dirname, memoryMapFile), mm); err != nil {
		return stats, err
	}

	for _, region := range mm {
		if !region.IsReadable() {
			stats.NotReadable++
			continue
		}
		if region.Size > maxRegionSize {
			log.Infoln("Skipping large region at", fmt.Sprintf("%x", region.Address), "(size:", region.Size/1024/1024, "MB)")
			stats.TooLarge++
			continue
		}

		data, err := src.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), err)
			stats.ReadErrors++
			continue
		}

		if err := os.WriteFile(blobName(dirname, region), data, 0644); err != nil {
			return stats, fmt.Errorf("failed to write blob for region 0x%x: %w", region.Address, err)
		}
		stats.Saved++
	}

	log.Infoln("Process dump saved:", stats.Saved, "regions saved,", stats.ReadErrors, "read errors")
	return stats, nil
}

func writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(name), err)
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(name), err)
	}
	return nil
}
