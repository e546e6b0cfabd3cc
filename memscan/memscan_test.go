package memscan

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"sigscan/pattern"
	"sigscan/process"
	"sigscan/process/memory_map"
	"sigscan/process_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkedMemory records every read and fails the test if one touches an
// address that has no saved data.
type checkedMemory struct {
	t    *testing.T
	dump *process_blob.ProcessDump

	mu      sync.Mutex
	reads   int
	queries int
}

func (m *checkedMemory) Query(addr process.ProcessMemoryAddress) (process.Page, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()
	return m.dump.Query(addr)
}

func (m *checkedMemory) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	m.mu.Lock()
	m.reads++
	m.mu.Unlock()

	if !m.saved(uint64(addr), uint64(size)) {
		m.t.Errorf("read of %d bytes at 0x%x outside readable memory", size, uint64(addr))
	}
	return m.dump.ReadMemory(addr, size)
}

func (m *checkedMemory) saved(addr, size uint64) bool {
	item := memory_map.FindRegion(addr, m.dump.MemoryMap)
	if item == nil || addr+size > item.End() {
		return false
	}
	_, ok := m.dump.Blobs[item.Address]
	return ok
}

// holeyDump maps three pages at 0x10000; the middle one has no data.
func holeyDump(t *testing.T, fill func([]byte)) *process_blob.ProcessDump {
	t.Helper()
	dump := process_blob.NewProcessDump()
	for i, readable := range []bool{true, false, true} {
		item := memory_map.MemoryMapItem{Address: 0x10000 + uint64(i)*0x1000, Size: 0x1000, Perms: "rw-p"}
		var data []byte
		if readable {
			data = make([]byte, item.Size)
			if fill != nil {
				fill(data)
			}
		}
		require.NoError(t, dump.AddRegion(item, data))
	}
	return dump
}

func put(t *testing.T, dump *process_blob.ProcessDump, addr uint64, b ...byte) {
	t.Helper()
	item := memory_map.FindRegion(addr, dump.MemoryMap)
	require.NotNil(t, item)
	data, ok := dump.Blobs[item.Address]
	require.True(t, ok, "no data at 0x%x", addr)
	copy(data[addr-item.Address:], b)
}

// naiveScan is the reference result: every start whose window lies entirely
// in saved data and matches.
func naiveScan(dump *process_blob.ProcessDump, region process.Region, p pattern.Pattern) []Match {
	var matches []Match
	n := uint64(p.Len())
	for addr := uint64(region.Base); addr+n <= uint64(region.End()); addr++ {
		window := make([]byte, 0, n)
		for a := addr; a < addr+n; a++ {
			item := memory_map.FindRegion(a, dump.MemoryMap)
			if item == nil {
				break
			}
			data, ok := dump.Blobs[item.Address]
			if !ok {
				break
			}
			window = append(window, data[a-item.Address])
		}
		if uint64(len(window)) != n {
			continue
		}
		if captured, ok := p.MatchAt(window); ok {
			matches = append(matches, Match{Address: process.ProcessMemoryAddress(addr), Captured: captured})
		}
	}
	return matches
}

func addresses(matches []Match) []process.ProcessMemoryAddress {
	var out []process.ProcessMemoryAddress
	for _, m := range matches {
		out = append(out, m.Address)
	}
	return out
}

func TestScanAroundUnreadablePage(t *testing.T) {
	dump := holeyDump(t, nil)
	put(t, dump, 0x10010, 0xDE, 0xAD, 0x42, 0xEF)
	put(t, dump, 0x10FFE, 0xDE, 0xAD) // window runs into the hole
	put(t, dump, 0x12000, 0xDE, 0xAD, 0x43, 0xEF)
	put(t, dump, 0x12100, 0xDE, 0xAD, 0x44, 0xEF)

	mem := &checkedMemory{t: t, dump: dump}
	region := process.Region{Base: 0x10000, Size: 0x3000}
	s := New(mem, region, pattern.MustNew("DE AD ** EF"))

	matches, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Address: 0x10010, Captured: []byte{0x42}},
		{Address: 0x12000, Captured: []byte{0x43}},
		{Address: 0x12100, Captured: []byte{0x44}},
	}, matches)
	assert.GreaterOrEqual(t, s.Skipped(), uint64(0x1000), "candidates touching the hole are skipped")
}

func TestScanSkipPartsNeedReadableMemory(t *testing.T) {
	dump := holeyDump(t, nil)
	put(t, dump, 0x10FFF, 0xAA)
	put(t, dump, 0x12000, 0xBB)

	// the skip would land in the hole
	p := pattern.MustNew("AA " + strings.Repeat("?? ", 0x1000) + "BB")
	matches, err := New(&checkedMemory{t: t, dump: dump}, process.Region{Base: 0x10000, Size: 0x3000}, p).Collect()
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestScanRegionStartingInHole(t *testing.T) {
	dump := holeyDump(t, nil)
	put(t, dump, 0x12000, 0x90, 0x90)

	region := process.Region{Base: 0x11800, Size: 0x1000}
	matches, err := New(&checkedMemory{t: t, dump: dump}, region, pattern.MustNew("90 90")).Collect()
	require.NoError(t, err)
	assert.Equal(t, []process.ProcessMemoryAddress{0x12000}, addresses(matches))
}

func TestScanUnmappedRegion(t *testing.T) {
	dump := holeyDump(t, nil)
	mem := &checkedMemory{t: t, dump: dump}

	matches, err := New(mem, process.Region{Base: 0x40000, Size: 0x8000}, pattern.MustNew("00")).Collect()
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, mem.reads)
	assert.Equal(t, 1, mem.queries, "one query covers the whole gap")
}

func TestScanMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	dump := holeyDump(t, func(b []byte) {
		for i := range b {
			b[i] = byte(rng.IntN(4)) // small alphabet for plenty of matches
		}
	})
	region := process.Region{Base: 0x10000, Size: 0x3000}

	for _, text := range []string{"01", "00 01", "02 ?? 03", "** 00 **", "03 03 03"} {
		p := pattern.MustNew(text)
		want := naiveScan(dump, region, p)
		require.NotEmpty(t, want, text)

		for _, chunk := range []uint64{1, 7, 64, DefaultChunkSize} {
			got, err := New(&checkedMemory{t: t, dump: dump}, region, p, WithChunkSize(chunk)).Collect()
			require.NoError(t, err)
			assert.Equal(t, want, got, "pattern %q chunk %d", text, chunk)
		}
	}
}

// failingMemory reports a page readable but refuses to read it, as happens
// when a page is unmapped between Query and ReadMemory.
type failingMemory struct {
	*process_blob.ProcessDump
	fail process.Region
}

func (m *failingMemory) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if addr < m.fail.End() && m.fail.Base < addr+process.ProcessMemoryAddress(size) {
		return nil, errors.New("page went away")
	}
	return m.ProcessDump.ReadMemory(addr, size)
}

func TestScanReadFailureIsUnreadable(t *testing.T) {
	dump := holeyDump(t, nil)
	put(t, dump, 0x10100, 0xCC, 0xCC)
	put(t, dump, 0x12100, 0xCC, 0xCC)

	mem := &failingMemory{ProcessDump: dump, fail: process.Region{Base: 0x10000, Size: 0x1000}}
	matches, err := New(mem, process.Region{Base: 0x10000, Size: 0x3000}, pattern.MustNew("CC CC")).Collect()
	require.NoError(t, err)
	assert.Equal(t, []process.ProcessMemoryAddress{0x12100}, addresses(matches))
}

func TestScanReadFailureSkipsOnlyFailingPage(t *testing.T) {
	base := uint64(0x1000000)
	dump := process_blob.NewProcessDump()
	item := memory_map.MemoryMapItem{Address: base, Size: 4 * pageSize, Perms: "rw-p"}
	require.NoError(t, dump.AddRegion(item, make([]byte, item.Size)))
	put(t, dump, base+0x10, 0xCC, 0xCC)
	put(t, dump, base+pageSize+0x20, 0xCC, 0xCC)
	put(t, dump, base+2*pageSize+0x30, 0xCC, 0xCC)

	mem := &failingMemory{ProcessDump: dump, fail: process.Region{
		Base: process.ProcessMemoryAddress(base),
		Size: process.ProcessMemorySize(pageSize),
	}}
	region := process.Region{Base: process.ProcessMemoryAddress(base), Size: process.ProcessMemorySize(item.Size)}
	s := New(mem, region, pattern.MustNew("CC CC"), WithChunkSize(4*pageSize))
	matches, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, []process.ProcessMemoryAddress{
		process.ProcessMemoryAddress(base + pageSize + 0x20),
		process.ProcessMemoryAddress(base + 2*pageSize + 0x30),
	}, addresses(matches))
	assert.Equal(t, pageSize, s.Skipped())
}

func TestScanQueryError(t *testing.T) {
	mem := &queryErrorMemory{}
	matches, err := New(mem, process.Region{Base: 0x1000, Size: 0x3000}, pattern.MustNew("00")).Collect()
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Zero(t, mem.reads)
}

type queryErrorMemory struct {
	reads int
}

func (m *queryErrorMemory) Query(addr process.ProcessMemoryAddress) (process.Page, error) {
	return process.Page{}, errors.New("query failed")
}

func (m *queryErrorMemory) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	m.reads++
	return make([]byte, size), nil
}

func TestScanEmptyPattern(t *testing.T) {
	dump := holeyDump(t, nil)
	s := New(dump, process.Region{Base: 0x10000, Size: 0x3000}, pattern.Pattern{})
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
}

func TestScanPatternLongerThanRegion(t *testing.T) {
	dump := holeyDump(t, nil)
	s := New(dump, process.Region{Base: 0x10000, Size: 2}, pattern.MustNew("00 00 00"))
	assert.False(t, s.Next())
}

func TestScanContextCanceled(t *testing.T) {
	dump := process_blob.NewProcessDump()
	require.NoError(t, dump.AddRegion(memory_map.MemoryMapItem{Address: 0x100000, Size: 0x20000, Perms: "r--p"}, make([]byte, 0x20000)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	matches, err := New(dump, process.Region{Base: 0x100000, Size: 0x20000}, pattern.MustNew("01"), WithContext(ctx)).Collect()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, matches)
}

func TestScanAllStopsEarly(t *testing.T) {
	dump := holeyDump(t, nil)
	var got []Match
	for m := range New(dump, process.Region{Base: 0x10000, Size: 0x1000}, pattern.MustNew("00")).All() {
		got = append(got, m)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []process.ProcessMemoryAddress{0x10000, 0x10001, 0x10002}, addresses(got))
}

func TestMatchString(t *testing.T) {
	m := Match{Address: 0x1000, Captured: []byte{0xAB, 0x01}}
	assert.Equal(t, "0x1000 AB 01", m.String())
}
