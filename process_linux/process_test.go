//go:build linux

package process_linux

import (
	"errors"
	"os"
	"testing"
	"unsafe"

	"sigscan/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var probe = [...]byte{0xC0, 0xFF, 0xEE, 0x11, 0x22, 0x33}

func TestLinuxProcessReadSelf(t *testing.T) {
	p, err := NewWithPID(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	defer p.Close()

	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&probe[0])))
	assert.True(t, p.IsValidAddress(addr))

	page, err := p.Query(addr)
	require.NoError(t, err)
	assert.True(t, page.Readable)
	assert.True(t, page.Contains(addr))

	data, err := p.ReadMemory(addr, process.ProcessMemorySize(len(probe)))
	require.NoError(t, err)
	assert.Equal(t, probe[:], data)
}

func TestLinuxProcessUnmapped(t *testing.T) {
	p, err := NewWithPID(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	defer p.Close()

	page, err := p.Query(0)
	require.NoError(t, err)
	assert.False(t, page.Readable)

	_, err = p.ReadMemory(0, 8)
	assert.ErrorIs(t, err, process.ErrAddressNotMapped)
}

func TestLinuxProcessNotOpen(t *testing.T) {
	p := New()

	_, err := p.Query(0x1000)
	assert.ErrorIs(t, err, process.ErrProcessNotOpen)

	_, err = p.ReadMemory(0x1000, 1)
	assert.ErrorIs(t, err, process.ErrProcessNotOpen)

	_, err = p.FindModule("libc.so.6")
	var moduleErr *process.ModuleError
	require.True(t, errors.As(err, &moduleErr))
	assert.ErrorIs(t, err, process.ErrProcessNotOpen)
}

func TestLinuxProcessFindModule(t *testing.T) {
	p, err := NewWithPID(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	defer p.Close()

	_, err = p.FindModule("no-such-module.so")
	assert.ErrorIs(t, err, process.ErrModuleNotFound)

	mm, err := p.GetMemoryMap()
	require.NoError(t, err)
	require.NotEmpty(t, mm)
}

func TestSelfProcess(t *testing.T) {
	self, err := Self()
	require.NoError(t, err)

	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&probe[0])))
	page, err := self.Query(addr)
	require.NoError(t, err)
	require.True(t, page.Readable)

	data, err := self.ReadMemory(addr, process.ProcessMemorySize(len(probe)))
	require.NoError(t, err)
	assert.Equal(t, probe[:], data)

	_, err = self.ReadMemory(0, 1)
	assert.ErrorIs(t, err, process.ErrAddressNotMapped)

	_, err = self.ReadMemory(page.End()-1, 2)
	assert.Error(t, err, "reads may not cross the end of a mapping")
}

func TestSelfProcessKeepsMapUntilMiss(t *testing.T) {
	self, err := Self()
	require.NoError(t, err)

	before := self.mm
	_, err = self.Query(process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&probe[0]))))
	require.NoError(t, err)
	assert.Same(t, &before[0], &self.mm[0], "a covered address must not reload the map")

	pageSize := unix.Getpagesize()
	mem, err := unix.Mmap(-1, 0, pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	require.NoError(t, err)
	defer unix.Munmap(mem)
	copy(mem, probe[:])

	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&mem[0])))
	page, err := self.Query(addr)
	require.NoError(t, err)
	assert.True(t, page.Readable, "a new mapping is picked up on reload")

	data, err := self.ReadMemory(addr, process.ProcessMemorySize(len(probe)))
	require.NoError(t, err)
	assert.Equal(t, probe[:], data)

	// the cached map still calls this page readable
	require.NoError(t, unix.Mprotect(mem, unix.PROT_NONE))
	_, err = self.ReadMemory(addr, process.ProcessMemorySize(len(probe)))
	assert.Error(t, err)
}

func TestOpenMissingProcess(t *testing.T) {
	_, err := NewWithPID(process.ProcessID(1 << 30))
	assert.Error(t, err)
}
