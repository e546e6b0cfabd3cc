//go:build linux

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cliMarker = [...]byte{0x3C, 0x91, 0x7E, 0x05, 0xD2, 0x6B, 0xA8, 0x14, 0x99}

func TestRunScanProcessSelf(t *testing.T) {
	resetScanFlags(t)
	exe, err := os.Executable()
	require.NoError(t, err)

	scanPID = os.Getpid()
	scanModule = filepath.Base(exe)

	cmd, out := testCommand("")
	cmd.SetContext(context.Background())
	require.NoError(t, runScanProcess(cmd, []string{"3C 91 7E 05 D2 6B A8 14 **"}))

	addr := uintptr(unsafe.Pointer(&cliMarker[0]))
	assert.Contains(t, out.String(), fmt.Sprintf("pattern 0x%X 99\n", addr))
}

func TestResolvePIDByName(t *testing.T) {
	pid, err := resolvePID(context.Background(), 1234, "ignored")
	require.NoError(t, err)
	assert.EqualValues(t, 1234, pid)

	_, err = resolvePID(context.Background(), 0, "no-such-process-name-xyz")
	assert.Error(t, err)

	_, err = resolvePID(context.Background(), 0, "")
	assert.Error(t, err)
}
