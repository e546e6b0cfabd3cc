package scanner

import (
	"bytes"
	"slices"
	"strings"
	"testing"
	"unsafe"

	"sigscan/pattern"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(seq func(func(Match) bool)) []Match {
	var out []Match
	for m := range seq {
		out = append(out, m)
	}
	return out
}

func TestScan(t *testing.T) {
	data := []byte{0x3, 0x12, 0x58, 0xFF, 0x0, 0x1, 0x2, 0x3}
	s := New(FromSlice(data), pattern.MustNew("FF ?? 01"))

	require.True(t, s.Next())
	assert.Equal(t, 3, s.Index())
	assert.Nil(t, s.Captured())
	assert.False(t, s.Next())
}

func TestScanPtrForward(t *testing.T) {
	data := [5]byte{0x4, 0x2, 0x0, 0x6, 0x9}
	s := New(FromPtr(unsafe.Pointer(&data[0]), len(data)), pattern.MustNew("04 ?? 00 ?? 09"))

	require.True(t, s.Next())
	assert.Equal(t, 0, s.Index())
}

func TestScanTake(t *testing.T) {
	data := []byte{0x4, 0x2, 0x9, 0x1, 0x8}
	s := New(FromSlice(data), pattern.MustNew("04 ** 09 ?? **"))

	require.True(t, s.Next())
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, []byte{0x2, 0x8}, s.Captured())

	assert.False(t, s.Next())
	assert.Nil(t, s.Captured(), "captures are cleared once the source is exhausted")
}

func TestScanDoesNotReplay(t *testing.T) {
	// The first attempt reads AA AA and fails on the second AA. The true
	// match at offset 1 is lost because that byte is not read again.
	data := []byte{0xAA, 0xAA, 0xBB}
	matches := collect(Scan(FromSlice(data), pattern.MustNew("AA BB")))
	assert.Empty(t, matches)

	// A replayable source finds it.
	matches = collect(ScanBytes(data, pattern.MustNew("AA BB")))
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Index)
}

func TestScanIndexCountsAttempts(t *testing.T) {
	// attempt 0: 00 01 fails on 01, attempt 1: 02 ok, 03 ok
	data := []byte{0x00, 0x01, 0x02, 0x03}
	s := New(FromSlice(data), pattern.MustNew("?? 03"))

	require.True(t, s.Next())
	assert.Equal(t, 1, s.Index(), "one failed attempt, the byte offset is 2")
	assert.Equal(t, 1, s.Attempts(), "a success does not move the counter")
}

func TestScanConsecutiveMatches(t *testing.T) {
	data := []byte{0xAA, 0x01, 0xAA, 0x02, 0x00, 0xAA, 0x03}
	matches := collect(Scan(FromSlice(data), pattern.MustNew("AA **")))

	// AA 01 ok, AA 02 ok, 00 fails, AA 03 ok
	require.Len(t, matches, 3)
	assert.Equal(t, []int{0, 0, 1}, []int{matches[0].Index, matches[1].Index, matches[2].Index})
	assert.Equal(t, []byte{0x03}, matches[2].Captured)
}

func TestScanEmptyPattern(t *testing.T) {
	s := New(FromSlice([]byte{1, 2, 3}), pattern.Pattern{})
	assert.False(t, s.Next())
}

func TestScanLongNonMatchingSource(t *testing.T) {
	data := bytes.Repeat([]byte{0x90}, 1<<20)
	s := New(FromSlice(data), pattern.MustNew("CC"))
	assert.False(t, s.Next())
	assert.Equal(t, 1<<20, s.Attempts())
}

func TestScanEarlyStop(t *testing.T) {
	data := []byte{0x1, 0x1, 0x1, 0x1}
	s := New(FromSlice(data), pattern.MustNew("01"))

	for range s.All() {
		break
	}
	require.True(t, s.Next(), "scanner resumes after the caller stops ranging")
	assert.Equal(t, 0, s.Index(), "matches do not advance the counter")
	assert.Equal(t, 0, s.Attempts())
}

func TestFromReader(t *testing.T) {
	r := strings.NewReader("xxHELLOxx")
	p, err := pattern.FromString("H?LLO", 0)
	require.NoError(t, err)

	matches := collect(Scan(FromReader(r), p))
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Index)
}

func TestFromSeq(t *testing.T) {
	src := FromSeq(slices.Values([]byte{0x10, 0x20, 0x30}))
	defer src.Close()

	matches := collect(Scan(src, pattern.MustNew("10 **")))
	require.Len(t, matches, 1)
	assert.Equal(t, []byte{0x20}, matches[0].Captured)
}

func TestScanBytesOverlapping(t *testing.T) {
	matches := collect(ScanBytes([]byte{0xAA, 0xAA, 0xAA}, pattern.MustNew("AA AA")))

	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Index)
	assert.Equal(t, 1, matches[1].Index)
}

func TestScanBytesExactOffset(t *testing.T) {
	data := make([]byte, 64)
	copy(data[41:], []byte{0xDE, 0xAD, 0xBE, 0xEF})

	matches := collect(ScanBytes(data, pattern.MustNew("DE AD BE EF")))
	require.Len(t, matches, 1)
	assert.Equal(t, 41, matches[0].Index)
}

func TestScanPtr(t *testing.T) {
	data := []byte{0x3, 0x12, 0x58, 0xFF, 0x0, 0x1, 0x2, 0x3}
	base := unsafe.Pointer(&data[0])

	matches := collect(ScanPtr(base, len(data), pattern.MustNew("FF ?? 01")))
	require.Len(t, matches, 1)
	assert.Equal(t, 3, matches[0].Index)
	assert.Equal(t, uintptr(base)+3, matches[0].Address)
}

func TestScanPtrTake(t *testing.T) {
	data := [5]byte{0x4, 0x2, 0x9, 0x1, 0x8}
	matches := collect(ScanPtr(unsafe.Pointer(&data[0]), len(data), pattern.MustNew("04 ** 09 ?? **")))

	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].Index)
	assert.Equal(t, []byte{0x2, 0x8}, matches[0].Captured)
}

func TestScanBytesShortInput(t *testing.T) {
	assert.Empty(t, collect(ScanBytes([]byte{0x01}, pattern.MustNew("01 02"))))
	assert.Empty(t, collect(ScanBytes(nil, pattern.MustNew("01"))))
}

func TestScanBytesIdempotent(t *testing.T) {
	data := []byte{0x1, 0x2, 0x1, 0x2, 0x3, 0x1, 0x2}
	p := pattern.MustNew("01 **")

	first := collect(ScanBytes(data, p))
	second := collect(ScanBytes(data, p))
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestPtrByteAtBounds(t *testing.T) {
	data := []byte{1}
	p := Ptr{Base: unsafe.Pointer(&data[0]), Length: 1}
	assert.Equal(t, byte(1), p.ByteAt(0))
	assert.Panics(t, func() { p.ByteAt(1) })
}
