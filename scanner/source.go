package scanner

import (
	"bufio"
	"io"
	"iter"
	"unsafe"
)

// ByteSource produces bytes one at a time, forward only. Once it reports
// false it is exhausted for good.
type ByteSource interface {
	NextByte() (byte, bool)
}

// Replayable is a source whose bytes can be read in any order and any number
// of times.
type Replayable interface {
	Len() int
	ByteAt(i int) byte
}

type sliceSource struct {
	b      []byte
	offset int
}

// FromSlice reads b front to back.
func FromSlice(b []byte) ByteSource {
	return &sliceSource{b: b}
}

func (s *sliceSource) NextByte() (byte, bool) {
	if s.offset >= len(s.b) {
		return 0, false
	}
	v := s.b[s.offset]
	s.offset++
	return v, true
}

type readerSource struct {
	r io.ByteReader
}

// FromReader reads r through a buffer. Any read error, io.EOF included, ends
// the source; callers that need the error should wrap r themselves.
func FromReader(r io.Reader) ByteSource {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &readerSource{r: br}
}

func (s *readerSource) NextByte() (byte, bool) {
	v, err := s.r.ReadByte()
	if err != nil {
		return 0, false
	}
	return v, true
}

// SeqSource adapts a push iterator. Close releases the iterator if the scan
// is abandoned before the sequence ends.
type SeqSource struct {
	next func() (byte, bool)
	stop func()
}

// FromSeq pulls bytes from seq.
func FromSeq(seq iter.Seq[byte]) *SeqSource {
	next, stop := iter.Pull(seq)
	return &SeqSource{next: next, stop: stop}
}

func (s *SeqSource) NextByte() (byte, bool) {
	return s.next()
}

func (s *SeqSource) Close() {
	s.stop()
}

// PtrSource is a bounds-checked cursor over length bytes starting at base.
type PtrSource struct {
	base   unsafe.Pointer
	offset int
	length int
}

// FromPtr reads length bytes starting at base. The memory must stay valid
// for the lifetime of the source.
func FromPtr(base unsafe.Pointer, length int) *PtrSource {
	return &PtrSource{base: base, length: length}
}

func (s *PtrSource) NextByte() (byte, bool) {
	if s.offset >= s.length {
		return 0, false
	}
	v := *(*byte)(unsafe.Add(s.base, s.offset))
	s.offset++
	return v, true
}

// Bytes is a replayable in-memory buffer.
type Bytes []byte

func (b Bytes) Len() int          { return len(b) }
func (b Bytes) ByteAt(i int) byte { return b[i] }

// Ptr is a replayable view of Length bytes at Base.
type Ptr struct {
	Base   unsafe.Pointer
	Length int
}

func (p Ptr) Len() int {
	return p.Length
}

func (p Ptr) ByteAt(i int) byte {
	if i < 0 || i >= p.Length {
		panic("scanner: Ptr index out of range")
	}
	return *(*byte)(unsafe.Add(p.Base, i))
}
