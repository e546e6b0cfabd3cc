// Package scanner applies a compiled pattern to byte sources.
//
// Two algorithms are provided because sources differ in what they allow:
//
//   - Scanner works on any forward-only ByteSource. A failed attempt is not
//     replayed: the next attempt starts wherever the source stands, and
//     Match.Index counts failed attempts rather than bytes.
//   - SlidingScanner works on a Replayable source and tries every start
//     offset, so Match.Index is the byte offset of the match.
//
// Neither scanner is safe for concurrent use.
package scanner

import (
	"iter"
	"unsafe"

	"sigscan/pattern"
)

// Match is one successful attempt.
type Match struct {
	// Index is the failed-attempt count for forward sources and the byte
	// offset for replayable sources.
	Index int

	// Address is base+Index for pointer sources, zero otherwise.
	Address uintptr

	// Captured holds the bytes matched by Take parts, in pattern order.
	Captured []byte
}

// Scanner drives a forward-only source. Use Next to advance and Match to
// read the result, or range over All.
type Scanner struct {
	src     ByteSource
	pattern pattern.Pattern
	idx     int
	match   Match
	done    bool
}

// New creates a scanner that consumes src.
func New(src ByteSource, p pattern.Pattern) *Scanner {
	return &Scanner{src: src, pattern: p}
}

// Scan is shorthand for New(src, p).All().
func Scan(src ByteSource, p pattern.Pattern) iter.Seq[Match] {
	return New(src, p).All()
}

// Next runs attempts until one matches or the source runs out. The counter
// only moves on a failed attempt, so a match reports the number of failures
// before it and back-to-back matches share an index. After Next returns
// false the scanner is finished and Captured is nil.
func (s *Scanner) Next() bool {
	if s.done || s.pattern.Len() == 0 {
		s.finish()
		return false
	}

	for {
		captured, matched, exhausted := s.attempt()
		if exhausted {
			s.finish()
			return false
		}
		if matched {
			s.match = Match{Index: s.idx, Captured: captured}
			return true
		}
		s.idx++
	}
}

// attempt consumes one byte per part and stops at the first mismatch. Bytes
// read before the mismatch are gone.
func (s *Scanner) attempt() (captured []byte, matched, exhausted bool) {
	for i := 0; i < s.pattern.Len(); i++ {
		b, ok := s.src.NextByte()
		if !ok {
			return nil, false, true
		}
		part := s.pattern.At(i)
		switch part.Kind {
		case pattern.Byte:
			if b != part.Value {
				return nil, false, false
			}
		case pattern.Take:
			captured = append(captured, b)
		}
	}
	return captured, true, false
}

func (s *Scanner) finish() {
	s.done = true
	s.match = Match{}
}

// Match returns the most recent match.
func (s *Scanner) Match() Match {
	return s.match
}

// Index returns the index of the most recent match.
func (s *Scanner) Index() int {
	return s.match.Index
}

// Captured returns the captures of the most recent match.
func (s *Scanner) Captured() []byte {
	return s.match.Captured
}

// Attempts returns the attempt counter: how many attempts have failed so far.
func (s *Scanner) Attempts() int {
	return s.idx
}

// All yields the remaining matches. The sequence consumes the scanner and
// cannot be restarted.
func (s *Scanner) All() iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for s.Next() {
			if !yield(s.match) {
				return
			}
		}
	}
}

// SlidingScanner tries every start offset of a replayable source in
// increasing order. Overlapping matches are all reported.
type SlidingScanner struct {
	src     Replayable
	pattern pattern.Pattern
	base    uintptr
	start   int
	match   Match
}

// NewSliding creates a sliding window scanner over src.
func NewSliding(src Replayable, p pattern.Pattern) *SlidingScanner {
	return &SlidingScanner{src: src, pattern: p}
}

// ScanBytes scans a byte slice; Index is the offset of each match.
func ScanBytes(b []byte, p pattern.Pattern) iter.Seq[Match] {
	return NewSliding(Bytes(b), p).All()
}

// ScanPtr scans length bytes at base; Address is the absolute address of
// each match.
func ScanPtr(base unsafe.Pointer, length int, p pattern.Pattern) iter.Seq[Match] {
	s := NewSliding(Ptr{Base: base, Length: length}, p)
	s.base = uintptr(base)
	return s.All()
}

// Next advances to the next start offset that matches.
func (s *SlidingScanner) Next() bool {
	n := s.pattern.Len()
	if n == 0 {
		s.match = Match{}
		return false
	}

	for ; s.start+n <= s.src.Len(); s.start++ {
		captured, ok := s.matchAt(s.start)
		if !ok {
			continue
		}
		s.match = Match{Index: s.start, Captured: captured}
		if s.base != 0 {
			s.match.Address = s.base + uintptr(s.start)
		}
		s.start++
		return true
	}

	s.match = Match{}
	return false
}

func (s *SlidingScanner) matchAt(start int) ([]byte, bool) {
	var captured []byte
	for i := 0; i < s.pattern.Len(); i++ {
		part := s.pattern.At(i)
		b := s.src.ByteAt(start + i)
		switch part.Kind {
		case pattern.Byte:
			if b != part.Value {
				return nil, false
			}
		case pattern.Take:
			captured = append(captured, b)
		}
	}
	return captured, true
}

// Match returns the most recent match.
func (s *SlidingScanner) Match() Match {
	return s.match
}

// All yields the remaining matches.
func (s *SlidingScanner) All() iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for s.Next() {
			if !yield(s.match) {
				return
			}
		}
	}
}
