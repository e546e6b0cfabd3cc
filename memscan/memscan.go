// Package memscan scans live process memory for a pattern.
//
// Unlike the scanner package it addresses memory directly: every candidate
// start address is tried, and every byte is covered by a liveness check
// (process.Memory.Query) before it is read. Pages that are unmapped, not
// committed or not readable are stepped over and never read.
//
// The target may change while it is being scanned; a match can observe a
// torn read. Callers that need a consistent view should scan a snapshot
// (see process_blob).
package memscan

import (
	"fmt"
	"iter"

	"sigscan/pattern"
	"sigscan/process"
)

// Match is a pattern occurrence in memory.
type Match struct {
	Address  process.ProcessMemoryAddress
	Captured []byte
}

func (m Match) String() string {
	return fmt.Sprintf("%s % X", m.Address.ToString(), m.Captured)
}

// Scanner walks one region. It is not safe for concurrent use.
type Scanner struct {
	mem       process.Memory
	region    process.Region
	pattern   pattern.Pattern
	cfg       config

	start     uint64 // next candidate offset into region
	cache     window
	failedEnd uint64 // end of the last chunk whose read failed
	match     Match
	err       error
	skipped   uint64
	checks    uint64
}

// window is the last range validated by a Query. data is only set when the
// range is readable and then covers exactly [base, end).
type window struct {
	base, end uint64
	readable  bool
	data      []byte
	valid     bool
}

func (w *window) contains(addr uint64) bool {
	return w.valid && addr >= w.base && addr < w.end
}

// New creates a scanner for region.
func New(mem process.Memory, region process.Region, p pattern.Pattern, options ...Option) *Scanner {
	return &Scanner{
		mem:     mem,
		region:  region,
		pattern: p,
		cfg:     newConfig(options),
	}
}

// Next advances to the next match in increasing address order.
func (s *Scanner) Next() bool {
	s.match = Match{}
	n := uint64(s.pattern.Len())
	if n == 0 || s.err != nil {
		return false
	}

	size := uint64(s.region.Size)
	for s.start+n <= size {
		if s.checks++; s.checks%ctxCheckInterval == 0 {
			if err := s.cfg.ctx.Err(); err != nil {
				s.err = err
				return false
			}
		}

		captured, ok, resume := s.matchAt(s.start)
		if resume > 0 {
			next := resume - uint64(s.region.Base)
			if resume < uint64(s.region.Base) || next <= s.start {
				next = s.start + 1
			}
			s.skipped += next - s.start
			s.start = next
			continue
		}

		at := s.start
		s.start++
		if ok {
			s.match = Match{
				Address:  s.region.Base + process.ProcessMemoryAddress(at),
				Captured: captured,
			}
			return true
		}
	}
	return false
}

// matchAt tries the candidate at offset start. When it meets an unreadable
// byte it returns the first address past the unreadable range in resume.
func (s *Scanner) matchAt(start uint64) (captured []byte, ok bool, resume uint64) {
	base := uint64(s.region.Base) + start
	for i := 0; i < s.pattern.Len(); i++ {
		part := s.pattern.At(i)
		b, readable, end := s.byteAt(base + uint64(i))
		if !readable {
			return nil, false, end
		}
		switch part.Kind {
		case pattern.Byte:
			if b != part.Value {
				return nil, false, 0
			}
		case pattern.Take:
			captured = append(captured, b)
		}
	}
	return captured, true, 0
}

// byteAt returns the byte at addr. Only bytes inside a window that Query
// reported readable are ever returned; for anything else it reports the end
// of the unreadable range.
func (s *Scanner) byteAt(addr uint64) (byte, bool, uint64) {
	if !s.cache.contains(addr) {
		s.refill(addr)
	}
	if !s.cache.readable {
		return 0, false, s.cache.end
	}
	return s.cache.data[addr-s.cache.base], true, 0
}

func (s *Scanner) refill(addr uint64) {
	page, err := s.mem.Query(process.ProcessMemoryAddress(addr))
	if err != nil || page.Size == 0 || !page.Contains(process.ProcessMemoryAddress(addr)) {
		base := addr &^ (pageSize - 1)
		s.setUnreadable(base, base+pageSize)
		return
	}
	if !page.Readable {
		s.setUnreadable(uint64(page.Base), uint64(page.End()))
		return
	}

	// read one chunk, aligned to the chunk size and clipped to the page run
	// and the region. Inside a chunk that already failed, read page by page.
	size := s.cfg.chunkSize
	if addr < s.failedEnd {
		size = pageSize
	}
	base := addr - addr%size
	end := base + size
	base = max(base, uint64(page.Base), uint64(s.region.Base))
	end = min(end, uint64(page.End()), uint64(s.region.End()))

	if s.read(base, end) {
		return
	}
	if end-base <= pageSize {
		s.setUnreadable(base, end)
		return
	}

	// one bad page must not hide the rest of the chunk
	s.failedEnd = end
	pageBase := addr &^ (pageSize - 1)
	base, end = max(pageBase, base), min(pageBase+pageSize, end)
	if !s.read(base, end) {
		s.setUnreadable(base, end)
	}
}

// read fills the cache with [base, end) and reports whether it succeeded.
func (s *Scanner) read(base, end uint64) bool {
	data, err := s.mem.ReadMemory(process.ProcessMemoryAddress(base), process.ProcessMemorySize(end-base))
	if err != nil || uint64(len(data)) != end-base {
		s.cfg.log.Debugln("read of", end-base, "bytes failed at", fmt.Sprintf("0x%x", base), err)
		return false
	}
	s.cache = window{base: base, end: end, readable: true, data: data, valid: true}
	return true
}

func (s *Scanner) setUnreadable(base, end uint64) {
	if end <= base {
		end = base + 1
	}
	s.cache = window{base: base, end: end, valid: true}
}

// Match returns the most recent match.
func (s *Scanner) Match() Match {
	return s.match
}

// Err returns the context error that stopped the scan, if any. Unreadable
// memory is never an error.
func (s *Scanner) Err() error {
	return s.err
}

// Skipped returns how many candidate offsets were stepped over because
// their window touched unreadable memory.
func (s *Scanner) Skipped() uint64 {
	return s.skipped
}

// All yields the remaining matches.
func (s *Scanner) All() iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for s.Next() {
			if !yield(s.match) {
				return
			}
		}
	}
}

// Collect drains the scanner.
func (s *Scanner) Collect() ([]Match, error) {
	var matches []Match
	for s.Next() {
		matches = append(matches, s.match)
	}
	return matches, s.err
}
