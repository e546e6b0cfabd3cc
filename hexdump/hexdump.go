// Package hexdump renders the bytes around a match, highlighting the bytes
// the pattern fixed and the bytes it captured.
package hexdump

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"sigscan/pattern"
	"sigscan/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Options controls the layout of a dump.
type Options struct {
	// BytesPerLine defaults to 16
	BytesPerLine int

	// Address is the address of data[0]; it labels the offset column
	Address uint64

	// Color enables ANSI colors
	Color bool

	// MaxLines limits the output, 0 for no limit
	MaxLines int
}

func DefaultOptions() Options {
	return Options{BytesPerLine: 16, Color: true}
}

// Highlight marks a pattern occurrence starting at Offset into the data.
type Highlight struct {
	Offset  int
	Pattern pattern.Pattern
}

type class int

const (
	plain class = iota
	zero
	fixed
	skipped
	captured
)

// classify assigns every byte of data to the part that covers it, if any.
// Later highlights win where they overlap.
func classify(data []byte, highlights []Highlight) []class {
	classes := make([]class, len(data))
	for i, b := range data {
		if b == 0 {
			classes[i] = zero
		}
	}
	for _, h := range highlights {
		for i, part := range h.Pattern.Parts() {
			at := h.Offset + i
			if at < 0 || at >= len(data) {
				continue
			}
			switch part.Kind {
			case pattern.Byte:
				classes[at] = fixed
			case pattern.Skip:
				classes[at] = skipped
			case pattern.Take:
				classes[at] = captured
			}
		}
	}
	return classes
}

func paint(c class, text string, color bool) string {
	if !color {
		return text
	}
	switch c {
	case zero:
		return coloransi.Foreground(coloransi.BrightBlack, text)
	case fixed:
		return coloransi.Color(coloransi.Black, coloransi.Yellow, text)
	case skipped:
		return coloransi.Foreground(coloransi.Yellow, text)
	case captured:
		return coloransi.Color(coloransi.Black, coloransi.Cyan, text)
	}
	return text
}

// Dump renders data as a hex dump
func Dump(data []byte, options Options, highlights ...Highlight) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options, highlights...)
	return buffer.String()
}

// DumpToWriter writes a hex dump of data to writer.
//
//	00007f12a4c01000  48 8b 05 11 22 33 44 00 | 00 00 00 00 00 00 00 00  H..."3D. ........
func DumpToWriter(writer io.Writer, data []byte, options Options, highlights ...Highlight) {
	perLine := options.BytesPerLine
	if perLine <= 0 {
		perLine = 16
	}
	classes := classify(data, highlights)

	for line, offset := 0, 0; offset < len(data); line, offset = line+1, offset+perLine {
		if options.MaxLines > 0 && line >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			return
		}
		end := min(offset+perLine, len(data))

		var hex, ascii strings.Builder
		for i := offset; i < offset+perLine; i++ {
			if i > offset {
				hex.WriteByte(' ')
				if i-offset == perLine/2 && perLine >= 8 {
					hex.WriteString("| ")
					if i < end {
						ascii.WriteByte(' ')
					}
				}
			}
			if i >= end {
				hex.WriteString("  ")
				continue
			}
			hex.WriteString(paint(classes[i], fmt.Sprintf("%02x", data[i]), options.Color))
			ascii.WriteString(paint(classes[i], printable(data[i]), options.Color))
		}

		fmt.Fprintf(writer, "%016x  %s  %s\n", options.Address+uint64(offset), hex.String(), ascii.String())
	}
}

func printable(b byte) string {
	if b >= 0x20 && b < 0x7f {
		return string(rune(b))
	}
	return "."
}

// ReadAround reads up to context bytes either side of the size bytes at addr.
// The read is clipped to the readable page run containing addr, so it never
// touches memory Query has not vouched for.
func ReadAround(mem process.Memory, addr process.ProcessMemoryAddress, size, context uint64) ([]byte, process.ProcessMemoryAddress, error) {
	page, err := mem.Query(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("query 0x%x: %w", uint64(addr), err)
	}
	if !page.Readable || !page.Contains(addr) {
		return nil, 0, fmt.Errorf("0x%x: %w", uint64(addr), process.ErrAddressNotMapped)
	}

	start := uint64(page.Base)
	if uint64(addr)-start > context {
		start = uint64(addr) - context
	}
	end := min(uint64(addr)+size+context, uint64(page.End()))

	data, err := mem.ReadMemory(process.ProcessMemoryAddress(start), process.ProcessMemorySize(end-start))
	if err != nil {
		return nil, 0, err
	}
	return data, process.ProcessMemoryAddress(start), nil
}
