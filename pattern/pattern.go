// Package pattern compiles textual byte signatures such as
// "48 8B ?? ** ** ** ** C3" into a Pattern.
//
// Tokens are separated by single spaces and compared case-insensitively:
//
//	??  matches any byte
//	**  matches any byte and captures it
//	XX  two hex digits, matches exactly that byte
package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidToken is matched by every compile error.
	ErrInvalidToken = errors.New("invalid pattern token")

	// ErrEmptyPattern is returned for a signature without any token.
	ErrEmptyPattern = errors.New("empty pattern")
)

// Kind is the type of a pattern part.
type Kind uint8

const (
	Byte Kind = iota // match Value exactly
	Skip             // match any byte
	Take             // match any byte and capture it
)

func (k Kind) String() string {
	switch k {
	case Byte:
		return "Byte"
	case Skip:
		return "Skip"
	case Take:
		return "Take"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Part is one position of a pattern. Value is only meaningful for Byte.
type Part struct {
	Kind  Kind
	Value byte
}

func (p Part) String() string {
	switch p.Kind {
	case Skip:
		return "??"
	case Take:
		return "**"
	}
	return fmt.Sprintf("%02X", p.Value)
}

// Matches reports whether b satisfies the part.
func (p Part) Matches(b byte) bool {
	return p.Kind != Byte || p.Value == b
}

// TokenError reports a token that could not be compiled.
type TokenError struct {
	Index  int    // token position, 0 based
	Token  string // offending token as written
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err == ErrEmptyPattern {
		return "pattern: empty pattern"
	}
	return fmt.Sprintf("pattern: token %d %q: %s", e.Index, e.Token, e.Reason)
}

func (e *TokenError) Unwrap() []error {
	if e.Err == nil || e.Err == ErrInvalidToken {
		return []error{ErrInvalidToken}
	}
	return []error{ErrInvalidToken, e.Err}
}

// Pattern is an immutable sequence of parts. The zero value is empty and
// matches nothing; New never returns it without an error.
type Pattern struct {
	parts []Part
}

// New compiles a signature. It stops at the first invalid token.
func New(text string) (Pattern, error) {
	if text == "" {
		return Pattern{}, &TokenError{Reason: "no tokens", Err: ErrEmptyPattern}
	}

	tokens := strings.Split(text, " ")
	parts := make([]Part, 0, len(tokens))
	for i, token := range tokens {
		part, err := parseToken(token)
		if err != nil {
			return Pattern{}, &TokenError{Index: i, Token: token, Reason: err.Error(), Err: ErrInvalidToken}
		}
		parts = append(parts, part)
	}

	return Pattern{parts: parts}, nil
}

// MustNew is like New but panics on error. Meant for package level tables.
func MustNew(text string) Pattern {
	p, err := New(text)
	if err != nil {
		panic(err)
	}
	return p
}

func parseToken(token string) (Part, error) {
	switch token {
	case "??":
		return Part{Kind: Skip}, nil
	case "**":
		return Part{Kind: Take}, nil
	case "":
		return Part{}, errors.New("empty token")
	}

	if len(token) != 2 {
		return Part{}, fmt.Errorf("want 2 hex digits, got %d characters", len(token))
	}
	v, err := strconv.ParseUint(token, 16, 8)
	if err != nil {
		return Part{}, errors.New("not a hex byte")
	}
	return Part{Kind: Byte, Value: byte(v)}, nil
}

// Len returns the number of bytes a match spans.
func (p Pattern) Len() int {
	return len(p.parts)
}

// At returns the i-th part.
func (p Pattern) At(i int) Part {
	return p.parts[i]
}

// Parts returns a copy of the parts.
func (p Pattern) Parts() []Part {
	return append([]Part(nil), p.parts...)
}

// Captures returns the number of Take parts.
func (p Pattern) Captures() int {
	return p.count(Take)
}

// Fixed returns the number of Byte parts.
func (p Pattern) Fixed() int {
	return p.count(Byte)
}

func (p Pattern) count(kind Kind) int {
	n := 0
	for _, part := range p.parts {
		if part.Kind == kind {
			n++
		}
	}
	return n
}

// Equal reports whether both patterns have the same parts.
func (p Pattern) Equal(other Pattern) bool {
	if len(p.parts) != len(other.parts) {
		return false
	}
	for i := range p.parts {
		if p.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// String renders the pattern in canonical upper-case form; New(p.String())
// yields an equal pattern.
func (p Pattern) String() string {
	var sb strings.Builder
	for i, part := range p.parts {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(part.String())
	}
	return sb.String()
}

// MatchAt reports whether data starts with a match and returns the captured
// bytes in encounter order.
func (p Pattern) MatchAt(data []byte) ([]byte, bool) {
	if len(p.parts) == 0 || len(data) < len(p.parts) {
		return nil, false
	}
	var captured []byte
	for i, part := range p.parts {
		if !part.Matches(data[i]) {
			return nil, false
		}
		if part.Kind == Take {
			captured = append(captured, data[i])
		}
	}
	return captured, true
}
