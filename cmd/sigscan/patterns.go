package main

import (
	"fmt"
	"strconv"

	"sigscan/pattern"
	"sigscan/sigfile"
)

// compilePattern turns the pattern argument into a Pattern according to
// --type. "hex" is the signature syntax; the other types search for an
// encoded value.
func compilePattern(text, kind string) (pattern.Pattern, error) {
	switch kind {
	case "", "hex":
		return pattern.New(text)
	case "string":
		return pattern.FromString(text, 0)
	case "utf16":
		return pattern.FromUTF16(text)
	case "u8", "u16", "u32", "u64":
		bits, _ := strconv.Atoi(kind[1:])
		v, err := strconv.ParseUint(text, 0, bits)
		if err != nil {
			return pattern.Pattern{}, fmt.Errorf("parsing %s value: %w", kind, err)
		}
		return pattern.FromUint(v, bits/8)
	case "f32":
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return pattern.Pattern{}, fmt.Errorf("parsing f32 value: %w", err)
		}
		return pattern.FromFloat32(float32(f))
	case "f64":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return pattern.Pattern{}, fmt.Errorf("parsing f64 value: %w", err)
		}
		return pattern.FromFloat64(f)
	}
	return pattern.Pattern{}, fmt.Errorf("unknown pattern type: %s", kind)
}

// loadSignatures returns the signatures named by --sigs, or a single
// unnamed signature built from the pattern argument.
func loadSignatures(args []string, sigsPath, kind, module string) ([]sigfile.Signature, error) {
	if sigsPath != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("pattern argument and --sigs are mutually exclusive")
		}
		signatures, err := sigfile.Load(sigsPath)
		if err != nil {
			return nil, fmt.Errorf("loading signatures: %w", err)
		}
		for i := range signatures {
			if signatures[i].Module == "" {
				signatures[i].Module = module
			}
		}
		return signatures, nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("expected a pattern argument or --sigs")
	}
	p, err := compilePattern(args[0], kind)
	if err != nil {
		return nil, err
	}
	return []sigfile.Signature{{Name: "pattern", Module: module, Pattern: p}}, nil
}
