package memscan

import (
	"errors"
	"iter"
	"sort"

	"sigscan/pattern"
	"sigscan/process"
)

// Target is memory that can also resolve its modules, such as an open
// process.
type Target interface {
	process.Memory
	process.ModuleResolver
}

// ScanModule scans the named module of the calling process. Resolution
// errors are returned before any memory is read and satisfy
// errors.Is(err, process.ErrModuleNotFound) when the module is not loaded.
func ScanModule(name string, p pattern.Pattern, options ...Option) (*Scanner, error) {
	self, err := openSelf()
	if err != nil {
		return nil, &process.ModuleError{Name: name, Err: err}
	}
	return ScanProcessModule(self, name, p, options...)
}

// ScanProcessModule scans the named module of target.
func ScanProcessModule(target Target, name string, p pattern.Pattern, options ...Option) (*Scanner, error) {
	module, err := ResolveModule(target, name)
	if err != nil {
		return nil, err
	}

	s := New(target, module.Region(), p, options...)
	s.cfg.log.Debugln("Scanning module", module.Name, "at", module.Region().String())
	return s, nil
}

// ResolveModule looks up name and makes sure failures come back as a
// *process.ModuleError.
func ResolveModule(resolver process.ModuleResolver, name string) (process.Module, error) {
	module, err := resolver.FindModule(name)
	if err != nil {
		var moduleErr *process.ModuleError
		if errors.As(err, &moduleErr) {
			return process.Module{}, err
		}
		return process.Module{}, &process.ModuleError{Name: name, Err: err}
	}
	if module.Size == 0 {
		return process.Module{}, &process.ModuleError{Name: name, Err: process.ErrModuleNotFound}
	}
	return module, nil
}

// ScanRegions scans each region in turn, lowest address first.
func ScanRegions(mem process.Memory, regions []process.Region, p pattern.Pattern, options ...Option) iter.Seq[Match] {
	sorted := append([]process.Region(nil), regions...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Base < sorted[j].Base
	})

	return func(yield func(Match) bool) {
		for _, region := range sorted {
			for m := range New(mem, region, p, options...).All() {
				if !yield(m) {
					return
				}
			}
		}
	}
}
