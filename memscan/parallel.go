package memscan

import (
	"fmt"
	"runtime"
	"sync"

	"sigscan/pattern"
	"sigscan/process"
)

// minShardSize keeps tiny regions on one goroutine.
const minShardSize = 1 << 20

// ScanParallel scans region with several goroutines. The candidate start
// offsets are split into disjoint shards; each shard reads up to
// p.Len()-1 bytes past its last candidate so that matches straddling a
// shard boundary are found exactly once. mem must be safe for concurrent
// use. The result is in increasing address order and equals what a single
// Scanner would return.
func ScanParallel(mem process.Memory, region process.Region, p pattern.Pattern, options ...Option) ([]Match, error) {
	cfg := newConfig(options)
	n := uint64(p.Len())
	if n == 0 || uint64(region.Size) < n {
		return nil, nil
	}

	workers := cfg.workers
	if numCPU := runtime.NumCPU(); workers > numCPU {
		cfg.log.Debugln("Limiting workers to number of CPUs:", numCPU)
		workers = numCPU
	}
	if workers < 1 {
		workers = 1
	}

	shards := shardRegion(region, n, uint64(workers))
	cfg.log.Infoln("Starting parallel scan of", region.String(), "with", len(shards), "shards")

	results := make([][]Match, len(shards))
	errs := make([]error, len(shards))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, shard := range shards {
		wg.Add(1)

		// Acquire a semaphore slot
		sem <- struct{}{}

		go func(i int, shard process.Region) {
			defer func() {
				<-sem
				wg.Done()
			}()

			results[i], errs[i] = New(mem, shard, p, options...).Collect()
		}(i, shard)
	}

	wg.Wait()

	var matches []Match
	for i := range shards {
		if errs[i] != nil {
			return nil, fmt.Errorf("scan shard %s: %w", shards[i].String(), errs[i])
		}
		matches = append(matches, results[i]...)
	}

	cfg.log.Infoln("Parallel scan complete, found", len(matches), "matches")
	return matches, nil
}

// shardRegion splits the candidate offsets [0, size-n] of region into at
// most count ranges and widens each by n-1 bytes of lookahead.
func shardRegion(region process.Region, n, count uint64) []process.Region {
	size := uint64(region.Size)
	candidates := size - n + 1

	per := (candidates + count - 1) / count
	if per < minShardSize {
		per = min(minShardSize, candidates)
	}

	var shards []process.Region
	for first := uint64(0); first < candidates; first += per {
		last := min(first+per, candidates) // exclusive
		shards = append(shards, process.Region{
			Base: region.Base + process.ProcessMemoryAddress(first),
			Size: process.ProcessMemorySize(last - first + n - 1),
		})
	}
	return shards
}
