package memscan

import (
	"context"
	"os"
	"runtime"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	// DefaultChunkSize is how much validated memory is read at once.
	DefaultChunkSize = 64 * 1024

	// candidates between two context checks
	ctxCheckInterval = 1 << 16
)

type config struct {
	ctx       context.Context
	chunkSize uint64
	workers   int
	log       *logger.Logger
}

// Option configures a Scanner or a parallel scan
type Option func(*config)

func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// WithChunkSize sets the read granularity. It is rounded up to at least one byte.
func WithChunkSize(size uint64) Option {
	return func(c *config) {
		if size == 0 {
			size = 1
		}
		c.chunkSize = size
	}
}

// WithWorkers sets the number of goroutines used by ScanParallel.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// pageSize is the unit skipped when a query fails and the unit retried when
// a chunk read fails.
var pageSize = uint64(os.Getpagesize())

var defaultLog = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "memscan"))

func newConfig(options []Option) config {
	c := config{
		ctx:       context.Background(),
		chunkSize: DefaultChunkSize,
		workers:   runtime.NumCPU(),
		log:       defaultLog,
	}
	for _, opt := range options {
		opt(&c)
	}
	return c
}
