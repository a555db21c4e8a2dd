package asyncstream

import "fmt"

// Default configuration values
const (
	DefaultBufferSize         = 8 << 20 // 8MB
	DefaultPageSize           = 4096
	DefaultMergeablePagesHint = 16
	DefaultSubStreamsHint     = 1
)

// Config is the ring buffer sizing policy of a Stream.
//
// Every builder method checks its argument and the sufficiency invariant
//
//	bufferSize / (2 * subStreamsHint) >= pageSize * mergeablePagesHint
//
// The first violation is recorded, the offending change is not applied and
// the rest of the chain becomes a no-op. Err reports it. Because the
// invariant is checked after each step, shrink the page geometry before
// shrinking the buffer.
type Config struct {
	bufferSize         int
	pageSize           int
	mergeablePagesHint int
	subStreamsHint     int
	nonBlockingSync    bool

	err error
}

// NewConfig returns the default configuration
func NewConfig() *Config {
	return &Config{
		bufferSize:         DefaultBufferSize,
		pageSize:           DefaultPageSize,
		mergeablePagesHint: DefaultMergeablePagesHint,
		subStreamsHint:     DefaultSubStreamsHint,
	}
}

// BufferSize sets the ring buffer size in bytes
func (c *Config) BufferSize(n int) *Config {
	return c.update("buffer size", n, func(next *Config) { next.bufferSize = n })
}

// PageSize sets the page size in bytes
func (c *Config) PageSize(n int) *Config {
	return c.update("page size", n, func(next *Config) { next.pageSize = n })
}

// MergeablePagesHint sets how many pages a single write reservation spans
func (c *Config) MergeablePagesHint(n int) *Config {
	return c.update("mergeable pages hint", n, func(next *Config) { next.mergeablePagesHint = n })
}

// SubStreamsHint sets how many writers are expected to share the buffer
func (c *Config) SubStreamsHint(n int) *Config {
	return c.update("sub streams hint", n, func(next *Config) { next.subStreamsHint = n })
}

// EnableNonBlockingSync makes Sync enqueue its barrier and return at once
func (c *Config) EnableNonBlockingSync() *Config {
	if c.err == nil {
		c.nonBlockingSync = true
	}
	return c
}

func (c *Config) update(param string, n int, apply func(next *Config)) *Config {
	if c.err != nil {
		return c
	}
	if n <= 0 {
		c.err = invalidConfig("%s must be positive, got %d", param, n)
		return c
	}
	next := *c
	apply(&next)
	if err := next.Validate(); err != nil {
		c.err = err
		return c
	}
	*c = next
	return c
}

// Err returns the first error recorded by a builder method
func (c *Config) Err() error {
	return c.err
}

// Validate checks every field and the sufficiency invariant
func (c *Config) Validate() error {
	switch {
	case c.bufferSize <= 0:
		return invalidConfig("buffer size must be positive, got %d", c.bufferSize)
	case c.pageSize <= 0:
		return invalidConfig("page size must be positive, got %d", c.pageSize)
	case c.mergeablePagesHint <= 0:
		return invalidConfig("mergeable pages hint must be positive, got %d", c.mergeablePagesHint)
	case c.subStreamsHint <= 0:
		return invalidConfig("sub streams hint must be positive, got %d", c.subStreamsHint)
	}
	// compared by division so huge hints cannot overflow the product
	perSubStream := c.bufferSize / 2 / c.subStreamsHint
	if c.mergeablePagesHint > perSubStream/c.pageSize {
		return invalidConfig("buffer size %d too small for %d sub streams of %d pages of %d bytes",
			c.bufferSize, c.subStreamsHint, c.mergeablePagesHint, c.pageSize)
	}
	return nil
}

// GetBufferSize returns the ring buffer size in bytes
func (c *Config) GetBufferSize() int { return c.bufferSize }

// GetPageSize returns the page size in bytes
func (c *Config) GetPageSize() int { return c.pageSize }

// GetMergeablePagesHint returns the pages per reservation
func (c *Config) GetMergeablePagesHint() int { return c.mergeablePagesHint }

// GetSubStreamsHint returns the expected number of writers
func (c *Config) GetSubStreamsHint() int { return c.subStreamsHint }

// NonBlockingSync reports whether Sync returns without waiting
func (c *Config) NonBlockingSync() bool { return c.nonBlockingSync }

// preallocationSize is the minimum reservation made for a new write
func (c *Config) preallocationSize() int {
	return c.pageSize * c.mergeablePagesHint
}

// lowWater is the buffer fill level at which Write wakes the writer
func (c *Config) lowWater() int {
	return min(max(2*c.preallocationSize(), c.bufferSize/10), c.bufferSize/2)
}

func (c *Config) String() string {
	return fmt.Sprintf("buffer=%d page=%d mergeablePages=%d subStreams=%d nonBlockingSync=%t",
		c.bufferSize, c.pageSize, c.mergeablePagesHint, c.subStreamsHint, c.nonBlockingSync)
}
