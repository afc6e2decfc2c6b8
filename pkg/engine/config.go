// Package engine implements the chunk pipeline: adaptive sizing, parallel
// hash and compression, round-robin placement across storage providers,
// and verified reassembly.
package engine

// Chunk size bounds and defaults, in bytes.
const (
	// DefaultMinChunkSize is the smallest chunk the planner emits (32 KiB).
	DefaultMinChunkSize = 32 << 10

	// DefaultMaxChunkSize is the default upper bound (4 MiB).
	DefaultMaxChunkSize = 4 << 20

	// AbsoluteMaxChunkSize caps operator overrides of the upper bound
	// (10 MiB).
	AbsoluteMaxChunkSize = 10 << 20

	// DefaultTargetChunkSize is the planner's default target (1 MiB).
	DefaultTargetChunkSize = 1 << 20

	// DefaultMaxParallelTasks bounds in-flight chunk workers per split.
	DefaultMaxParallelTasks = 4
)

// Config contains the engine's tuning knobs.
type Config struct {
	// MinChunkSize is the planner's lower bound. Default 32 KiB.
	MinChunkSize int64

	// MaxChunkSize is the planner's upper bound. Default 4 MiB, raisable
	// to AbsoluteMaxChunkSize.
	MaxChunkSize int64

	// DefaultChunkSize is the planner's target for mid-sized files.
	// Default 1 MiB.
	DefaultChunkSize int64

	// CompressionEnabled gzip-wraps chunk payloads before the put.
	CompressionEnabled bool

	// CompressionLevel is the 1-9 setting mapped onto the codec's
	// three-way choice. Default 6.
	CompressionLevel int

	// MaxParallelTasks bounds simultaneous chunk workers. Default 4.
	MaxParallelTasks int
}

func (c *Config) applyDefaults() {
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = DefaultMinChunkSize
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = DefaultMaxChunkSize
	}
	if c.MaxChunkSize > AbsoluteMaxChunkSize {
		c.MaxChunkSize = AbsoluteMaxChunkSize
	}
	if c.DefaultChunkSize <= 0 {
		c.DefaultChunkSize = DefaultTargetChunkSize
	}
	if c.CompressionLevel <= 0 {
		c.CompressionLevel = 6
	}
	if c.MaxParallelTasks <= 0 {
		c.MaxParallelTasks = DefaultMaxParallelTasks
	}
}

// OptimalChunkSize returns the target chunk length for a file size. The
// policy is a pure step function, non-decreasing in the file size, and its
// result is always within [MinChunkSize, MaxChunkSize].
func (c Config) OptimalChunkSize(fileSize int64) int64 {
	c.applyDefaults()

	var target int64
	switch {
	case fileSize <= 0:
		target = c.DefaultChunkSize
	case fileSize <= c.MinChunkSize:
		target = c.MinChunkSize
	case fileSize < 1<<20:
		target = max(c.MinChunkSize, fileSize)
	case fileSize < 10<<20:
		target = max(c.MinChunkSize, min(1<<20, c.DefaultChunkSize))
	case fileSize < 100<<20:
		target = max(2<<20, min(c.DefaultChunkSize, fileSize/10))
	case fileSize < 1<<30:
		target = min(5<<20, c.MaxChunkSize)
	case fileSize < 10<<30:
		target = min(10<<20, c.MaxChunkSize)
	default:
		target = c.MaxChunkSize
	}

	// Operator overrides can push a row outside the bounds; clamp.
	return min(max(target, c.MinChunkSize), c.MaxChunkSize)
}
