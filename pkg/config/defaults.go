package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/chunkvault/chunkvault/internal/bytesize"
)

// Chunking defaults, in bytes.
const (
	DefaultMinChunkSize     = bytesize.ByteSize(32 << 10)
	DefaultMaxChunkSize     = bytesize.ByteSize(4 << 20)
	AbsoluteMaxChunkSize    = bytesize.ByteSize(10 << 20)
	DefaultTargetChunkSize  = bytesize.ByteSize(1 << 20)
	DefaultCompressionLevel = 6
)

// ApplyDefaults fills unspecified fields with their defaults. Zero values
// are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyStoreDefaults(&cfg.Store)
	applyChunkingDefaults(&cfg.Chunking)
	applyDistributionDefaults(&cfg.Distribution)
	applyProviderDefaults(&cfg.Providers)
	applyCacheDefaults(&cfg.Cache)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(getDataDir(), "metadata")
	}
	if cfg.LogTTL == 0 {
		cfg.LogTTL = 30 * 24 * time.Hour
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = 10 * time.Minute
	}
}

func applyChunkingDefaults(cfg *ChunkingConfig) {
	if cfg.MinChunkSizeInBytes == 0 {
		cfg.MinChunkSizeInBytes = DefaultMinChunkSize
	}
	if cfg.MaxChunkSizeInBytes == 0 {
		cfg.MaxChunkSizeInBytes = DefaultMaxChunkSize
	}
	// The operator may raise the ceiling, but only so far.
	if cfg.MaxChunkSizeInBytes > AbsoluteMaxChunkSize {
		cfg.MaxChunkSizeInBytes = AbsoluteMaxChunkSize
	}
	if cfg.DefaultChunkSizeInBytes == 0 {
		cfg.DefaultChunkSizeInBytes = DefaultTargetChunkSize
	}
	if cfg.CompressionLevel == 0 {
		cfg.CompressionLevel = DefaultCompressionLevel
	}
	if cfg.ChecksumAlgorithm == "" {
		cfg.ChecksumAlgorithm = "SHA256"
	}
}

func applyDistributionDefaults(cfg *DistributionConfig) {
	if cfg.MaxParallelTasks == 0 {
		cfg.MaxParallelTasks = 4
	}
	if cfg.VerifyConcurrency == 0 {
		cfg.VerifyConcurrency = 4
	}
}

func applyProviderDefaults(cfg *ProvidersConfig) {
	if len(cfg.Enabled) == 0 {
		cfg.Enabled = []string{"filesystem"}
	}
	if cfg.Filesystem.BasePath == "" {
		cfg.Filesystem.BasePath = filepath.Join(getDataDir(), "chunks")
	}
	if cfg.ObjectStore.Path == "" {
		cfg.ObjectStore.Path = filepath.Join(getDataDir(), "objects")
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.DefaultExpiryInMinutes == 0 {
		cfg.DefaultExpiryInMinutes = 30
	}
}

// GetDefaultConfig returns a Config with every default applied. Used for
// sample file generation and tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
