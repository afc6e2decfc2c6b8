// Package config loads, validates, and wires the chunkvault configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CHUNKVAULT_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/chunkvault/chunkvault/internal/bytesize"
)

// Config is the full chunkvault configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Store configures the metadata document database.
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Chunking configures the chunk size planner and compression.
	Chunking ChunkingConfig `mapstructure:"chunking" yaml:"chunking"`

	// Distribution configures parallelism across the pipeline.
	Distribution DistributionConfig `mapstructure:"distribution" yaml:"distribution"`

	// Providers configures the enabled storage backends. The order of the
	// enabled list fixes round-robin chunk placement.
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`

	// Cache configures the metadata cache.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Metrics controls Prometheus metrics collection.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether tracing is active. Default: false.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	// Default: "localhost:4317".
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector. Default: true.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling rate (0.0 to 1.0). Default: 1.0.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether profiling is active. Default: false.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL. Default: "http://localhost:4040".
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes selects the profiles to collect.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// StoreConfig configures the metadata document database.
type StoreConfig struct {
	// Path is the database directory.
	// Default: $XDG_DATA_HOME/chunkvault/metadata (or ~/.local/share/...).
	Path string `mapstructure:"path" yaml:"path"`

	// LogTTL is the retention horizon for the operation logs collection.
	// Default: 720h (30 days).
	LogTTL time.Duration `mapstructure:"log_ttl" yaml:"log_ttl"`

	// GCInterval is how often value-log garbage collection runs.
	// Default: 10m. Zero disables background GC.
	GCInterval time.Duration `mapstructure:"gc_interval" yaml:"gc_interval"`
}

// ChunkingConfig configures the chunk size planner and compression.
type ChunkingConfig struct {
	// MinChunkSizeInBytes is the planner's lower bound. Default: 32Ki.
	MinChunkSizeInBytes bytesize.ByteSize `mapstructure:"min_chunk_size" yaml:"min_chunk_size"`

	// MaxChunkSizeInBytes is the planner's upper bound. Default: 4Mi,
	// raisable to 10Mi.
	MaxChunkSizeInBytes bytesize.ByteSize `mapstructure:"max_chunk_size" yaml:"max_chunk_size"`

	// DefaultChunkSizeInBytes is the planner's mid-band target. Default: 1Mi.
	DefaultChunkSizeInBytes bytesize.ByteSize `mapstructure:"default_chunk_size" yaml:"default_chunk_size"`

	// CompressionEnabled gzip-wraps chunk payloads. Default: false.
	CompressionEnabled bool `mapstructure:"compression_enabled" yaml:"compression_enabled"`

	// CompressionLevel is the 1-9 gzip setting. Default: 6.
	CompressionLevel int `mapstructure:"compression_level" validate:"omitempty,min=1,max=9" yaml:"compression_level"`

	// ChecksumAlgorithm is fixed to SHA256; present so configs that state
	// it explicitly validate instead of silently meaning something else.
	ChecksumAlgorithm string `mapstructure:"checksum_algorithm" validate:"omitempty,eq=SHA256" yaml:"checksum_algorithm"`
}

// DistributionConfig configures parallelism.
type DistributionConfig struct {
	// MaxParallelTasks bounds in-flight chunk workers per split. Default: 4.
	MaxParallelTasks int `mapstructure:"max_parallel_tasks" validate:"omitempty,min=1" yaml:"max_parallel_tasks"`

	// VerifyConcurrency bounds simultaneous verifications. Default: 4.
	VerifyConcurrency int `mapstructure:"verify_concurrency" validate:"omitempty,min=1" yaml:"verify_concurrency"`
}

// ProvidersConfig configures the storage backends.
type ProvidersConfig struct {
	// Enabled lists the active providers in placement order.
	// Valid entries: filesystem, objectstore, s3.
	Enabled []string `mapstructure:"enabled" validate:"required,min=1,dive,oneof=filesystem objectstore s3" yaml:"enabled"`

	// Filesystem configures the local-disk provider.
	Filesystem FilesystemProviderConfig `mapstructure:"filesystem" yaml:"filesystem"`

	// ObjectStore configures the embedded object-bucket provider.
	ObjectStore ObjectStoreProviderConfig `mapstructure:"objectstore" yaml:"objectstore"`

	// S3 configures the remote object storage provider.
	S3 S3ProviderConfig `mapstructure:"s3" yaml:"s3"`
}

// FilesystemProviderConfig configures the local-disk provider.
type FilesystemProviderConfig struct {
	// BasePath is the root directory for chunk files.
	// Default: $XDG_DATA_HOME/chunkvault/chunks.
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
}

// ObjectStoreProviderConfig configures the embedded object bucket.
type ObjectStoreProviderConfig struct {
	// Path is the bucket database directory.
	// Default: $XDG_DATA_HOME/chunkvault/objects.
	Path string `mapstructure:"path" yaml:"path"`
}

// S3ProviderConfig configures remote object storage (AWS S3 or any
// S3-compatible backend such as MinIO).
type S3ProviderConfig struct {
	// Bucket is the bucket name. Required when the provider is enabled.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// KeyPrefix is prepended to every object key; normalized to end
	// with "/".
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// Region is the AWS region. Default: "us-east-1".
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint overrides the AWS endpoint for S3-compatible backends.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey are static credentials. Empty values
	// fall back to the ambient AWS credential chain.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// ForcePathStyle uses path-style addressing (required by MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// ServerSideEncryption enables AES256 SSE on put.
	ServerSideEncryption bool `mapstructure:"server_side_encryption" yaml:"server_side_encryption,omitempty"`
}

// CacheConfig configures the metadata cache.
type CacheConfig struct {
	// DefaultExpiryInMinutes is the entry lifetime. Default: 30.
	DefaultExpiryInMinutes int `mapstructure:"default_expiry_minutes" validate:"omitempty,min=1" yaml:"default_expiry_minutes"`
}

// MetricsConfig controls Prometheus metrics collection. When disabled, no
// collectors are created (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location; a missing file is not an
// error and yields the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes the configuration to the given path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions: the file may carry S3 credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables and config file search.
func setupViper(v *viper.Viper, configPath string) {
	// Example: CHUNKVAULT_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("CHUNKVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is reported as (false, nil), not an error.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks combines the custom decode hooks: human-readable byte
// sizes and duration strings.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize so
// configs can say "4Mi" or "32768" interchangeably.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64.
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" or "720h" to durations.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory: $XDG_CONFIG_HOME/
// chunkvault, falling back to ~/.config/chunkvault.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "chunkvault")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "chunkvault")
}

// getDataDir returns the data directory: $XDG_DATA_HOME/chunkvault, falling
// back to ~/.local/share/chunkvault.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "chunkvault")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "chunkvault")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks for a config file at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory (for the init command).
func GetConfigDir() string {
	return getConfigDir()
}
