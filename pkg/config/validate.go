package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against its struct tags plus the
// cross-field rules the tags can't express.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		msgs := make([]string, 0, len(errs))
		for _, fe := range errs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q validation (value %v)",
				fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}

	return validateCrossField(cfg)
}

func validateCrossField(cfg *Config) error {
	if cfg.Chunking.MinChunkSizeInBytes > cfg.Chunking.MaxChunkSizeInBytes {
		return fmt.Errorf("chunking: min_chunk_size %d exceeds max_chunk_size %d",
			cfg.Chunking.MinChunkSizeInBytes, cfg.Chunking.MaxChunkSizeInBytes)
	}
	if cfg.Chunking.MaxChunkSizeInBytes > AbsoluteMaxChunkSize {
		return fmt.Errorf("chunking: max_chunk_size %d exceeds the absolute maximum %d",
			cfg.Chunking.MaxChunkSizeInBytes, AbsoluteMaxChunkSize)
	}

	seen := make(map[string]struct{}, len(cfg.Providers.Enabled))
	for _, id := range cfg.Providers.Enabled {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("providers: %q enabled more than once", id)
		}
		seen[id] = struct{}{}

		if id == "s3" && cfg.Providers.S3.Bucket == "" {
			return fmt.Errorf("providers: s3 enabled but no bucket configured")
		}
	}
	return nil
}
