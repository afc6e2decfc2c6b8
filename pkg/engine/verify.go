package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/metadata"
	"github.com/chunkvault/chunkvault/pkg/storage"
)

// VerifyChunks re-fetches every chunk of the file and compares its
// uncompressed payload against the stored per-chunk checksum. It returns
// the ids of chunks that are missing, unreadable, or corrupt. Backend
// errors other than not-found abort the scan.
func (e *Engine) VerifyChunks(ctx context.Context, fileID string) ([]string, error) {
	chunks, err := e.loadChunks(ctx, fileID)
	if err != nil {
		return nil, err
	}

	var bad []string
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ok, err := e.verifyChunk(ctx, c)
		if err != nil {
			return nil, err
		}
		if !ok {
			bad = append(bad, c.ID)
		}
	}

	if len(bad) > 0 {
		logger.WarnCtx(ctx, "chunk verification found damage",
			logger.KeyFileID, fileID,
			logger.KeyChunkCount, len(chunks),
			logger.KeyCount, len(bad))
	}
	return bad, nil
}

func (e *Engine) verifyChunk(ctx context.Context, c *metadata.ChunkRecord) (bool, error) {
	provider, ok := e.providers.Get(c.ProviderID)
	if !ok {
		logger.WarnCtx(ctx, "chunk provider not enabled",
			logger.KeyChunkID, c.ID,
			logger.KeyProviderID, c.ProviderID)
		return false, nil
	}

	data, err := provider.Get(ctx, c.ID, c.StoragePath)
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	h := sha256.New()
	if c.IsCompressed {
		// A truncated or garbled gzip stream counts as corruption, not as
		// a backend error.
		if _, err := decompressTo(h, data); err != nil {
			return false, nil
		}
	} else {
		h.Write(data)
	}

	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), c.Checksum), nil
}
