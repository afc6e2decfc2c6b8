package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/internal/telemetry"
	"github.com/chunkvault/chunkvault/pkg/cache"
	"github.com/chunkvault/chunkvault/pkg/metadata"
)

// Verdict is the outcome of an integrity verification. Verdicts are cached
// with a short TTL so repeated checks of a hot file don't re-download it.
type Verdict struct {
	FileID    string    `json:"fileId"`
	Verified  bool      `json:"verified"`
	Deep      bool      `json:"deep"`
	BadChunks []string  `json:"badChunks,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Verify recomputes the whole-file SHA-256 from the stored chunks and
// compares it against the record's checksum. Deep mode additionally checks
// every chunk payload against its own stored digest and reports the broken
// ids. Verification never mutates stored data.
//
// Concurrent verifications are bounded by the configured semaphore; they
// hold decompression state and are memory-heavy.
func (s *Service) Verify(ctx context.Context, fileID string, deep bool) (verdict *Verdict, err error) {
	ctx, scope := logger.BeginOperation(ctx, "verify", logger.KeyFileID, fileID)
	scope.SetEntity(fileID)
	defer scope.End()
	ctx, span := telemetry.StartFileSpan(ctx, "verify", fileID, telemetry.Deep(deep))
	defer span.End()
	defer func() {
		if err != nil {
			scope.Fail(err)
			telemetry.RecordError(ctx, err)
		}
		if verdict != nil {
			span.SetAttributes(telemetry.Verified(verdict.Verified))
		}
	}()

	// A cached verdict short-circuits, but a shallow verdict can't answer a
	// deep request.
	if s.cache != nil {
		var cached Verdict
		if s.cache.Get(ctx, cache.KeyVerdict(fileID), &cached) && (cached.Deep || !deep) {
			logger.DebugCtx(ctx, "verdict served from cache",
				logger.KeyFileID, fileID,
				logger.KeyCacheHit, true)
			return &cached, nil
		}
	}

	if err := s.verifySem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.verifySem.Release(1)

	record, err := s.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if record.Status != metadata.FileStatusCompleted {
		return nil, fmt.Errorf("file %s has status %q: %w", fileID, record.Status, ErrFileNotReady)
	}

	verdict = &Verdict{
		FileID:    fileID,
		Deep:      deep,
		CheckedAt: time.Now().UTC(),
	}

	// Whole-file check: stream the merged bytes straight into the hasher.
	// A merge that cannot complete (missing or unreadable chunk) is a
	// failed verification, not an operational error.
	h := sha256.New()
	if mergeErr := s.engine.Merge(ctx, fileID, h); mergeErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WarnCtx(ctx, "merge failed during verification",
			logger.KeyFileID, fileID,
			logger.KeyError, mergeErr.Error())
		verdict.Verified = false
	} else {
		actual := hex.EncodeToString(h.Sum(nil))
		verdict.Verified = strings.EqualFold(actual, record.Checksum)
		if !verdict.Verified {
			logger.WarnCtx(ctx, "file failed checksum verification",
				logger.KeyFileID, fileID,
				"expected_checksum", record.Checksum,
				"actual_checksum", actual)
		}
	}

	if deep {
		bad, err := s.engine.VerifyChunks(ctx, fileID)
		if err != nil {
			return nil, err
		}
		verdict.BadChunks = bad
		if len(bad) > 0 {
			verdict.Verified = false
		}
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cache.KeyVerdict(fileID), verdict, s.cfg.VerdictTTL); err != nil {
			logger.WarnCtx(ctx, "failed to cache verdict",
				logger.KeyFileID, fileID,
				logger.KeyError, err.Error())
		}
	}
	return verdict, nil
}
