// Package s3 provides a chunk storage provider for Amazon S3 and
// S3-compatible backends.
//
// Object keys follow <keyPrefix><prefix>/<sanitizedChunkId>.chunk where the
// prefix is the two-character fan-out of the sanitized id. Every object
// carries ChunkId, CorrelationId, and UploadTimestamp metadata; server-side
// encryption (AES256) is optional and never relied on for integrity, which
// the engine verifies end to end.
package s3

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/chunkvault/chunkvault/internal/logger"
	"github.com/chunkvault/chunkvault/pkg/metrics"
	"github.com/chunkvault/chunkvault/pkg/storage"
)

// DefaultProviderID is the registry id when config doesn't override it.
const DefaultProviderID = "s3"

// Object metadata keys stamped on every chunk.
const (
	metaChunkID         = "chunkid"
	metaCorrelationID   = "correlationid"
	metaUploadTimestamp = "uploadtimestamp"
)

// Config contains configuration for the S3 provider.
type Config struct {
	// ProviderID overrides the registry id. Default: "s3".
	ProviderID string

	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is prepended to every object key. Normalized to end with
	// "/" when non-empty.
	KeyPrefix string

	// ServerSideEncryption enables AES256 SSE on put.
	ServerSideEncryption bool

	// MaxRetries is the retry budget for transient errors (default 3).
	MaxRetries int

	// InitialBackoff is the first retry delay (default 100ms); subsequent
	// retries double it up to MaxBackoff (default 2s).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Provider is the S3 implementation of storage.Provider.
//
// Thread Safety: safe for concurrent use; the AWS client is goroutine-safe
// and the provider keeps no mutable state.
type Provider struct {
	id        string
	client    *s3.Client
	bucket    string
	keyPrefix string
	sse       bool
	retry     retryConfig
	metrics   metrics.StorageMetrics
}

type retryConfig struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Compile-time check that Provider implements storage.Provider.
var _ storage.Provider = (*Provider)(nil)

// NewClient creates an S3 client from flat configuration values. Endpoint
// and path-style addressing support S3-compatible backends like MinIO.
func NewClient(ctx context.Context, endpoint, region, accessKeyID, secretAccessKey string, forcePathStyle bool) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, storage.NewBackendConfig(DefaultProviderID, "failed to load AWS config", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = forcePathStyle
	})
	return client, nil
}

// New creates the provider and verifies bucket access. The metrics
// collector may be nil.
func New(ctx context.Context, cfg Config, m metrics.StorageMetrics) (*Provider, error) {
	id := cfg.ProviderID
	if id == "" {
		id = DefaultProviderID
	}
	if cfg.Client == nil {
		return nil, storage.NewBackendConfig(id, "S3 client is required", nil)
	}
	if cfg.Bucket == "" {
		return nil, storage.NewBackendConfig(id, "bucket name is required", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix != "" && keyPrefix[len(keyPrefix)-1] != '/' {
		keyPrefix += "/"
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff == 0 {
		initialBackoff = 100 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 2 * time.Second
	}

	if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, storage.NewBackendConfig(id, "failed to access bucket "+cfg.Bucket, err)
	}

	return &Provider{
		id:        id,
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: keyPrefix,
		sse:       cfg.ServerSideEncryption,
		retry: retryConfig{
			maxRetries:     maxRetries,
			initialBackoff: initialBackoff,
			maxBackoff:     maxBackoff,
		},
		metrics: m,
	}, nil
}

// ID returns the provider id.
func (p *Provider) ID() string { return p.id }

// Type returns the human-readable backend name.
func (p *Provider) Type() string { return "Amazon S3" }

// objectKey builds the fan-out key for a chunk id.
func (p *Provider) objectKey(chunkID string) string {
	sanitized := storage.SanitizeChunkID(chunkID)
	return p.keyPrefix + storage.ChunkPrefix(sanitized) + "/" + sanitized + ".chunk"
}

// resolveKey prefers the persisted storage path over the derived layout.
func (p *Provider) resolveKey(chunkID, storagePath string) string {
	if storagePath != "" {
		return storagePath
	}
	return p.objectKey(chunkID)
}

// Put uploads the payload and returns the object key. S3's PutObject is
// atomic per object, so a failed upload never leaves a readable partial.
func (p *Provider) Put(ctx context.Context, chunkID string, data []byte) (key string, err error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordOperation(p.id, "put", int64(len(data)), time.Since(start), err)
		}
	}()

	key = p.objectKey(chunkID)
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Metadata: map[string]string{
			metaChunkID:         chunkID,
			metaCorrelationID:   logger.CorrelationIDFromContext(ctx),
			metaUploadTimestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
	if p.sse {
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	}

	err = p.withRetry(ctx, chunkID, "put", func() error {
		input.Body = bytes.NewReader(data)
		_, putErr := p.client.PutObject(ctx, input)
		return putErr
	})
	if err != nil {
		return "", err
	}

	logger.DebugCtx(ctx, "chunk uploaded",
		logger.KeyProviderID, p.id,
		logger.KeyChunkID, chunkID,
		logger.KeySize, int64(len(data)),
		logger.KeyBucket, p.bucket,
		logger.KeyStoragePath, key)
	return key, nil
}

// Get downloads the full chunk payload.
func (p *Provider) Get(ctx context.Context, chunkID, storagePath string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordOperation(p.id, "get", int64(len(data)), time.Since(start), err)
		}
	}()

	key := p.resolveKey(chunkID, storagePath)
	err = p.withRetry(ctx, chunkID, "get", func() error {
		out, getErr := p.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		if getErr != nil {
			return getErr
		}
		defer out.Body.Close()

		data, getErr = io.ReadAll(out.Body)
		return getErr
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.NewNotFound(p.id, chunkID)
		}
		return nil, err
	}
	return data, nil
}

// Exists heads the object.
func (p *Provider) Exists(ctx context.Context, chunkID, storagePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := p.resolveKey(chunkID, storagePath)
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFoundError(err) {
		return false, nil
	}
	return false, p.classify(chunkID, "failed to head object", err)
}

// Delete removes the object. A missing object returns (false, nil); S3's
// DeleteObject succeeds on absent keys, so presence is checked first.
func (p *Provider) Delete(ctx context.Context, chunkID, storagePath string) (deleted bool, err error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordOperation(p.id, "delete", 0, time.Since(start), err)
		}
	}()

	exists, err := p.Exists(ctx, chunkID, storagePath)
	if err != nil || !exists {
		return false, err
	}

	key := p.resolveKey(chunkID, storagePath)
	err = p.withRetry(ctx, chunkID, "delete", func() error {
		_, delErr := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		return delErr
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Close is a no-op; the AWS client holds no resources needing release.
func (p *Provider) Close() error {
	return nil
}

// withRetry runs the operation with exponential backoff on transient
// failures and classifies the final error.
func (p *Provider) withRetry(ctx context.Context, chunkID, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.retry.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.backoff(attempt - 1)
			logger.DebugCtx(ctx, "retrying provider operation",
				logger.KeyProviderID, p.id,
				logger.KeyChunkID, chunkID,
				logger.KeyAttempt, attempt)
			if p.metrics != nil {
				p.metrics.RecordRetry(p.id, op)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) {
			break
		}
	}

	if isNotFoundError(lastErr) {
		return lastErr
	}
	return p.classify(chunkID, "operation failed after retries", lastErr)
}

// classify maps an AWS error to the storage error taxonomy.
func (p *Provider) classify(chunkID, message string, err error) error {
	if isAuthError(err) {
		return storage.NewBackendConfig(p.id, message, err)
	}
	return storage.NewTransient(p.id, chunkID, message, err)
}

// backoff doubles the initial delay per prior attempt, capped at the max.
func (p *Provider) backoff(attempt int) time.Duration {
	backoff := p.retry.initialBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.retry.maxBackoff {
			return p.retry.maxBackoff
		}
	}
	return backoff
}
