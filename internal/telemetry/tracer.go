package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for vault operations.
// These follow OpenTelemetry semantic conventions where applicable.
// Domain keys use "file." and "chunk." prefixes, backend keys use their own.
const (
	// ========================================================================
	// File attributes
	// ========================================================================
	AttrFileID   = "file.id"
	AttrFileName = "file.name"
	AttrFilePath = "file.path"
	AttrFileSize = "file.size"
	AttrFileType = "file.type"
	AttrStatus   = "file.status"
	AttrChecksum = "file.checksum"
	AttrParentID = "file.parent_id"

	// ========================================================================
	// Chunk attributes
	// ========================================================================
	AttrChunkID        = "chunk.id"
	AttrSequence       = "chunk.sequence"
	AttrChunkSize      = "chunk.size"
	AttrCompressedSize = "chunk.compressed_size"
	AttrCompressed     = "chunk.compressed"
	AttrChunkCount     = "chunk.count"

	// ========================================================================
	// Operation attributes
	// ========================================================================
	AttrOperation     = "vault.operation"
	AttrCorrelationID = "vault.correlation_id"
	AttrVerified      = "vault.verified"
	AttrDeep          = "vault.deep"
	AttrBytesRead     = "vault.bytes_read"
	AttrBytesWritten  = "vault.bytes_written"
	AttrRecursive     = "scan.recursive"
	AttrFileCount     = "scan.file_count"
	AttrDirCount      = "scan.directory_count"

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit  = "cache.hit"
	AttrCacheKey  = "cache.key"
	AttrCacheKind = "cache.kind"

	// ========================================================================
	// Storage provider attributes
	// ========================================================================
	AttrProviderID   = "provider.id"
	AttrProviderType = "provider.type"
	AttrStoragePath  = "storage.path"
	AttrBucket       = "storage.bucket"
	AttrKey          = "storage.key"
	AttrRegion       = "storage.region"
	AttrAttempt      = "storage.attempt"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// ========================================================================
	// Service-level spans
	// ========================================================================
	SpanUpload   = "vault.upload"
	SpanDownload = "vault.download"
	SpanDelete   = "vault.delete"
	SpanVerify   = "vault.verify"
	SpanList     = "vault.list"
	SpanScan     = "vault.scan"

	// ========================================================================
	// Chunk pipeline spans
	// ========================================================================
	SpanSplit         = "engine.split"
	SpanMerge         = "engine.merge"
	SpanChunkRead     = "chunk.read"
	SpanChunkCompress = "chunk.compress"
	SpanChunkHash     = "chunk.hash"
	SpanChunkVerify   = "chunk.verify"

	// ========================================================================
	// Storage provider spans
	// ========================================================================
	SpanProviderPut    = "provider.put"
	SpanProviderGet    = "provider.get"
	SpanProviderDelete = "provider.delete"

	// ========================================================================
	// Internal store spans
	// ========================================================================
	SpanCacheLookup = "cache.lookup"
	SpanCacheWrite  = "cache.write"
	SpanCacheEvict  = "cache.evict"
	SpanMetaLookup  = "metadata.lookup"
	SpanMetaUpdate  = "metadata.update"
	SpanMetaCreate  = "metadata.create"
	SpanMetaDelete  = "metadata.delete"
)

// FileID returns an attribute for file identifier
func FileID(id string) attribute.KeyValue {
	return attribute.String(AttrFileID, id)
}

// FileName returns an attribute for file name
func FileName(name string) attribute.KeyValue {
	return attribute.String(AttrFileName, name)
}

// FilePath returns an attribute for file path
func FilePath(path string) attribute.KeyValue {
	return attribute.String(AttrFilePath, path)
}

// FileSize returns an attribute for file size in bytes
func FileSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrFileSize, size)
}

// FileType returns an attribute for file type
func FileType(t string) attribute.KeyValue {
	return attribute.String(AttrFileType, t)
}

// Status returns an attribute for file status
func Status(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// Checksum returns an attribute for content checksum
func Checksum(sum string) attribute.KeyValue {
	return attribute.String(AttrChecksum, sum)
}

// ParentID returns an attribute for parent directory identifier
func ParentID(id string) attribute.KeyValue {
	return attribute.String(AttrParentID, id)
}

// ChunkID returns an attribute for chunk identifier
func ChunkID(id string) attribute.KeyValue {
	return attribute.String(AttrChunkID, id)
}

// Sequence returns an attribute for chunk sequence number
func Sequence(seq int) attribute.KeyValue {
	return attribute.Int(AttrSequence, seq)
}

// ChunkSize returns an attribute for chunk size in bytes
func ChunkSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrChunkSize, size)
}

// CompressedSize returns an attribute for compressed chunk size
func CompressedSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrCompressedSize, size)
}

// Compressed returns an attribute for the compression flag
func Compressed(c bool) attribute.KeyValue {
	return attribute.Bool(AttrCompressed, c)
}

// ChunkCount returns an attribute for total chunk count
func ChunkCount(n int) attribute.KeyValue {
	return attribute.Int(AttrChunkCount, n)
}

// Operation returns an attribute for the vault operation name
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// CorrelationID returns an attribute for the operation correlation id
func CorrelationID(id string) attribute.KeyValue {
	return attribute.String(AttrCorrelationID, id)
}

// Verified returns an attribute for a verification verdict
func Verified(ok bool) attribute.KeyValue {
	return attribute.Bool(AttrVerified, ok)
}

// Deep returns an attribute for deep-verification mode
func Deep(deep bool) attribute.KeyValue {
	return attribute.Bool(AttrDeep, deep)
}

// BytesRead returns an attribute for bytes read
func BytesRead(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesRead, n)
}

// BytesWritten returns an attribute for bytes written
func BytesWritten(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesWritten, n)
}

// Recursive returns an attribute for recursive scan mode
func Recursive(r bool) attribute.KeyValue {
	return attribute.Bool(AttrRecursive, r)
}

// FileCount returns an attribute for scanned file count
func FileCount(n int) attribute.KeyValue {
	return attribute.Int(AttrFileCount, n)
}

// DirCount returns an attribute for scanned directory count
func DirCount(n int) attribute.KeyValue {
	return attribute.Int(AttrDirCount, n)
}

// CacheHit returns an attribute for cache hit indicator
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheKey returns an attribute for cache key
func CacheKey(key string) attribute.KeyValue {
	return attribute.String(AttrCacheKey, key)
}

// CacheKind returns an attribute for cache entry kind
func CacheKind(kind string) attribute.KeyValue {
	return attribute.String(AttrCacheKind, kind)
}

// ProviderID returns an attribute for storage provider identifier
func ProviderID(id string) attribute.KeyValue {
	return attribute.String(AttrProviderID, id)
}

// ProviderType returns an attribute for storage provider type
func ProviderType(t string) attribute.KeyValue {
	return attribute.String(AttrProviderType, t)
}

// StoragePath returns an attribute for a provider-local storage path
func StoragePath(path string) attribute.KeyValue {
	return attribute.String(AttrStoragePath, path)
}

// Bucket returns an attribute for S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// Attempt returns an attribute for retry attempt number
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// StartFileSpan starts a span for a file-level vault operation.
// This is a convenience function that sets common attributes.
func StartFileSpan(ctx context.Context, operation, fileID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Operation(operation),
	}
	if fileID != "" {
		allAttrs = append(allAttrs, FileID(fileID))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "vault."+operation, trace.WithAttributes(allAttrs...))
}

// StartChunkSpan starts a span for a chunk pipeline stage.
func StartChunkSpan(ctx context.Context, stage, chunkID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		ChunkID(chunkID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "chunk."+stage, trace.WithAttributes(allAttrs...))
}

// StartProviderSpan starts a span for a storage provider operation.
func StartProviderSpan(ctx context.Context, operation, providerID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		ProviderID(providerID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "provider."+operation, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}

// StartMetadataSpan starts a span for a metadata store operation.
func StartMetadataSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "metadata."+operation, trace.WithAttributes(attrs...))
}
