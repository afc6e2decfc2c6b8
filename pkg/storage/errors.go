package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	// KindNotFound indicates the chunk's bytes are absent.
	KindNotFound ErrorKind = iota

	// KindTransientIO indicates a retryable backend failure.
	KindTransientIO

	// KindBackendConfig indicates a misconfigured or unreachable backend.
	KindBackendConfig

	// KindIntegrityMismatch indicates a hash disagreement.
	KindIntegrityMismatch

	// KindInvariant indicates an internal bug (counts, sequence gaps).
	KindInvariant

	// KindCancelled indicates cooperative cancellation.
	KindCancelled
)

// String returns the error class name used in logs.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindTransientIO:
		return "TransientIO"
	case KindBackendConfig:
		return "BackendConfig"
	case KindIntegrityMismatch:
		return "IntegrityMismatch"
	case KindInvariant:
		return "Invariant"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// StorageError is the typed error surfaced at provider and engine
// boundaries.
type StorageError struct {
	Kind       ErrorKind
	ProviderID string
	ChunkID    string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.ChunkID != "" {
		msg += " (chunk " + e.ChunkID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewNotFound creates a NotFound error for a chunk.
func NewNotFound(providerID, chunkID string) *StorageError {
	return &StorageError{
		Kind:       KindNotFound,
		ProviderID: providerID,
		ChunkID:    chunkID,
		Message:    "chunk bytes not found",
	}
}

// NewTransient wraps a retryable backend failure.
func NewTransient(providerID, chunkID, message string, err error) *StorageError {
	return &StorageError{
		Kind:       KindTransientIO,
		ProviderID: providerID,
		ChunkID:    chunkID,
		Message:    message,
		Err:        err,
	}
}

// NewBackendConfig wraps a configuration or reachability failure.
func NewBackendConfig(providerID, message string, err error) *StorageError {
	return &StorageError{
		Kind:       KindBackendConfig,
		ProviderID: providerID,
		Message:    message,
		Err:        err,
	}
}

// NewIntegrityMismatch creates a hash disagreement error.
func NewIntegrityMismatch(chunkID, message string) *StorageError {
	return &StorageError{
		Kind:    KindIntegrityMismatch,
		ChunkID: chunkID,
		Message: message,
	}
}

// NewInvariant flags an internal inconsistency.
func NewInvariant(message string) *StorageError {
	return &StorageError{
		Kind:    KindInvariant,
		Message: message,
	}
}

// KindOf extracts the kind from an error chain. Context cancellation maps
// to KindCancelled even when not wrapped in a StorageError.
func KindOf(err error) (ErrorKind, bool) {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled, true
	}
	return 0, false
}

// IsNotFound reports whether err classifies as NotFound.
func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindNotFound
}

// IsTransient reports whether err classifies as TransientIO.
func IsTransient(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTransientIO
}
