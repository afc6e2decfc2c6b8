package logger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds operation-scoped logging context.
//
// Every user-initiated operation (upload, download, delete, verify, index)
// allocates one LogContext with a fresh correlation id. The correlation id
// is propagated to every log record, event, and store call made on behalf
// of the operation.
type LogContext struct {
	CorrelationID string    // UUID tagging everything this operation touches
	Operation     string    // Operation name (upload, download, merge, ...)
	Entity        string    // Primary entity id (file id, chunk id, path)
	StartTime     time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// CorrelationIDFromContext returns the correlation id carried by ctx, or ""
// when the context has no logging scope.
func CorrelationIDFromContext(ctx context.Context) string {
	lc := FromContext(ctx)
	if lc == nil {
		return ""
	}
	return lc.CorrelationID
}

// NewLogContext creates a new LogContext for an operation with a fresh
// correlation id.
func NewLogContext(operation string) *LogContext {
	return &LogContext{
		CorrelationID: uuid.NewString(),
		Operation:     operation,
		StartTime:     time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		CorrelationID: lc.CorrelationID,
		Operation:     lc.Operation,
		Entity:        lc.Entity,
		StartTime:     lc.StartTime,
	}
}

// WithOperation returns a copy with the operation set
func (lc *LogContext) WithOperation(operation string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Operation = operation
	}
	return clone
}

// WithEntity returns a copy with the primary entity id set
func (lc *LogContext) WithEntity(entity string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Entity = entity
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
