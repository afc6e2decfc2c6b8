package logger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// OperationRecord is the summary emitted when an operation scope ends.
// It is handed to the registered sink (if any) so that operation history
// can be persisted, e.g. into the metadata store's logs collection.
type OperationRecord struct {
	CorrelationID string
	Operation     string
	Entity        string
	Outcome       string // "ok" or "fail"
	Error         string
	StartTime     time.Time
	DurationMs    float64
}

// operationSink receives completed operation records. Wired at startup;
// nil means scopes only log.
var operationSink atomic.Value // stores func(OperationRecord)

// SetOperationSink registers a sink invoked once per completed operation
// scope. Pass nil to remove the sink.
func SetOperationSink(sink func(OperationRecord)) {
	operationSink.Store(sink)
}

// OperationScope is a correlation-scoped timer for one public operation.
//
// Usage:
//
//	ctx, scope := logger.BeginOperation(ctx, "upload", logger.Path(path))
//	defer scope.End()
//	...
//	if err != nil {
//	    scope.Fail(err)
//	    return err
//	}
type OperationScope struct {
	lc *LogContext

	mu     sync.Mutex
	failed bool
	err    error
	ended  bool
}

// BeginOperation establishes a correlation-scoped logging context for a
// public operation. It allocates a fresh correlation id unless the context
// already carries one, logs the operation start, and returns a derived
// context plus the scope.
func BeginOperation(ctx context.Context, operation string, args ...any) (context.Context, *OperationScope) {
	lc := FromContext(ctx)
	if lc == nil {
		lc = NewLogContext(operation)
	} else {
		lc = lc.WithOperation(operation)
		lc.StartTime = time.Now()
	}

	ctx = WithContext(ctx, lc)
	DebugCtx(ctx, "operation started", args...)

	return ctx, &OperationScope{lc: lc}
}

// CorrelationID returns the correlation id of this scope.
func (s *OperationScope) CorrelationID() string {
	return s.lc.CorrelationID
}

// SetEntity records the primary entity id once it is known (e.g. the file
// id allocated during an upload).
func (s *OperationScope) SetEntity(entity string) {
	s.mu.Lock()
	s.lc.Entity = entity
	s.mu.Unlock()
}

// Fail marks the scope as failed. The first error wins.
func (s *OperationScope) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.failed {
		s.failed = true
		s.err = err
	}
}

// End closes the scope, logging elapsed time and outcome. Safe to call via
// defer together with an explicit Fail. End is idempotent.
func (s *OperationScope) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	failed, opErr := s.failed, s.err
	s.mu.Unlock()

	elapsed := s.lc.DurationMs()
	outcome := "ok"
	if failed {
		outcome = "fail"
	}

	args := []any{
		KeyCorrelationID, s.lc.CorrelationID,
		KeyOperation, s.lc.Operation,
		KeyOutcome, outcome,
		KeyDurationMs, elapsed,
	}
	if s.lc.Entity != "" {
		args = append(args, KeyEntity, s.lc.Entity)
	}
	if opErr != nil {
		args = append(args, KeyError, opErr.Error())
	}

	if failed {
		Error("operation finished", args...)
	} else {
		Info("operation finished", args...)
	}

	rec := OperationRecord{
		CorrelationID: s.lc.CorrelationID,
		Operation:     s.lc.Operation,
		Entity:        s.lc.Entity,
		Outcome:       outcome,
		StartTime:     s.lc.StartTime,
		DurationMs:    elapsed,
	}
	if opErr != nil {
		rec.Error = opErr.Error()
	}

	if sink, ok := operationSink.Load().(func(OperationRecord)); ok && sink != nil {
		sink(rec)
	}
}
