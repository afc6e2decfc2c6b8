package metadata

// StoreError represents a domain error from metadata store operations.
//
// These are business logic errors (record not found, duplicate id, etc.)
// as opposed to infrastructure errors (disk failure inside Badger), which
// are wrapped with ErrIOError.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// ID is the record id related to the error (if applicable)
	ID string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + e.ID
	}
	return e.Message
}

// ErrorCode represents the category of a metadata store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record doesn't exist.
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates an add collided with an existing id.
	// Add is reject-if-exists; Replace is reject-if-missing (no upsert).
	ErrAlreadyExists

	// ErrInvalidArgument indicates invalid parameters (empty id, nil
	// record, negative sequence).
	ErrInvalidArgument

	// ErrIOError indicates the underlying store failed.
	ErrIOError
)

// NewNotFoundError creates a StoreError for a missing record.
func NewNotFoundError(id, entityType string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: entityType + " not found",
		ID:      id,
	}
}

// NewAlreadyExistsError creates a StoreError for an add on an existing id.
func NewAlreadyExistsError(id, entityType string) *StoreError {
	return &StoreError{
		Code:    ErrAlreadyExists,
		Message: entityType + " already exists",
		ID:      id,
	}
}

// NewInvalidArgumentError creates a StoreError for invalid parameters.
func NewInvalidArgumentError(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// NewIOError wraps an infrastructure failure from the underlying store.
func NewIOError(message string, err error) *StoreError {
	if err != nil {
		message = message + ": " + err.Error()
	}
	return &StoreError{
		Code:    ErrIOError,
		Message: message,
	}
}

// IsNotFound reports whether err is a StoreError with ErrNotFound.
func IsNotFound(err error) bool {
	se, ok := err.(*StoreError)
	return ok && se.Code == ErrNotFound
}

// IsAlreadyExists reports whether err is a StoreError with ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	se, ok := err.(*StoreError)
	return ok && se.Code == ErrAlreadyExists
}
