package common

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	// ErrInvalidRecord is matched by every *ValidationError.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("record not found")

	// ErrCorruptStorage is matched by every *CorruptStorageError.
	ErrCorruptStorage = errors.New("corrupt storage")

	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("invalid configuration")
)

// ValidationError rejects candidate data. The caller may retry with corrected input.
type ValidationError struct {
	Field  Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRecord }

// NotFoundError reports an operation on an id that is not in the store.
type NotFoundError struct {
	ID int32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record #%d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CorruptStorageError means the slot file violates its layout at Offset.
// The store that returned it must not be used further.
type CorruptStorageError struct {
	Offset int64
	Err    error
}

func (e *CorruptStorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt storage at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("corrupt storage at offset %d", e.Offset)
}

func (e *CorruptStorageError) Is(target error) bool { return target == ErrCorruptStorage }

func (e *CorruptStorageError) Unwrap() error { return e.Err }

// ConfigurationError reports malformed validation bounds or storage settings.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
