// internal/store/errors.go
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable is returned when the backend cannot be read or written.
	ErrStoreUnavailable = errors.New("lock store unavailable")
	// ErrKeyModified is returned when an atomic update lost against a concurrent writer.
	ErrKeyModified = errors.New("unable to complete atomic operation, key modified")
	// ErrUnexpectedState marks a document holding an article lock and section locks at once.
	ErrUnexpectedState = errors.New("article lock and section locks coexist")
	// ErrInvalidRecord is returned for records that cannot be keyed.
	ErrInvalidRecord = errors.New("invalid lock record")
)

// Unavailable wraps a backend failure so callers can match ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// InvalidConfigurationError is thrown when the type of the configuration is not supported by a store.
type InvalidConfigurationError struct {
	Store  string
	Config any
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("%s: invalid configuration type: %T", e.Store, e.Config)
}

// UnknownConstructorError is thrown when a requested store is not register.
type UnknownConstructorError struct {
	Store string
}

func (e UnknownConstructorError) Error() string {
	return fmt.Sprintf("unknown constructor %q (forgotten import?)", e.Store)
}
