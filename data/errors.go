package data

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Standard storage errors. API layers map them with errors.Is:
// ErrUnauthorized to forbidden, ErrInvalid to bad request,
// ErrExist and ErrInUse to conflict, ErrNotExist to not found.
var (
	// Validation errors
	ErrInvalid          = errors.New("docstore: invalid argument")
	ErrParentNotExist   = fmt.Errorf("%w: parent file does not exist", ErrInvalid)
	ErrUnsupportedOrder = fmt.Errorf("%w: unsupported order property", ErrInvalid)

	// Access errors
	ErrUnauthorized = errors.New("docstore: unauthorized access")

	// Conflict errors
	ErrExist = errors.New("docstore: file already exists")
	ErrInUse = errors.New("docstore: file is in use")

	// Lookup and lifecycle errors
	ErrNotExist   = errors.New("docstore: file does not exist")
	ErrClosed     = errors.New("docstore: handle already closed")
	ErrLoadFailed = errors.New("docstore: loading entries failed")
)

// IsConflict reports whether err is one of the conflict errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrExist) || errors.Is(err, ErrInUse)
}

// Unauthorized wraps ErrUnauthorized with the operation and file it was raised for.
func Unauthorized(operation string, id uuid.UUID) error {
	return fmt.Errorf("%w: %s on file %s", ErrUnauthorized, operation, id)
}

// NotExist wraps ErrNotExist with the missing file id.
func NotExist(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", ErrNotExist, id)
}

// Errors collects errors from concurrent workers.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.errors)
}

func (e *Errors) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = nil
}

// Errors joins all collected errors, or returns nil when there are none.
func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
