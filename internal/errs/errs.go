package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup for a record that does not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError means the caller's input was bad and nothing was persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StateConflictError means the operation is not valid for the record's
// current state. Illegal transitions error, they never coerce.
type StateConflictError struct {
	Entity  string
	ID      string
	Current string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s %s is in state %q, operation not allowed", e.Entity, e.ID, e.Current)
}

func StateConflict(entity, id, current string) error {
	return &StateConflictError{Entity: entity, ID: id, Current: current}
}

// ExternalServiceError means a collaborator outside this system failed.
// The wrapped error keeps the transport detail for logs.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func ExternalService(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

// ConsistencyGuardError blocks an operation that would leave the data in an
// inconsistent shape, e.g. approving a request with no resolvable client.
type ConsistencyGuardError struct {
	Reason string
}

func (e *ConsistencyGuardError) Error() string { return e.Reason }

func ConsistencyGuard(reason string) error {
	return &ConsistencyGuardError{Reason: reason}
}

// UnresolvedClient is the specific guard raised when approval cannot find an
// owner for the equipment it is about to create.
func UnresolvedClient(nationalID string) error {
	return &ConsistencyGuardError{Reason: fmt.Sprintf("no client account resolvable for national id %s", nationalID)}
}
