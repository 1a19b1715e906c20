package strata

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("strata: entity not found")

	// ErrNotSingular is returned when a query that expects exactly one result
	// returns zero or multiple results.
	ErrNotSingular = errors.New("strata: entity not singular")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("strata: cannot start a transaction within a transaction")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	key   any // Optional: the key that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.key != nil {
		return fmt.Sprintf("strata: %s not found (key=%v)", e.label, e.key)
	}
	return fmt.Sprintf("strata: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// Key returns the key that was searched for, if available.
func (e *NotFoundError) Key() any {
	return e.key
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithKey returns a new NotFoundError with the key that was searched for.
func NewNotFoundErrorWithKey(label string, key any) *NotFoundError {
	return &NotFoundError{label: label, key: key}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expects a singular result
// but receives zero or multiple results.
type NotSingularError struct {
	label string
	count int // Number of results returned (-1 if unknown)
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("strata: %s not singular (got %d results, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("strata: %s not singular", e.label)
}

// Is reports whether the target error matches NotSingularError.
// This allows errors.Is(notSingularErr, ErrNotSingular) to return true.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Label returns the entity label.
func (e *NotSingularError) Label() string {
	return e.label
}

// Count returns the number of results, or -1 if unknown.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularError returns a new NotSingularError for the given entity type.
func NewNotSingularError(label string) *NotSingularError {
	return &NotSingularError{label: label, count: -1}
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// NotLoadedError represents an error when accessing a navigation that was
// not loaded and whose load strategy does not allow implicit loading.
type NotLoadedError struct {
	edge string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("strata: edge %q was not loaded", e.edge)
}

// NewNotLoadedError returns a new NotLoadedError for the given edge name.
func NewNotLoadedError(edge string) *NotLoadedError {
	return &NotLoadedError{edge: edge}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	var e *NotLoadedError
	return errors.As(err, &e)
}

// ConfigurationError represents an invalid model or relationship declaration.
// It is fatal at startup and never recovered from at runtime.
type ConfigurationError struct {
	msg string
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("strata: configuration: %s", e.msg)
}

// NewConfigurationError returns a new ConfigurationError with a formatted message.
func NewConfigurationError(format string, a ...any) *ConfigurationError {
	return &ConfigurationError{msg: fmt.Sprintf(format, a...)}
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e)
}

// ConflictError represents an identity-map collision: two distinct instances
// registered for the same (entity type, key) pair. It indicates a caller bug.
type ConflictError struct {
	Entity string
	Key    any
}

// Error returns the error string.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("strata: conflicting instance for %s (key=%v)", e.Entity, e.Key)
}

// NewConflictError returns a new ConflictError for the given entity and key.
func NewConflictError(entity string, key any) *ConflictError {
	return &ConflictError{Entity: entity, Key: key}
}

// IsConflict returns true if the error is a ConflictError.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var e *ConflictError
	return errors.As(err, &e)
}

// InvalidOperationError represents an illegal state transition, such as
// mutating a key property or loading a navigation of a detached entity.
type InvalidOperationError struct {
	msg string
}

// Error returns the error string.
func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("strata: invalid operation: %s", e.msg)
}

// NewInvalidOperationError returns a new InvalidOperationError with a formatted message.
func NewInvalidOperationError(format string, a ...any) *InvalidOperationError {
	return &InvalidOperationError{msg: fmt.Sprintf(format, a...)}
}

// IsInvalidOperation returns true if the error is an InvalidOperationError.
func IsInvalidOperation(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidOperationError
	return errors.As(err, &e)
}

// CycleError represents an unresolvable insert cycle among required
// relationships. The commit is aborted with no partial effect.
type CycleError struct {
	Entities []string
}

// Error returns the error string.
func (e *CycleError) Error() string {
	return fmt.Sprintf("strata: required relationship cycle: %s", strings.Join(e.Entities, " -> "))
}

// NewCycleError returns a new CycleError over the given entity labels.
func NewCycleError(entities ...string) *CycleError {
	return &CycleError{Entities: entities}
}

// IsCycle returns true if the error is a CycleError.
func IsCycle(err error) bool {
	if err == nil {
		return false
	}
	var e *CycleError
	return errors.As(err, &e)
}

// ConstraintError represents a relationship or storage constraint violation.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("strata: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("strata: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// QueryError wraps a provider-level failure during plan execution.
// No partial results are returned alongside a QueryError.
type QueryError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "all", "count", "exist")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("strata: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("strata: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// CommitError wraps a provider-level failure during operation submission.
// A CommitError always implies the transaction was fully rolled back.
type CommitError struct {
	Entity string // Entity of the failing operation, if known
	Op     Op     // Kind of the failing operation
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *CommitError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("strata: commit: %s %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("strata: commit: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CommitError) Unwrap() error {
	return e.Err
}

// NewCommitError returns a new CommitError.
func NewCommitError(entity string, op Op, err error) *CommitError {
	return &CommitError{Entity: entity, Op: op, Err: err}
}

// IsCommitError returns true if the error is a CommitError.
func IsCommitError(err error) bool {
	if err == nil {
		return false
	}
	var e *CommitError
	return errors.As(err, &e)
}
