/*
errors.go - Centralized error types for the engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Packages that carry more context (actus, the stores) wrap these sentinels
  in structured errors so callers can always match with errors.Is.

ERROR CATEGORIES:
  1. Arithmetic errors - division by zero, fixed-point overflow
  2. Schedule errors - malformed schedule requests
  3. Contract errors - validation, unsupported operations, lookups
  4. Store errors - persistence, idempotency, missing records

USAGE:
  if errors.Is(err, generic.ErrDivisionByZero) {
      ...
  }
  if generic.IsClientError(err) {
      // 4xx
  }

SEE ALSO:
  - actus/errors.go: structured contract errors wrapping these sentinels
  - store/sqlite: maps constraint violations onto these sentinels
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrArithmetic is the parent of every numeric failure.
	ErrArithmetic = errors.New("arithmetic error")

	// ErrDivisionByZero is returned by Number.Div for a zero divisor.
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrArithmetic)

	// ErrOverflow is returned when a value leaves the fixed-point range.
	ErrOverflow = fmt.Errorf("%w: fixed-point overflow", ErrArithmetic)

	// ErrSchedule is returned for malformed schedule requests.
	ErrSchedule = errors.New("schedule error")

	// ErrInvalidTimePoint is returned when a calendar value cannot be parsed.
	ErrInvalidTimePoint = errors.New("invalid time point")

	// ErrInvalidCycle is returned when a cycle or period string is malformed.
	ErrInvalidCycle = errors.New("invalid cycle")

	// ErrValidation is the parent of every contract term violation.
	ErrValidation = errors.New("contract validation failed")

	// ErrUnsupportedOperation is returned when no function pair exists for
	// a (contract type, event type) combination.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrLookup is returned when an oracle cannot supply an observation.
	ErrLookup = errors.New("oracle lookup failed")

	// ErrContractNotFound is returned when a contract is not in the store.
	ErrContractNotFound = errors.New("contract not found")

	// ErrContractExists is returned when deploying identical terms twice.
	ErrContractExists = errors.New("contract already exists")

	// ErrEventNotDue is returned when a manual progress request arrives before
	// the contract's next event time.
	ErrEventNotDue = errors.New("event not due")

	// ErrContractCompleted is returned when progressing a contract with no
	// remaining events.
	ErrContractCompleted = errors.New("contract has no remaining events")

	// ErrDuplicateIdempotencyKey is returned when a transfer with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConcurrentModification is returned when a commit targets an event
	// index that is no longer the contract's next event.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrObservationNotFound is returned when no value is recorded for a
	// market object code.
	ErrObservationNotFound = errors.New("observation not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ScheduleError describes why a schedule could not be generated.
type ScheduleError struct {
	Reason string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("schedule: %s", e.Reason)
}

func (e *ScheduleError) Unwrap() error {
	return ErrSchedule
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrLookup)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSchedule) ||
		errors.Is(err, ErrInvalidTimePoint) ||
		errors.Is(err, ErrInvalidCycle) ||
		errors.Is(err, ErrUnsupportedOperation) ||
		errors.Is(err, ErrEventNotDue) ||
		errors.Is(err, ErrContractCompleted)
}

// IsConflict returns true if the error indicates a duplicate resource.
func IsConflict(err error) bool {
	return errors.Is(err, ErrContractExists) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrObservationNotFound)
}
