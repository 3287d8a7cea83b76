/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The billing package and the outer layers wrap these with context.

ERROR CATEGORIES:
  1. Configuration errors - Bad contract terms, impossible proration spans.
     Fatal for the operation, never retried.
  2. Input-validation errors - Bad billed-installment counts, malformed
     collection records. Callers check these before invoking the core.
  3. Store errors - Persistence failures and missing records.

USAGE:
  if errors.Is(err, generic.ErrProrationSpansMonths) {
      // contract terms produced an impossible partial month
  }

SEE ALSO:
  - period.go: Returns PeriodError
  - billing/: Returns TermsError and wraps store errors
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
	// ErrProrationSpansMonths is returned when a partial-month charge is
	// requested for a span that crosses a month boundary.
	ErrProrationSpansMonths = errors.New("proration period spans a month boundary")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidBillingDay is returned when the fixed billing day is outside 1-31.
	ErrInvalidBillingDay = errors.New("billing day must be between 1 and 31")

	// ErrInvalidTerm is returned when the contract term is shorter than a month.
	ErrInvalidTerm = errors.New("term must be at least one month")

	// ErrInvalidAmount is returned for non-positive fees or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidConvention is returned for an unknown billing convention.
	ErrInvalidConvention = errors.New("unknown billing convention")

	// ErrInvalidBilledCount is returned when the billed installment count is
	// outside [1, number of installments].
	ErrInvalidBilledCount = errors.New("billed installment count out of range")

	// ErrInvalidCollection is returned for collection records that are not
	// a timestamp plus a non-negative amount.
	ErrInvalidCollection = errors.New("invalid collection record")

	// ErrInvalidTimestamp is returned for a timestamp in no accepted layout.
	ErrInvalidTimestamp = errors.New("unrecognised timestamp")

	// ErrDuplicateIdempotencyKey is returned when a collection with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrScheduleNotFound is returned when a contract has no stored installments.
	ErrScheduleNotFound = errors.New("schedule not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PeriodError reports which span could not be prorated.
type PeriodError struct {
	Period Period
	Err    error
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Period)
}

func (e *PeriodError) Unwrap() error { return e.Err }

// TermsError names the offending contract field.
type TermsError struct {
	Field string
	Value any
	Err   error
}

func (e *TermsError) Error() string {
	return fmt.Sprintf("%s=%v: %v", e.Field, e.Value, e.Err)
}

func (e *TermsError) Unwrap() error { return e.Err }

// BilledCountError carries the requested count and the valid upper bound.
type BilledCountError struct {
	Requested int
	Max       int
}

func (e *BilledCountError) Error() string {
	return fmt.Sprintf("billed installment count %d not in [1, %d]", e.Requested, e.Max)
}

func (e *BilledCountError) Unwrap() error { return ErrInvalidBilledCount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigurationError returns true for errors caused by impossible contract terms.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrProrationSpansMonths) ||
		errors.Is(err, ErrInvalidBillingDay) ||
		errors.Is(err, ErrInvalidTerm) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return IsConfigurationError(err) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidConvention) ||
		errors.Is(err, ErrInvalidBilledCount) ||
		errors.Is(err, ErrInvalidCollection) ||
		errors.Is(err, ErrInvalidTimestamp) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrScheduleNotFound)
}
