package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service wraps exactly one of these.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrState      = errors.New("invalid state")
	ErrInternal   = errors.New("internal error")
)

var (
	ErrTermsNotAccepted = fmt.Errorf("%w: terms and conditions not accepted", ErrValidation)
	ErrInvalidDate      = fmt.Errorf("%w: date must be a real calendar day in YYYY-MM-DD format", ErrValidation)
	ErrInvalidDuration  = fmt.Errorf("%w: service duration must be between 1 and 1440 minutes", ErrValidation)
	ErrInvalidBlock     = fmt.Errorf("%w: invalid block", ErrValidation)
	ErrMissingInput     = fmt.Errorf("%w: missing required input", ErrValidation)
	ErrSameQueue        = fmt.Errorf("%w: booking already belongs to the destination queue", ErrValidation)

	ErrQueueNotFound    = fmt.Errorf("%w: queue not found", ErrNotFound)
	ErrBookingNotFound  = fmt.Errorf("%w: booking not found", ErrNotFound)
	ErrCommerceNotFound = fmt.Errorf("%w: commerce not found", ErrNotFound)
	ErrPackageNotFound  = fmt.Errorf("%w: package not found", ErrNotFound)
	ErrJobNotFound      = fmt.Errorf("%w: job not found", ErrNotFound)

	ErrQueueUnavailable  = fmt.Errorf("%w: queue is not accepting bookings", ErrConflict)
	ErrQueueFull         = fmt.Errorf("%w: queue limit reached for this date", ErrConflict)
	ErrBlockTaken        = fmt.Errorf("%w: block already taken", ErrConflict)
	ErrBlockLimitReached = fmt.Errorf("%w: block limit reached", ErrConflict)

	ErrAlreadyProcessed  = fmt.Errorf("%w: booking already processed", ErrState)
	ErrAttentionExists   = fmt.Errorf("%w: booking already has an attention", ErrState)
	ErrNotToday          = fmt.Errorf("%w: booking date is not today", ErrState)
	ErrDateInPast        = fmt.Errorf("%w: date is in the past", ErrState)
	ErrBookingCancelled  = fmt.Errorf("%w: booking is cancelled", ErrState)
	ErrFeatureDisabled   = fmt.Errorf("%w: feature not enabled for commerce", ErrState)
	ErrInvalidTransition = fmt.Errorf("%w: transition not allowed", ErrState)
)

// internalError keeps the cause reachable through errors.Is/As.
func internalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
