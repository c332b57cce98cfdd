/*
errors.go - Centralized error types for the custody engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is; structured errors carry extra context
  and unwrap to the matching sentinel.

ERROR CATEGORIES:
  1. Validation errors  - rejected before any side effect
  2. Authorization errors - caller is not the record owner
  3. State errors       - operation invalid for the record's current state
  4. External-transfer errors - fee or token movement failed; the whole
     operation is rolled back
  5. Invariant-guard errors - owner-index corruption; a logic defect,
     never expected under correct use

SEE ALSO:
  - index.go:  ErrIndexMismatch usage
  - fees.go:   fee gate errors
  - adapter.go: transfer adapter errors
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Validation
	ErrZeroAddress    = errors.New("zero address")
	ErrZeroAmount     = errors.New("amount must be positive")
	ErrAmountOverflow = errors.New("amount exceeds 96-bit range")
	ErrDateOverflow   = errors.New("timestamp exceeds 32-bit range")
	ErrTimeNotFuture  = errors.New("unlock time must be in the future")
	ErrLockTooLong    = errors.New("unlock time exceeds maximum lock period")
	ErrDurationZero   = errors.New("duration must be positive")
	ErrCliffTooLong   = errors.New("cliff exceeds maximum cliff duration")

	// Authorization
	ErrNotOwner = errors.New("caller is not the record owner")

	// State
	ErrNotFound            = errors.New("record not found")
	ErrAlreadyWithdrawn    = errors.New("already withdrawn")
	ErrStillLocked         = errors.New("still locked")
	ErrTimeMustIncrease    = errors.New("new unlock time must increase")
	ErrCliffNotReached     = errors.New("cliff not reached")
	ErrNothingToClaim      = errors.New("nothing to claim")
	ErrAlreadyFullyClaimed = errors.New("already fully claimed")

	// External transfers
	ErrInsufficientFee     = errors.New("insufficient fee")
	ErrFeeTransferFailed   = errors.New("fee transfer failed")
	ErrNoTokensReceived    = errors.New("no tokens received")
	ErrTokenTransferFailed = errors.New("token transfer failed")
	ErrUnknownToken        = errors.New("unknown token")

	// Reentrancy
	ErrReentrantCall = errors.New("reentrant call")

	// Invariant guard - signals a logic defect, never expected in practice
	ErrIndexMismatch = errors.New("owner index mismatch")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransferError wraps a failed token movement with its direction and token.
type TransferError struct {
	Token    Address
	Outbound bool // true for engine -> recipient, false for deposit pull
	Cause    error
}

func (e *TransferError) Error() string {
	dir := "pull"
	if e.Outbound {
		dir = "push"
	}
	return fmt.Sprintf("token %s failed for %s: %v", dir, e.Token, e.Cause)
}

func (e *TransferError) Unwrap() error { return ErrTokenTransferFailed }

// IndexCorruptionError reports an owner-index invariant violation. Should
// never occur under correct usage; aborts rather than silently continuing.
type IndexCorruptionError struct {
	Owner Address
	ID    uint64
	Slot  int
}

func (e *IndexCorruptionError) Error() string {
	return fmt.Sprintf("owner index mismatch: owner=%s id=%d slot=%d", e.Owner, e.ID, e.Slot)
}

func (e *IndexCorruptionError) Unwrap() error { return ErrIndexMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether err was rejected before any side effect due
// to malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrZeroAddress) ||
		errors.Is(err, ErrZeroAmount) ||
		errors.Is(err, ErrAmountOverflow) ||
		errors.Is(err, ErrDateOverflow) ||
		errors.Is(err, ErrTimeNotFuture) ||
		errors.Is(err, ErrLockTooLong) ||
		errors.Is(err, ErrDurationZero) ||
		errors.Is(err, ErrCliffTooLong) ||
		errors.Is(err, ErrInsufficientFee)
}

// IsStateConflict reports whether err is a rejection due to the record's
// current state rather than bad input.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrAlreadyWithdrawn) ||
		errors.Is(err, ErrStillLocked) ||
		errors.Is(err, ErrTimeMustIncrease) ||
		errors.Is(err, ErrCliffNotReached) ||
		errors.Is(err, ErrNothingToClaim) ||
		errors.Is(err, ErrAlreadyFullyClaimed) ||
		errors.Is(err, ErrReentrantCall)
}

// IsExternalFailure reports whether err came from a collaborator transfer.
func IsExternalFailure(err error) bool {
	return errors.Is(err, ErrFeeTransferFailed) ||
		errors.Is(err, ErrNoTokensReceived) ||
		errors.Is(err, ErrTokenTransferFailed)
}
