/*
Package engine implements the token custody engine.

PURPOSE:
  This package contains the core ledger logic for holding fungible-token
  deposits under two access policies: time-locks (release only after an
  absolute deadline) and linear vesting schedules (gradual release after
  an optional cliff). Every record-creating operation is gated by a fixed
  fee in the native currency.

KEY CONCEPTS IN THIS FILE (types.go):
  - Address: A 20-byte account/token identity
  - Amount bounds: token amounts are 256-bit values constrained to 96 bits
  - Unix32: timestamps constrained to the 32-bit unsigned range
  - LockRecord / VestingRecord: the two custody record shapes

DESIGN PRINCIPLES:
  1. Bounded widths: 96-bit amounts, 32-bit timestamps, checked at every
     assignment. Oversized inputs are rejected, never silently widened.
  2. Admin-free: configuration is immutable after construction. No party
     can pause, seize, or reconfigure existing records.
  3. Exactness: uint256 integer arithmetic throughout. No floats.

SEE ALSO:
  - engine.go:   Engine construction, reentrancy guard, configuration
  - locks.go:    Time-lock ledger state machine
  - vesting.go:  Vesting ledger state machine
  - index.go:    Per-owner reverse index
*/
package engine

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// =============================================================================
// ADDRESS - 20-byte account / token identity
// =============================================================================

// Address identifies an account or a token contract. The zero value is the
// null address and is rejected wherever a real identity is required.
type Address [20]byte

// ZeroAddress is the null identity.
var ZeroAddress Address

// ParseAddress parses a 0x-prefixed or bare 40-character hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*len(a) {
		return a, fmt.Errorf("address must be %d hex characters, got %d", 2*len(a), len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address: %w", err)
	}
	copy(a[:], b)
	return a, nil
}

// MustAddress parses an address or panics. For constants and tests.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) IsZero() bool   { return a == ZeroAddress }
func (a Address) Hex() string    { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) String() string { return a.Hex() }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// =============================================================================
// BOUNDED WIDTHS - 96-bit amounts, 32-bit timestamps
// =============================================================================

const (
	// AmountBits is the maximum width of any stored token amount.
	AmountBits = 96

	// MaxLockPeriod bounds how far in the future an unlock time may sit.
	MaxLockPeriod = 100 * 365 * 24 * 60 * 60 // 100 years in seconds

	// MaxCliff bounds a vesting cliff duration.
	MaxCliff = 10 * 365 * 24 * 60 * 60 // 10 years in seconds

	// DefaultDecimals is used when a token does not expose decimals metadata.
	DefaultDecimals uint8 = 18
)

// checkAmount validates that a is a positive amount within the 96-bit range.
func checkAmount(a *uint256.Int) error {
	if a == nil || a.IsZero() {
		return ErrZeroAmount
	}
	if a.BitLen() > AmountBits {
		return ErrAmountOverflow
	}
	return nil
}

// unix32 converts t to 32-bit unix seconds, rejecting out-of-range values.
func unix32(t time.Time) (uint32, error) {
	s := t.Unix()
	if s < 0 || s > int64(^uint32(0)) {
		return 0, ErrDateOverflow
	}
	return uint32(s), nil
}

// =============================================================================
// CUSTODY RECORDS
// =============================================================================

// LockRecord is a time-locked deposit. States: Active (not withdrawn) and
// Withdrawn (terminal). Once withdrawn, Amount is permanently zero and the
// record is never reused.
type LockRecord struct {
	ID         uint64
	Token      Address
	Decimals   uint8
	Owner      Address
	Amount     uint256.Int // 96-bit bounded; zero once withdrawn
	UnlockTime uint32      // unix seconds; only ever increases
	Withdrawn  bool
}

// VestingRecord is a linearly vesting deposit. Claimed only ever increases
// and never exceeds Total. The record is retained after full claim.
type VestingRecord struct {
	ID            uint64
	Token         Address
	Decimals      uint8
	Owner         Address
	Total         uint256.Int // 96-bit bounded
	Claimed       uint256.Int // Claimed <= Total always
	StartTime     uint32      // unix seconds
	CliffDuration uint32      // seconds, <= MaxCliff
	Duration      uint32      // seconds, > 0
}

// Completed reports whether every vested token has been claimed.
func (v *VestingRecord) Completed() bool {
	return v.Claimed.Eq(&v.Total)
}
