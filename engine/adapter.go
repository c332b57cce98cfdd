/*
adapter.go - Token collaborator interfaces and the transfer adapter

PURPOSE:
  Defines the boundary to external token implementations and wraps all
  token movement in balance-delta accounting. The engine never trusts a
  caller-declared deposit amount: it measures its own balance before and
  after the pull and accounts the observed delta. This keeps accounting
  exact for fee-on-transfer and deflationary tokens.

DECIMALS PROBING:
  Decimals metadata is an optional capability. The probe runs inside a
  local failure boundary: a missing method, an error return, or a panic
  in a hostile implementation all fall back to the default of 18 and
  never abort the surrounding operation.

SEE ALSO:
  - token package: reference implementations (registry, standard token)
  - fees.go: native-currency movement uses NativeLedger, not Token
*/
package engine

import (
	"github.com/holiman/uint256"
)

// =============================================================================
// CONSUMED CAPABILITIES - implemented outside the engine
// =============================================================================

// Token is the fungible-token capability the engine consumes. Every transfer
// is failable; a failure aborts the calling engine operation.
type Token interface {
	BalanceOf(addr Address) *uint256.Int
	TransferFrom(from, to Address, amount *uint256.Int) error
	Transfer(to Address, amount *uint256.Int) error
}

// DecimalsProvider is the optional decimals metadata capability.
type DecimalsProvider interface {
	Decimals() (uint8, error)
}

// TokenResolver maps a token address to its implementation.
type TokenResolver interface {
	Token(addr Address) (Token, error)
}

// NativeLedger moves the platform's native currency, used for fee payment.
type NativeLedger interface {
	Transfer(from, to Address, amount *uint256.Int) error
}

// =============================================================================
// TRANSFER ADAPTER - balance-delta accounting around token calls
// =============================================================================

type transferAdapter struct {
	self Address // the engine's own account with each token
}

// pullExact moves declared tokens from `from` into the engine's account and
// returns the amount that actually arrived, measured as a balance delta.
// A zero (or negative, for hostile implementations) delta is rejected.
func (a transferAdapter) pullExact(tok Token, token, from Address, declared *uint256.Int) (*uint256.Int, error) {
	before := uint256.NewInt(0).Set(tok.BalanceOf(a.self))
	if err := tok.TransferFrom(from, a.self, declared); err != nil {
		return nil, &TransferError{Token: token, Outbound: false, Cause: err}
	}
	after := tok.BalanceOf(a.self)
	if after.Cmp(before) <= 0 {
		return nil, ErrNoTokensReceived
	}
	return uint256.NewInt(0).Sub(after, before), nil
}

// pushExact performs a single outbound transfer. Any failure propagates.
func (a transferAdapter) pushExact(tok Token, token, to Address, amount *uint256.Int) error {
	if err := tok.Transfer(to, amount); err != nil {
		return &TransferError{Token: token, Outbound: true, Cause: err}
	}
	return nil
}

// probeDecimals reads optional decimals metadata with a safe fallback.
func probeDecimals(tok Token) (d uint8) {
	d = DefaultDecimals
	prober, ok := tok.(DecimalsProvider)
	if !ok {
		return d
	}
	defer func() {
		// A hostile implementation may panic instead of returning an
		// error; the probe must not let that escape.
		if recover() != nil {
			d = DefaultDecimals
		}
	}()
	got, err := prober.Decimals()
	if err != nil {
		return DefaultDecimals
	}
	return got
}
