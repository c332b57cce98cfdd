/*
fees.go - Fee gate: fixed native-currency payment per record creation

PURPOSE:
  Validates the payment attached to a record-creating call, forwards the
  required fee to the fixed receiver before any other side effect, and
  attempts to return any excess to the caller.

PROTOCOL (checks-effects-interactions):
  1. paid < required           -> ErrInsufficientFee, nothing moved
  2. pull paid from the caller -> failure maps to ErrInsufficientFee
  3. forward required to the receiver -> failure is ErrFeeTransferFailed
     and fatal to the whole operation (the pull is compensated)
  4. refund paid-required to the caller -> failure is non-fatal: the
     excess is handed to the receiver instead and a FeeTransferFailed
     event records it. The calling operation still succeeds.

  Step 4's tolerance is preserved behavior: a caller that cannot accept
  the refund forfeits the excess to the fee receiver.
*/
package engine

import (
	"github.com/holiman/uint256"
)

// feeGate collects a fixed native-currency payment per operation and
// forwards it to the fixed receiver.
type feeGate struct {
	native   NativeLedger
	receiver Address
	self     Address
}

// collect enforces the fee protocol. On success it returns any events the
// protocol produced (at most one FeeTransferFailed for a failed refund)
// and pushes compensating steps onto undo for the transfers it completed.
func (g feeGate) collect(caller Address, required, paid *uint256.Int, at uint32, undo *undoStack) ([]Event, error) {
	if paid == nil {
		paid = uint256.NewInt(0)
	}
	if paid.Cmp(required) < 0 {
		return nil, ErrInsufficientFee
	}
	if paid.IsZero() {
		return nil, nil
	}

	// Pull the attached payment. A caller that cannot cover what it
	// declared has not paid the fee.
	pulled := uint256.NewInt(0).Set(paid)
	if err := g.native.Transfer(caller, g.self, pulled); err != nil {
		return nil, ErrInsufficientFee
	}
	undo.push(func() { _ = g.native.Transfer(g.self, caller, pulled) })

	// Forward exactly the required fee before any other side effect.
	fee := uint256.NewInt(0).Set(required)
	if !fee.IsZero() {
		if err := g.native.Transfer(g.self, g.receiver, fee); err != nil {
			return nil, ErrFeeTransferFailed
		}
		undo.push(func() { _ = g.native.Transfer(g.receiver, g.self, fee) })
	}

	// Refund any excess. Failure is tolerated: the excess goes to the
	// receiver and the operation continues.
	excess := uint256.NewInt(0).Sub(pulled, fee)
	if excess.IsZero() {
		return nil, nil
	}
	if err := g.native.Transfer(g.self, caller, excess); err != nil {
		if g.native.Transfer(g.self, g.receiver, excess) == nil {
			undo.push(func() { _ = g.native.Transfer(g.receiver, g.self, excess) })
		}
		return []Event{&FeeTransferFailed{Caller: caller, Amount: *excess, At: at}}, nil
	}
	undo.push(func() { _ = g.native.Transfer(caller, g.self, excess) })
	return nil, nil
}
