/*
bank.go - In-memory native-currency ledger

PURPOSE:
  Implements engine.NativeLedger for the development server and tests.
  Accounts can be marked as rejecting incoming transfers, which is how
  the fee gate's refund-failure tolerance gets exercised: a caller that
  rejects its own refund forfeits the excess to the fee receiver.
*/
package token

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/warp/custody-engine/engine"
)

// Bank is an in-memory native-currency ledger.
type Bank struct {
	mu       sync.Mutex
	balances map[engine.Address]*uint256.Int
	rejects  map[engine.Address]bool
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[engine.Address]*uint256.Int),
		rejects:  make(map[engine.Address]bool),
	}
}

// Fund credits amount of native currency to addr.
func (b *Bank) Fund(addr engine.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal, ok := b.balances[addr]
	if !ok {
		bal = uint256.NewInt(0)
		b.balances[addr] = bal
	}
	bal.Add(bal, amount)
}

// Reject marks addr as refusing all incoming transfers.
func (b *Bank) Reject(addr engine.Address, reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejects[addr] = reject
}

// Balance returns addr's native balance.
func (b *Bank) Balance(addr engine.Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal, ok := b.balances[addr]
	if !ok {
		return uint256.NewInt(0)
	}
	return uint256.NewInt(0).Set(bal)
}

// Transfer moves native currency between accounts. Fails if the sender's
// balance is insufficient or the recipient rejects incoming transfers.
func (b *Bank) Transfer(from, to engine.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rejects[to] {
		return ErrTransferRejected
	}
	bal, ok := b.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrTransferRejected
	}
	bal.Sub(bal, amount)
	dst, ok := b.balances[to]
	if !ok {
		dst = uint256.NewInt(0)
		b.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}

var _ engine.NativeLedger = (*Bank)(nil)
