/*
standard.go - In-memory fungible token with configurable misbehavior

PURPOSE:
  A reference engine.Token implementation for the development server and
  tests. Beyond plain balance bookkeeping it can reproduce the hostile
  behaviors the engine's accounting must survive:

    TaxBasisPoints: a fee-on-transfer deduction, so the received amount
                    is less than the declared amount
    FailTransfers:  every transfer call fails
    OnTransfer:     a callback fired during transfers, for exercising
                    the reentrancy guard
    DecimalsErr / DecimalsPanic: hostile decimals metadata
*/
package token

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
	"github.com/warp/custody-engine/engine"
)

// ErrTransferRejected is returned by transfers configured to fail and by
// transfers exceeding the sender's balance.
var ErrTransferRejected = errors.New("token: transfer rejected")

// Standard is an in-memory fungible token. Implements engine.Token and,
// unless decimals misbehavior is configured, engine.DecimalsProvider.
type Standard struct {
	mu       sync.Mutex
	balances map[engine.Address]*uint256.Int
	decimals uint8
	holder   engine.Address // account debited by plain Transfer calls

	// Misbehavior knobs. Set before handing the token to the engine.
	TaxBasisPoints uint64 // deducted from every transfer, 10000 = 100%
	FailTransfers  bool
	DecimalsErr    error
	DecimalsPanic  bool

	// OnTransfer runs during every successful transfer, after balances
	// move. It may call back into the engine.
	OnTransfer func()
}

// NewStandard creates a token with the given decimals.
func NewStandard(decimals uint8) *Standard {
	return &Standard{
		balances: make(map[engine.Address]*uint256.Int),
		decimals: decimals,
	}
}

// Mint credits amount to addr.
func (t *Standard) Mint(addr engine.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(addr, amount)
}

func (t *Standard) credit(addr engine.Address, amount *uint256.Int) {
	bal, ok := t.balances[addr]
	if !ok {
		bal = uint256.NewInt(0)
		t.balances[addr] = bal
	}
	bal.Add(bal, amount)
}

// BalanceOf returns addr's balance.
func (t *Standard) BalanceOf(addr engine.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[addr]
	if !ok {
		return uint256.NewInt(0)
	}
	return uint256.NewInt(0).Set(bal)
}

// TransferFrom moves amount from `from` to `to`, minus any configured tax.
func (t *Standard) TransferFrom(from, to engine.Address, amount *uint256.Int) error {
	return t.move(from, to, amount)
}

// Transfer moves amount out of the bound holder's balance. The engine is
// the only caller of plain Transfer, so the holder is bound to the engine's
// address when the token is registered (see Bind).
func (t *Standard) Transfer(to engine.Address, amount *uint256.Int) error {
	return t.move(t.holder, to, amount)
}

// Bind fixes the account debited by plain Transfer calls.
func (t *Standard) Bind(holder engine.Address) { t.holder = holder }

var _ engine.Token = (*Standard)(nil)

func (t *Standard) move(from, to engine.Address, amount *uint256.Int) error {
	if t.FailTransfers {
		return ErrTransferRejected
	}

	t.mu.Lock()
	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		t.mu.Unlock()
		return ErrTransferRejected
	}
	sent := uint256.NewInt(0).Set(amount)
	if t.TaxBasisPoints > 0 {
		tax := uint256.NewInt(0).Mul(amount, uint256.NewInt(t.TaxBasisPoints))
		tax.Div(tax, uint256.NewInt(10000))
		sent.Sub(sent, tax)
	}
	bal.Sub(bal, amount)
	t.credit(to, sent)
	t.mu.Unlock()

	if t.OnTransfer != nil {
		t.OnTransfer()
	}
	return nil
}

// Decimals implements the optional metadata capability, honoring the
// configured misbehavior.
func (t *Standard) Decimals() (uint8, error) {
	if t.DecimalsPanic {
		panic("token: decimals exploded")
	}
	if t.DecimalsErr != nil {
		return 0, t.DecimalsErr
	}
	return t.decimals, nil
}
