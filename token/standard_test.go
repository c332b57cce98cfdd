package token_test

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/custody-engine/engine"
	"github.com/warp/custody-engine/token"
)

var (
	holder = engine.MustAddress("0x00000000000000000000000000000000000000aa")
	payee  = engine.MustAddress("0x00000000000000000000000000000000000000bb")
	vault  = engine.MustAddress("0x00000000000000000000000000000000000000e9")
)

func n(v uint64) *uint256.Int { return uint256.NewInt(v) }

// =============================================================================
// STANDARD TOKEN
// =============================================================================

func TestStandard_MintAndTransfer(t *testing.T) {
	tok := token.NewStandard(6)
	tok.Mint(holder, n(1000))

	require.NoError(t, tok.TransferFrom(holder, payee, n(400)))
	assert.Equal(t, n(600), tok.BalanceOf(holder))
	assert.Equal(t, n(400), tok.BalanceOf(payee))
}

func TestStandard_InsufficientBalance(t *testing.T) {
	tok := token.NewStandard(6)
	tok.Mint(holder, n(100))

	err := tok.TransferFrom(holder, payee, n(101))
	assert.ErrorIs(t, err, token.ErrTransferRejected)
	assert.Equal(t, n(100), tok.BalanceOf(holder))
}

func TestStandard_UnknownSender(t *testing.T) {
	tok := token.NewStandard(6)
	err := tok.TransferFrom(holder, payee, n(1))
	assert.ErrorIs(t, err, token.ErrTransferRejected)
}

func TestStandard_TaxOnTransfer(t *testing.T) {
	// GIVEN a 10% fee-on-transfer token
	tok := token.NewStandard(6)
	tok.TaxBasisPoints = 1000
	tok.Mint(holder, n(1000))

	// WHEN 1000 is declared
	require.NoError(t, tok.TransferFrom(holder, payee, n(1000)))

	// THEN the sender is debited the full amount but the recipient
	// receives the declared amount minus the tax
	assert.True(t, tok.BalanceOf(holder).IsZero())
	assert.Equal(t, n(900), tok.BalanceOf(payee))
}

func TestStandard_FailTransfers(t *testing.T) {
	tok := token.NewStandard(6)
	tok.Mint(holder, n(1000))
	tok.FailTransfers = true

	assert.ErrorIs(t, tok.TransferFrom(holder, payee, n(1)), token.ErrTransferRejected)
	assert.Equal(t, n(1000), tok.BalanceOf(holder))
}

func TestStandard_BoundTransfer(t *testing.T) {
	// Plain Transfer debits the bound holder, matching how an engine
	// pushes tokens out of its own custody.
	tok := token.NewStandard(6)
	tok.Bind(vault)
	tok.Mint(vault, n(500))

	require.NoError(t, tok.Transfer(payee, n(200)))
	assert.Equal(t, n(300), tok.BalanceOf(vault))
	assert.Equal(t, n(200), tok.BalanceOf(payee))
}

func TestStandard_OnTransferFiresAfterBalancesMove(t *testing.T) {
	tok := token.NewStandard(6)
	tok.Mint(holder, n(100))

	var observed *uint256.Int
	tok.OnTransfer = func() {
		observed = tok.BalanceOf(payee)
	}
	require.NoError(t, tok.TransferFrom(holder, payee, n(100)))
	assert.Equal(t, n(100), observed)
}

func TestStandard_Decimals(t *testing.T) {
	tok := token.NewStandard(8)
	d, err := tok.Decimals()
	require.NoError(t, err)
	assert.Equal(t, uint8(8), d)

	tok.DecimalsErr = errors.New("metadata unavailable")
	_, err = tok.Decimals()
	assert.Error(t, err)

	tok.DecimalsErr = nil
	tok.DecimalsPanic = true
	assert.Panics(t, func() { _, _ = tok.Decimals() })
}

// =============================================================================
// NATIVE BANK
// =============================================================================

func TestBank_FundAndTransfer(t *testing.T) {
	bank := token.NewBank()
	bank.Fund(holder, n(1000))

	require.NoError(t, bank.Transfer(holder, payee, n(250)))
	assert.Equal(t, n(750), bank.Balance(holder))
	assert.Equal(t, n(250), bank.Balance(payee))
}

func TestBank_InsufficientFunds(t *testing.T) {
	bank := token.NewBank()
	bank.Fund(holder, n(10))

	assert.ErrorIs(t, bank.Transfer(holder, payee, n(11)), token.ErrTransferRejected)
	assert.Equal(t, n(10), bank.Balance(holder))
	assert.True(t, bank.Balance(payee).IsZero())
}

func TestBank_RejectingRecipient(t *testing.T) {
	// A recipient marked as rejecting models a payee that bounces native
	// currency, which the fee path must tolerate.
	bank := token.NewBank()
	bank.Fund(holder, n(100))
	bank.Reject(payee, true)

	assert.ErrorIs(t, bank.Transfer(holder, payee, n(50)), token.ErrTransferRejected)
	assert.Equal(t, n(100), bank.Balance(holder))

	bank.Reject(payee, false)
	require.NoError(t, bank.Transfer(holder, payee, n(50)))
	assert.Equal(t, n(50), bank.Balance(payee))
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := token.NewRegistry()
	tok := token.NewStandard(18)
	addr := engine.MustAddress("0x0000000000000000000000000000000000000001")
	reg.Register(addr, tok)

	got, err := reg.Token(addr)
	require.NoError(t, err)
	assert.Same(t, tok, got)

	_, err = reg.Token(payee)
	assert.ErrorIs(t, err, engine.ErrUnknownToken)

	assert.ElementsMatch(t, []engine.Address{addr}, reg.Addresses())
}
