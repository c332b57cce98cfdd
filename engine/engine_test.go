package engine_test

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/warp/custody-engine/engine"
	"github.com/warp/custody-engine/token"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	alice       = engine.MustAddress("0x00000000000000000000000000000000000000a1")
	bob         = engine.MustAddress("0x00000000000000000000000000000000000000b2")
	carol       = engine.MustAddress("0x00000000000000000000000000000000000000c3")
	feeReceiver = engine.MustAddress("0x00000000000000000000000000000000000000fe")
	engineAddr  = engine.MustAddress("0x00000000000000000000000000000000000000e9")
	tokenAddr   = engine.MustAddress("0x0000000000000000000000000000000000000001")
)

const (
	lockFee    = 10
	vestingFee = 20
)

func amt(n uint64) *uint256.Int { return uint256.NewInt(n) }

// fakeClock lets tests step through lock and vesting schedules.
type fakeClock struct {
	now time.Time
}

// The base epoch sits early enough that now+100 years still fits the
// 32-bit timestamp range, so the lock-horizon cap is exercisable.
func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_000_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time            { return c.now }
func (c *fakeClock) Advance(d time.Duration)   { c.now = c.now.Add(d) }
func (c *fakeClock) Unix() uint32              { return uint32(c.now.Unix()) }
func (c *fakeClock) In(d time.Duration) uint32 { return uint32(c.now.Add(d).Unix()) }

// fixture wires an engine with an in-memory bank, token registry, and one
// standard token, with alice and bob funded in both currencies.
type fixture struct {
	clock *fakeClock
	bank  *token.Bank
	reg   *token.Registry
	tok   *token.Standard
	eng   *engine.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	bank := token.NewBank()
	reg := token.NewRegistry()

	tok := token.NewStandard(6)
	tok.Bind(engineAddr)
	reg.Register(tokenAddr, tok)

	eng := engine.New(engine.Config{
		LockFee:     amt(lockFee),
		VestingFee:  amt(vestingFee),
		FeeReceiver: feeReceiver,
		Self:        engineAddr,
		ChainID:     1337,
		Tokens:      reg,
		Native:      bank,
		Now:         clock.Now,
	})

	for _, acct := range []engine.Address{alice, bob, carol} {
		bank.Fund(acct, amt(1_000_000))
		tok.Mint(acct, amt(1_000_000))
	}

	return &fixture{clock: clock, bank: bank, reg: reg, tok: tok, eng: eng}
}

// lock creates a lock for owner with default fee payment, failing the test
// on error.
func (f *fixture) lock(t *testing.T, owner engine.Address, amount uint64, unlockIn time.Duration) uint64 {
	t.Helper()
	id, err := f.eng.LockToken(owner, tokenAddr, amt(amount), f.clock.In(unlockIn), amt(lockFee))
	require.NoError(t, err)
	return id
}

// vest creates a vesting schedule for owner with default fee payment.
func (f *fixture) vest(t *testing.T, owner engine.Address, total uint64, cliff, duration uint32) uint64 {
	t.Helper()
	id, err := f.eng.CreateVesting(owner, tokenAddr, amt(total), cliff, duration, amt(vestingFee))
	require.NoError(t, err)
	return id
}

// eventKinds returns the kinds of all committed events, in commit order.
func (f *fixture) eventKinds() []string {
	events := f.eng.Events().All()
	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[i] = e.Kind()
	}
	return kinds
}
