/*
engine.go - Engine construction, configuration, and call discipline

PURPOSE:
  Wires the fee gate, transfer adapter, owner indexes, and both ledgers
  into one engine instance. Configuration (fees, fee receiver, chain id,
  collaborators) is fixed at construction and immutable thereafter:
  there is no privileged party that can pause, seize, or reconfigure
  existing records.

CALL DISCIPLINE:
  Every mutating operation follows the same shape:

    guard acquire -> validate -> collect fee -> move tokens ->
    mutate records/index -> emit events -> guard release

  The reentrancy guard is a single per-instance execution flag. External
  collaborators (token implementations, the native ledger) can run
  arbitrary code during a transfer; if that code re-enters a mutating
  operation the compare-and-swap fails with ErrReentrantCall instead of
  deadlocking. Record state is protected by a short-critical-section
  RWMutex that is never held across an external call.

ROLLBACK:
  Operations are all-or-nothing. External transfers already performed by
  a failing operation are compensated with reverse transfers and record
  mutations are undone before the error returns (see undoStack).

SEE ALSO:
  - locks.go, vesting.go: the two ledger state machines
  - fees.go: fee collection protocol
*/
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
)

// =============================================================================
// CONFIGURATION - immutable after construction
// =============================================================================

// Config fixes an engine instance's fees, identities, and collaborators.
type Config struct {
	LockFee    *uint256.Int // native-currency fee for lockToken
	VestingFee *uint256.Int // native-currency fee for createVesting

	FeeReceiver Address // receives all collected fees
	Self        Address // the engine's own account with tokens and the native ledger
	ChainID     uint64  // bound into certificate hashes

	Tokens TokenResolver
	Native NativeLedger

	// Now supplies the engine's clock. Defaults to time.Now. Injectable
	// so tests can step through lock and vesting schedules.
	Now func() time.Time
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine holds fungible-token deposits under time-lock and vesting policies.
type Engine struct {
	cfg     Config
	fees    feeGate
	adapter transferAdapter

	busy atomic.Bool // reentrancy guard: one mutating call in flight

	mu        sync.RWMutex // record/index state; never held across external calls
	locks     map[uint64]*LockRecord
	vestings  map[uint64]*VestingRecord
	lockIndex *ownerIndex
	vestIndex *ownerIndex
	lockSeq   uint64 // monotonic, never reused
	vestSeq   uint64

	log *EventLog
}

// New constructs an engine. The configuration is copied and immutable from
// this point on.
func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LockFee == nil {
		cfg.LockFee = uint256.NewInt(0)
	}
	if cfg.VestingFee == nil {
		cfg.VestingFee = uint256.NewInt(0)
	}
	return &Engine{
		cfg: cfg,
		fees: feeGate{
			native:   cfg.Native,
			receiver: cfg.FeeReceiver,
			self:     cfg.Self,
		},
		adapter:   transferAdapter{self: cfg.Self},
		locks:     make(map[uint64]*LockRecord),
		vestings:  make(map[uint64]*VestingRecord),
		lockIndex: newOwnerIndex(),
		vestIndex: newOwnerIndex(),
		log:       newEventLog(),
	}
}

// LockFee returns the fixed native-currency fee for lockToken.
func (e *Engine) LockFee() *uint256.Int { return uint256.NewInt(0).Set(e.cfg.LockFee) }

// VestingFee returns the fixed native-currency fee for createVesting.
func (e *Engine) VestingFee() *uint256.Int { return uint256.NewInt(0).Set(e.cfg.VestingFee) }

// FeeReceiver returns the configured fee receiver.
func (e *Engine) FeeReceiver() Address { return e.cfg.FeeReceiver }

// ChainID returns the chain identity bound into certificates.
func (e *Engine) ChainID() uint64 { return e.cfg.ChainID }

// Self returns the engine's own account address.
func (e *Engine) Self() Address { return e.cfg.Self }

// Events exposes the engine's committed event log.
func (e *Engine) Events() *EventLog { return e.log }

// now returns the engine clock as 32-bit unix seconds. The clock is under
// the engine's control, so an out-of-range host time is a deployment fault.
func (e *Engine) now() uint32 {
	s, err := unix32(e.cfg.Now())
	if err != nil {
		panic(err)
	}
	return s
}

// =============================================================================
// REENTRANCY GUARD
// =============================================================================

// acquire takes the per-instance execution flag. It fails, rather than
// blocks, when a mutating call is already in flight: the only way that
// happens under the host's serialized execution is a reentrant callback
// from a token or native-currency transfer.
func (e *Engine) acquire() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// release drops the execution flag. Deferred on every mutating entrypoint
// so the flag clears on all exit paths.
func (e *Engine) release() {
	e.busy.Store(false)
}

// =============================================================================
// UNDO STACK - compensation for failed operations
// =============================================================================

// undoStack collects compensating actions for external effects already
// performed within one operation. On failure the actions run in reverse
// order, best-effort: the host-ledger revert of the original system has
// no analogue here, so completed transfers are explicitly returned.
type undoStack struct {
	steps []func()
}

func (u *undoStack) push(step func()) {
	u.steps = append(u.steps, step)
}

func (u *undoStack) run() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
	u.steps = nil
}

// resolveToken looks up a token implementation by address.
func (e *Engine) resolveToken(addr Address) (Token, error) {
	tok, err := e.cfg.Tokens.Token(addr)
	if err != nil {
		return nil, ErrUnknownToken
	}
	return tok, nil
}
