/*
vesting.go - Vesting ledger state machine

PURPOSE:
  The vesting record store. A schedule is created by CreateVesting,
  releases linearly over its duration after an optional cliff, and is
  logically terminal once every token has been claimed. Completed
  records are retained, never deleted.

STATE MACHINE:
  Vesting (claimed < total) -> Completed (claimed == total, terminal).
  TransferVestingOwnership is a self-loop on Vesting.

UNLOCK FORMULA:
  With elapsed = now - (start + cliff), the unlocked amount is

    (total / duration) * elapsed + ((total % duration) * elapsed) / duration

  The split form is deliberate: total fits 96 bits and elapsed fits 32,
  so every intermediate fits well inside 256 bits, and the result equals
  the naive (total * elapsed) / duration exactly for all valid ranges.
  Once elapsed >= duration the full total is unlocked, so the lifetime
  claim sum equals total with no residual dust.
*/
package engine

import (
	"github.com/holiman/uint256"
)

// =============================================================================
// MUTATING OPERATIONS
// =============================================================================

// CreateVesting deposits tokens that vest linearly over duration seconds,
// starting after cliff seconds. The caller attaches `paid` native currency,
// which must cover the vesting fee.
func (e *Engine) CreateVesting(caller, token Address, amount *uint256.Int, cliff, duration uint32, paid *uint256.Int) (id uint64, err error) {
	if err := e.acquire(); err != nil {
		return 0, err
	}
	defer e.release()

	if token.IsZero() || caller.IsZero() {
		return 0, ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return 0, err
	}
	if duration == 0 {
		return 0, ErrDurationZero
	}
	if cliff > MaxCliff {
		return 0, ErrCliffTooLong
	}
	now := e.now()
	if uint64(now)+uint64(cliff)+uint64(duration) > uint64(^uint32(0)) {
		return 0, ErrDateOverflow
	}
	tok, err := e.resolveToken(token)
	if err != nil {
		return 0, err
	}

	var undo undoStack
	defer func() {
		if err != nil {
			undo.run()
		}
	}()

	feeEvents, err := e.fees.collect(caller, e.cfg.VestingFee, paid, now, &undo)
	if err != nil {
		return 0, err
	}

	received, err := e.adapter.pullExact(tok, token, caller, amount)
	if err != nil {
		return 0, err
	}
	if received.BitLen() > AmountBits {
		undo.push(func() { _ = tok.Transfer(caller, received) })
		return 0, ErrAmountOverflow
	}
	decimals := probeDecimals(tok)

	e.mu.Lock()
	e.vestSeq++
	id = e.vestSeq
	rec := &VestingRecord{
		ID:            id,
		Token:         token,
		Decimals:      decimals,
		Owner:         caller,
		Total:         *received,
		StartTime:     now,
		CliffDuration: cliff,
		Duration:      duration,
	}
	e.vestings[id] = rec
	e.vestIndex.add(caller, id)
	e.mu.Unlock()

	e.log.append(feeEvents...)
	e.log.append(&VestingCreated{
		ID:            id,
		Token:         token,
		Owner:         caller,
		Total:         *received,
		Decimals:      decimals,
		StartTime:     now,
		CliffDuration: cliff,
		Duration:      duration,
		At:            now,
	})
	return id, nil
}

// ClaimVesting releases every token vested so far and not yet claimed.
// Completing the schedule additionally emits VestingCompleted, exactly once.
func (e *Engine) ClaimVesting(caller Address, id uint64) (claimed *uint256.Int, err error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	now := e.now()

	e.mu.Lock()
	rec, ok := e.vestings[id]
	if !ok {
		e.mu.Unlock()
		return nil, ErrNotFound
	}
	if rec.Owner != caller {
		e.mu.Unlock()
		return nil, ErrNotOwner
	}
	if rec.Completed() {
		e.mu.Unlock()
		return nil, ErrAlreadyFullyClaimed
	}
	claimable, err := claimableAt(rec, now)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	rec.Claimed.Add(&rec.Claimed, claimable)
	completed := rec.Completed()
	claimedTotal := rec.Claimed
	token := rec.Token
	e.mu.Unlock()

	tok, err := e.resolveToken(token)
	if err == nil {
		err = e.adapter.pushExact(tok, token, caller, claimable)
	}
	if err != nil {
		// All-or-nothing: a failed push restores the claimed counter.
		e.mu.Lock()
		rec.Claimed.Sub(&rec.Claimed, claimable)
		e.mu.Unlock()
		return nil, err
	}

	e.log.append(&VestingClaimed{
		ID:           id,
		Token:        token,
		Owner:        caller,
		Amount:       *claimable,
		ClaimedTotal: claimedTotal,
		At:           now,
	})
	if completed {
		e.log.append(&VestingCompleted{
			ID:    id,
			Token: token,
			Owner: caller,
			Total: claimedTotal,
			At:    now,
		})
	}
	return claimable, nil
}

// TransferVestingOwnership reassigns a not-fully-claimed schedule to a new
// owner. Same index-update-then-owner-update pattern as lock transfers.
func (e *Engine) TransferVestingOwnership(caller Address, id uint64, newOwner Address) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	if newOwner.IsZero() {
		return ErrZeroAddress
	}
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.vestings[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Owner != caller {
		return ErrNotOwner
	}
	if rec.Completed() {
		return ErrAlreadyFullyClaimed
	}

	if err := e.vestIndex.remove(caller, id); err != nil {
		return err
	}
	e.vestIndex.add(newOwner, id)
	rec.Owner = newOwner

	e.log.append(&VestingTransferred{ID: id, From: caller, To: newOwner, At: now})
	return nil
}

// =============================================================================
// UNLOCK CALCULATION
// =============================================================================

// claimableAt computes the amount claimable from rec at time t.
func claimableAt(rec *VestingRecord, t uint32) (*uint256.Int, error) {
	cliffEnd := uint64(rec.StartTime) + uint64(rec.CliffDuration)
	if uint64(t) < cliffEnd {
		return nil, ErrCliffNotReached
	}
	elapsed := uint64(t) - cliffEnd

	unlocked := uint256.NewInt(0)
	if elapsed >= uint64(rec.Duration) {
		unlocked.Set(&rec.Total)
	} else {
		// Split form: quotient*elapsed + remainder*elapsed/duration.
		// total fits 96 bits and elapsed fits 32, so no intermediate
		// can approach 256 bits; the result equals the naive
		// (total*elapsed)/duration exactly.
		duration := uint256.NewInt(uint64(rec.Duration))
		el := uint256.NewInt(elapsed)

		quot := uint256.NewInt(0).Div(&rec.Total, duration)
		rem := uint256.NewInt(0).Mod(&rec.Total, duration)

		unlocked.Mul(quot, el)
		part := uint256.NewInt(0).Mul(rem, el)
		part.Div(part, duration)
		unlocked.Add(unlocked, part)
	}

	claimable := uint256.NewInt(0).Sub(unlocked, &rec.Claimed)
	if claimable.IsZero() {
		return nil, ErrNothingToClaim
	}
	return claimable, nil
}

// =============================================================================
// READ OPERATIONS - never acquire the guard
// =============================================================================

// Vesting returns a copy of the vesting record with the given id.
func (e *Engine) Vesting(id uint64) (VestingRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.vestings[id]
	if !ok {
		return VestingRecord{}, ErrNotFound
	}
	return *rec, nil
}

// Claimable previews what ClaimVesting would release right now.
func (e *Engine) Claimable(id uint64) (*uint256.Int, error) {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.vestings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Completed() {
		return nil, ErrAlreadyFullyClaimed
	}
	return claimableAt(rec, now)
}

// VestingsOf returns the ids of all schedules currently held by owner.
func (e *Engine) VestingsOf(owner Address) []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vestIndex.held(owner)
}

// VestingCountOf returns how many schedules owner currently holds.
func (e *Engine) VestingCountOf(owner Address) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vestIndex.count(owner)
}
