/*
locks.go - Time-lock ledger state machine

PURPOSE:
  The time-lock record store. A lock is created by LockToken, may have
  its unlock time extended (monotonically) and its ownership reassigned
  while active, and terminates at withdrawal.

STATE MACHINE:
  Active (created, not withdrawn) -> Withdrawn (terminal).
  ExtendLock and TransferLockOwnership are self-loops on Active.
  A withdrawn record keeps its slot forever with a zeroed amount; ids
  are never reused.

ORDERING:
  LockToken: fee -> token pull -> record/index mutation -> event. The
  pull precedes record creation so a reentrant call during the pull
  cannot observe a half-created record.
  WithdrawLock: the record is marked terminal and zeroed BEFORE the
  outbound push, so a reentrant call during the push observes already-
  updated state. A failed push rolls the mark back.
*/
package engine

import (
	"github.com/holiman/uint256"
)

// =============================================================================
// MUTATING OPERATIONS
// =============================================================================

// LockToken deposits tokens releasable only after unlockTime. The caller
// attaches `paid` native currency, which must cover the lock fee. The stored
// amount is the measured balance delta, never the declared amount.
func (e *Engine) LockToken(caller, token Address, amount *uint256.Int, unlockTime uint32, paid *uint256.Int) (id uint64, err error) {
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
	now := e.now()
	if unlockTime <= now {
		return 0, ErrTimeNotFuture
	}
	if uint64(unlockTime) > uint64(now)+MaxLockPeriod {
		return 0, ErrLockTooLong
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

	feeEvents, err := e.fees.collect(caller, e.cfg.LockFee, paid, now, &undo)
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
	e.lockSeq++
	id = e.lockSeq
	rec := &LockRecord{
		ID:         id,
		Token:      token,
		Decimals:   decimals,
		Owner:      caller,
		Amount:     *received,
		UnlockTime: unlockTime,
	}
	e.locks[id] = rec
	e.lockIndex.add(caller, id)
	e.mu.Unlock()

	e.log.append(feeEvents...)
	e.log.append(&Locked{
		ID:         id,
		Token:      token,
		Owner:      caller,
		Amount:     *received,
		Decimals:   decimals,
		UnlockTime: unlockTime,
		At:         now,
	})
	return id, nil
}

// ExtendLock pushes an active lock's unlock time further into the future.
// The unlock time only ever increases.
func (e *Engine) ExtendLock(caller Address, id uint64, newUnlockTime uint32) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.locks[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Owner != caller {
		return ErrNotOwner
	}
	if rec.Withdrawn {
		return ErrAlreadyWithdrawn
	}
	if newUnlockTime <= rec.UnlockTime {
		return ErrTimeMustIncrease
	}
	if uint64(newUnlockTime) > uint64(now)+MaxLockPeriod {
		return ErrLockTooLong
	}

	old := rec.UnlockTime
	rec.UnlockTime = newUnlockTime

	e.log.append(&LockExtended{
		ID:            id,
		Owner:         caller,
		OldUnlockTime: old,
		NewUnlockTime: newUnlockTime,
		At:            now,
	})
	return nil
}

// TransferLockOwnership reassigns an active lock to a new owner. The owner
// index is updated (remove old, add new) before the record's owner field so
// the inconsistency window stays within this call.
func (e *Engine) TransferLockOwnership(caller Address, id uint64, newOwner Address) error {
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

	rec, ok := e.locks[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Owner != caller {
		return ErrNotOwner
	}
	if rec.Withdrawn {
		return ErrAlreadyWithdrawn
	}

	if err := e.lockIndex.remove(caller, id); err != nil {
		return err
	}
	e.lockIndex.add(newOwner, id)
	rec.Owner = newOwner

	e.log.append(&LockTransferred{ID: id, From: caller, To: newOwner, At: now})
	return nil
}

// WithdrawLock releases a matured lock to its owner. The record is marked
// terminal and its amount zeroed before the outbound transfer; a second
// withdrawal attempt fails with ErrAlreadyWithdrawn.
func (e *Engine) WithdrawLock(caller Address, id uint64) (err error) {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	now := e.now()

	e.mu.Lock()
	rec, ok := e.locks[id]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	if rec.Owner != caller {
		e.mu.Unlock()
		return ErrNotOwner
	}
	if rec.Withdrawn {
		e.mu.Unlock()
		return ErrAlreadyWithdrawn
	}
	if now < rec.UnlockTime {
		e.mu.Unlock()
		return ErrStillLocked
	}

	amount := uint256.NewInt(0).Set(&rec.Amount)
	token := rec.Token
	rec.Withdrawn = true
	rec.Amount.Clear()
	e.mu.Unlock()

	tok, err := e.resolveToken(token)
	if err == nil {
		err = e.adapter.pushExact(tok, token, caller, amount)
	}
	if err != nil {
		// All-or-nothing: a failed push restores the active state.
		e.mu.Lock()
		rec.Withdrawn = false
		rec.Amount.Set(amount)
		e.mu.Unlock()
		return err
	}

	e.log.append(&LockWithdrawn{ID: id, Token: token, Owner: caller, Amount: *amount, At: now})
	return nil
}

// =============================================================================
// READ OPERATIONS - never acquire the guard
// =============================================================================

// Lock returns a copy of the lock record with the given id.
func (e *Engine) Lock(id uint64) (LockRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.locks[id]
	if !ok {
		return LockRecord{}, ErrNotFound
	}
	return *rec, nil
}

// LocksOf returns the ids of all locks currently held by owner.
func (e *Engine) LocksOf(owner Address) []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lockIndex.held(owner)
}

// LockCountOf returns how many locks owner currently holds.
func (e *Engine) LockCountOf(owner Address) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lockIndex.count(owner)
}
