/*
events.go - Durable log entries and the engine's committed event log

PURPOSE:
  Every state transition emits exactly one event (plus VestingCompleted
  when a claim finishes a schedule, and FeeTransferFailed when an excess
  refund could not be delivered). Events are the only externally
  consumable API for indexers: each carries enough fields to reconstruct
  the transition without re-querying engine state.

COMMIT SEMANTICS:
  The engine appends events to its in-memory log as the final step of a
  successful operation, before the reentrancy guard releases. A failed
  operation emits nothing. Durable persistence (store/sqlite) is layered
  on top by the API: it journals events the engine has already committed.

SEE ALSO:
  - store/sqlite: durable append-only journal for indexers
  - api/handlers.go: journals committed events and serves the feed
*/
package engine

import (
	"sync"

	"github.com/holiman/uint256"
)

// =============================================================================
// EVENT TYPES - one per state transition
// =============================================================================

// Event is a durable log entry describing one committed state transition.
type Event interface {
	// Kind returns the event name, e.g. "Locked".
	Kind() string
	// Unix returns the engine time at which the transition committed.
	Unix() uint32
}

type Locked struct {
	ID         uint64      `json:"id"`
	Token      Address     `json:"token"`
	Owner      Address     `json:"owner"`
	Amount     uint256.Int `json:"amount"`
	Decimals   uint8       `json:"decimals"`
	UnlockTime uint32      `json:"unlock_time"`
	At         uint32      `json:"at"`
}

type LockExtended struct {
	ID            uint64  `json:"id"`
	Owner         Address `json:"owner"`
	OldUnlockTime uint32  `json:"old_unlock_time"`
	NewUnlockTime uint32  `json:"new_unlock_time"`
	At            uint32  `json:"at"`
}

type LockTransferred struct {
	ID   uint64  `json:"id"`
	From Address `json:"from"`
	To   Address `json:"to"`
	At   uint32  `json:"at"`
}

type LockWithdrawn struct {
	ID     uint64      `json:"id"`
	Token  Address     `json:"token"`
	Owner  Address     `json:"owner"`
	Amount uint256.Int `json:"amount"`
	At     uint32      `json:"at"`
}

type VestingCreated struct {
	ID            uint64      `json:"id"`
	Token         Address     `json:"token"`
	Owner         Address     `json:"owner"`
	Total         uint256.Int `json:"total"`
	Decimals      uint8       `json:"decimals"`
	StartTime     uint32      `json:"start_time"`
	CliffDuration uint32      `json:"cliff_duration"`
	Duration      uint32      `json:"duration"`
	At            uint32      `json:"at"`
}

type VestingClaimed struct {
	ID           uint64      `json:"id"`
	Token        Address     `json:"token"`
	Owner        Address     `json:"owner"`
	Amount       uint256.Int `json:"amount"`        // claimed by this call
	ClaimedTotal uint256.Int `json:"claimed_total"` // cumulative after this call
	At           uint32      `json:"at"`
}

type VestingTransferred struct {
	ID   uint64  `json:"id"`
	From Address `json:"from"`
	To   Address `json:"to"`
	At   uint32  `json:"at"`
}

type VestingCompleted struct {
	ID    uint64      `json:"id"`
	Token Address     `json:"token"`
	Owner Address     `json:"owner"`
	Total uint256.Int `json:"total"`
	At    uint32      `json:"at"`
}

// FeeTransferFailed records a tolerated excess-refund failure: the excess
// payment was handed to the fee receiver instead of back to the caller.
type FeeTransferFailed struct {
	Caller Address     `json:"caller"`
	Amount uint256.Int `json:"amount"`
	At     uint32      `json:"at"`
}

func (e *Locked) Kind() string             { return "Locked" }
func (e *LockExtended) Kind() string       { return "LockExtended" }
func (e *LockTransferred) Kind() string    { return "LockTransferred" }
func (e *LockWithdrawn) Kind() string      { return "LockWithdrawn" }
func (e *VestingCreated) Kind() string     { return "VestingCreated" }
func (e *VestingClaimed) Kind() string     { return "VestingClaimed" }
func (e *VestingTransferred) Kind() string { return "VestingTransferred" }
func (e *VestingCompleted) Kind() string   { return "VestingCompleted" }
func (e *FeeTransferFailed) Kind() string  { return "FeeTransferFailed" }

func (e *Locked) Unix() uint32             { return e.At }
func (e *LockExtended) Unix() uint32       { return e.At }
func (e *LockTransferred) Unix() uint32    { return e.At }
func (e *LockWithdrawn) Unix() uint32      { return e.At }
func (e *VestingCreated) Unix() uint32     { return e.At }
func (e *VestingClaimed) Unix() uint32     { return e.At }
func (e *VestingTransferred) Unix() uint32 { return e.At }
func (e *VestingCompleted) Unix() uint32   { return e.At }
func (e *FeeTransferFailed) Unix() uint32  { return e.At }

// =============================================================================
// EVENT HELPERS - field extraction for journals and feeds
// =============================================================================

// Involves reports whether addr appears as an owner/party of the event.
func Involves(e Event, addr Address) bool {
	switch ev := e.(type) {
	case *Locked:
		return ev.Owner == addr
	case *LockExtended:
		return ev.Owner == addr
	case *LockTransferred:
		return ev.From == addr || ev.To == addr
	case *LockWithdrawn:
		return ev.Owner == addr
	case *VestingCreated:
		return ev.Owner == addr
	case *VestingClaimed:
		return ev.Owner == addr
	case *VestingTransferred:
		return ev.From == addr || ev.To == addr
	case *VestingCompleted:
		return ev.Owner == addr
	case *FeeTransferFailed:
		return ev.Caller == addr
	}
	return false
}

// RecordID returns the custody record the event refers to, if any.
func RecordID(e Event) (uint64, bool) {
	switch ev := e.(type) {
	case *Locked:
		return ev.ID, true
	case *LockExtended:
		return ev.ID, true
	case *LockTransferred:
		return ev.ID, true
	case *LockWithdrawn:
		return ev.ID, true
	case *VestingCreated:
		return ev.ID, true
	case *VestingClaimed:
		return ev.ID, true
	case *VestingTransferred:
		return ev.ID, true
	case *VestingCompleted:
		return ev.ID, true
	}
	return 0, false
}

// =============================================================================
// EVENT LOG - the engine's committed in-memory log
// =============================================================================

// EventLog is an append-only in-memory event sequence. Appends happen only
// as the final step of a successful mutating operation.
type EventLog struct {
	mu      sync.RWMutex
	entries []Event
}

func newEventLog() *EventLog { return &EventLog{} }

func (l *EventLog) append(events ...Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, events...)
}

// All returns every committed event in commit order.
func (l *EventLog) All() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of committed events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Since returns committed events from position n onward. Positions are
// stable: the log is append-only.
func (l *EventLog) Since(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n >= len(l.entries) {
		return nil
	}
	out := make([]Event, len(l.entries)-n)
	copy(out, l.entries[n:])
	return out
}

// Filter returns committed events matching fn, in commit order.
func (l *EventLog) Filter(fn func(Event) bool) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.entries {
		if fn(e) {
			out = append(out, e)
		}
	}
	return out
}
