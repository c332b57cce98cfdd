/*
index.go - Per-owner reverse index with O(1) add and remove

PURPOSE:
  Maps each owner to the sequence of record ids it currently holds, plus
  a companion map from id to its current slot in that sequence. Removal
  is swap-with-last-and-pop, so both add and remove are O(1) regardless
  of how many records an owner holds.

INVARIANT:
  For every id present in an owner's sequence, pos[id] equals its array
  slot and ids[owner][pos[id]] == id. The invariant is broken only
  transiently inside remove and restored before the call returns.

CORRUPTION GUARD:
  remove re-checks the recorded slot before touching anything. A mismatch
  means a logic defect elsewhere; it aborts with IndexCorruptionError
  rather than silently continuing.
*/
package engine

// ownerIndex is a reverse index from owner to held record ids. Ids are
// unique within one index (each ledger owns its own index), so a single
// id -> slot map suffices.
type ownerIndex struct {
	ids map[Address][]uint64
	pos map[uint64]int
}

func newOwnerIndex() *ownerIndex {
	return &ownerIndex{
		ids: make(map[Address][]uint64),
		pos: make(map[uint64]int),
	}
}

// add appends id to owner's sequence and records its slot. O(1).
func (x *ownerIndex) add(owner Address, id uint64) {
	x.pos[id] = len(x.ids[owner])
	x.ids[owner] = append(x.ids[owner], id)
}

// remove deletes id from owner's sequence by swap-with-last-and-pop. O(1).
func (x *ownerIndex) remove(owner Address, id uint64) error {
	seq := x.ids[owner]
	p, ok := x.pos[id]
	if len(seq) == 0 || !ok || p >= len(seq) || seq[p] != id {
		return &IndexCorruptionError{Owner: owner, ID: id, Slot: p}
	}

	last := len(seq) - 1
	if p != last {
		moved := seq[last]
		seq[p] = moved
		x.pos[moved] = p
	}
	seq[last] = 0
	x.ids[owner] = seq[:last]
	if len(x.ids[owner]) == 0 {
		delete(x.ids, owner)
	}
	delete(x.pos, id)
	return nil
}

// held returns a copy of owner's id sequence.
func (x *ownerIndex) held(owner Address) []uint64 {
	seq := x.ids[owner]
	out := make([]uint64, len(seq))
	copy(out, seq)
	return out
}

func (x *ownerIndex) count(owner Address) int {
	return len(x.ids[owner])
}
