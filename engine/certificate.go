/*
certificate.go - Deterministic proof-of-lock certificate hashes

PURPOSE:
  Produces a fingerprint of a lock's defining fields for off-chain
  verification. The hash is Keccak-256 over a fixed-width encoding of
  (id, token, amount, unlockTime, owner, chainId): every field occupies
  an exact byte width with no separators, so two different field tuples
  can never concatenate to the same input.

ENCODING (big-endian, 168 bytes total):
  id         32 bytes
  token      20 bytes
  amount     32 bytes
  unlockTime 32 bytes
  owner      20 bytes
  chainId    32 bytes
*/
package engine

import (
	"golang.org/x/crypto/sha3"
)

// Certificate computes the proof-of-lock hash for the lock with the given
// id, bound to this engine's chain id. Reproducible bit-for-bit from the
// same inputs.
func (e *Engine) Certificate(id uint64) ([32]byte, error) {
	rec, err := e.Lock(id)
	if err != nil {
		return [32]byte{}, err
	}
	return LockCertificate(&rec, e.cfg.ChainID), nil
}

// LockCertificate hashes a lock record's defining fields with chainID.
func LockCertificate(rec *LockRecord, chainID uint64) [32]byte {
	var buf [168]byte
	putUint64(buf[0:32], rec.ID)
	copy(buf[32:52], rec.Token[:])
	amount := rec.Amount.Bytes32()
	copy(buf[52:84], amount[:])
	putUint64(buf[84:116], uint64(rec.UnlockTime))
	copy(buf[116:136], rec.Owner[:])
	putUint64(buf[136:168], chainID)

	h := sha3.NewLegacyKeccak256()
	h.Write(buf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// putUint64 writes v into the last 8 bytes of a zeroed 32-byte word.
func putUint64(word []byte, v uint64) {
	for i := 0; i < 8; i++ {
		word[len(word)-1-i] = byte(v >> (8 * i))
	}
}
