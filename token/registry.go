/*
Package token provides reference implementations of the collaborator
surfaces the engine consumes.

PURPOSE:
  The engine only sees interfaces: engine.Token, engine.TokenResolver and
  engine.NativeLedger. This package supplies concrete in-memory
  implementations for the server's development surface and for tests,
  including the adversarial behaviors the engine defends against
  (transfer taxes, rejecting transfers, reentrant callbacks, hostile
  decimals metadata).

KEY TYPES:
  Registry: address -> Token resolver
  Standard: in-memory fungible token with configurable misbehavior
  Bank:     in-memory native-currency ledger with rejectable accounts

SEE ALSO:
  - engine/adapter.go: the consumed interfaces
*/
package token

import (
	"sync"

	"github.com/warp/custody-engine/engine"
)

// =============================================================================
// REGISTRY - address to implementation resolver
// =============================================================================

// Registry maps token addresses to implementations. Implements
// engine.TokenResolver.
type Registry struct {
	mu     sync.RWMutex
	tokens map[engine.Address]engine.Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[engine.Address]engine.Token)}
}

// Register binds addr to tok, replacing any previous binding.
func (r *Registry) Register(addr engine.Address, tok engine.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[addr] = tok
}

// Token resolves addr.
func (r *Registry) Token(addr engine.Address) (engine.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tok, ok := r.tokens[addr]
	if !ok {
		return nil, engine.ErrUnknownToken
	}
	return tok, nil
}

// Addresses returns every registered token address.
func (r *Registry) Addresses() []engine.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]engine.Address, 0, len(r.tokens))
	for addr := range r.tokens {
		out = append(out, addr)
	}
	return out
}
