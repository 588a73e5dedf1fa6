package domain

import (
	"fmt"
	"sync"
)

// TokenKey identifies a token by its contract address and network.
type TokenKey struct {
	Address string
	Network string
}

// String renders the key as "network:address" for logging.
func (k TokenKey) String() string {
	return k.Network + ":" + k.Address
}

// Token holds the canonical metadata for a traded token. The authoritative
// copy lives in the TokenRegistry; callers receive value snapshots and write
// back through the registry.
type Token struct {
	Address   string
	Network   string
	Name      string
	Symbol    string
	Price     float64
	MarketCap float64
}

// Key returns the registry key for the token.
func (t Token) Key() TokenKey {
	return TokenKey{Address: t.Address, Network: t.Network}
}

// TokenRegistry is the process-wide store of token metadata. Updates are
// last-write-wins; reads return snapshots so callers never alias the stored
// value. One instance is constructed at startup and injected everywhere.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[TokenKey]Token
}

// NewTokenRegistry returns an empty, ready-to-use registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		tokens: make(map[TokenKey]Token),
	}
}

// Get returns a snapshot of the token stored under (address, network).
func (r *TokenRegistry) Get(address, network string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[TokenKey{Address: address, Network: network}]
	return t, ok
}

// Set registers a token, overwriting any existing entry for the same key.
func (r *TokenRegistry) Set(t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.Key()] = t
}

// Update mutates selected fields of an existing token in place. Nil fields
// are left untouched. It returns the updated snapshot, or ErrNotFound when
// the token is not registered.
func (r *TokenRegistry) Update(address, network string, upd TokenUpdate) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := TokenKey{Address: address, Network: network}
	t, ok := r.tokens[key]
	if !ok {
		return Token{}, fmt.Errorf("token %s: %w", key, ErrNotFound)
	}
	if upd.Name != nil {
		t.Name = *upd.Name
	}
	if upd.Symbol != nil {
		t.Symbol = *upd.Symbol
	}
	if upd.Price != nil {
		t.Price = *upd.Price
	}
	if upd.MarketCap != nil {
		t.MarketCap = *upd.MarketCap
	}
	r.tokens[key] = t
	return t, nil
}

// GetOrCreate returns the stored token for the key, creating and registering
// the candidate when no entry exists yet.
func (r *TokenRegistry) GetOrCreate(candidate Token) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := candidate.Key()
	if t, ok := r.tokens[key]; ok {
		return t
	}
	r.tokens[key] = candidate
	return candidate
}

// Len returns the number of registered tokens.
func (r *TokenRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

// TokenUpdate describes a partial update to a registered token. Only non-nil
// fields are applied.
type TokenUpdate struct {
	Name      *string
	Symbol    *string
	Price     *float64
	MarketCap *float64
}

// Float64Ptr is a convenience helper for building TokenUpdate values.
func Float64Ptr(v float64) *float64 { return &v }

// StringPtr is a convenience helper for building TokenUpdate values.
func StringPtr(s string) *string { return &s }
