package ledger

import (
	"github.com/ethereum/go-ethereum/common"
)

// Key identifies an entry by its stable (market, owner) pair. Orders on a
// book reference their owner's entry through this key rather than a live
// handle, so the book and the ledger never form a pointer cycle.
type Key struct {
	Market common.Address
	Owner  common.Address
}

// Registry is the arena of ledger entries. It is not itself synchronized:
// the engine serializes all access behind its own lock, matching the
// single-writer-per-record semantics of the hosting storage layer.
type Registry struct {
	entries map[Key]*Entry
}

// NewRegistry returns an empty entry arena.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]*Entry)}
}

// Get returns the entry for (market, owner), or nil if the trader has never
// placed an order in the market.
func (r *Registry) Get(market, owner common.Address) *Entry {
	return r.entries[Key{Market: market, Owner: owner}]
}

// Put inserts or replaces an entry. Used both for lazy creation and for
// committing staged clones.
func (r *Registry) Put(e *Entry) {
	r.entries[Key{Market: e.Market, Owner: e.Owner}] = e
}

// ForMarket calls fn for every entry of the given market. Iteration order is
// unspecified; callers aggregate, they do not depend on order.
func (r *Registry) ForMarket(market common.Address, fn func(*Entry)) {
	for k, e := range r.entries {
		if k.Market == market {
			fn(e)
		}
	}
}

// Len returns the number of entries across all markets.
func (r *Registry) Len() int { return len(r.entries) }
