// Package market defines the immutable per-pair configuration record, the
// admission check gating market creation, and a registry of live markets.
package market

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborclob/harbor/pkg/core/asset"
)

var (
	// ErrUnauthorized is returned when a non-privileged caller attempts
	// market creation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists is returned when a market for the (unordered) asset
	// pair already exists.
	ErrAlreadyExists = errors.New("market already exists")

	// ErrNotFound is returned on lookup of an unknown market address.
	ErrNotFound = errors.New("market not found")
)

// Market binds one base/quote pair to its two order books and two custody
// vaults. Immutable after creation. Field order matches the persisted layout.
type Market struct {
	Authority     common.Address `json:"authority"`
	BaseAsset     common.Address `json:"baseAsset"`
	QuoteAsset    common.Address `json:"quoteAsset"`
	BidsRef       common.Address `json:"bidsRef"`
	AsksRef       common.Address `json:"asksRef"`
	BaseVaultRef  common.Address `json:"baseVaultRef"`
	QuoteVaultRef common.Address `json:"quoteVaultRef"`
}

// New derives all record addresses for a base/quote pair and binds them into
// a market owned by the given authority.
func New(authority, baseAsset, quoteAsset common.Address) *Market {
	addr := asset.MarketAddress(baseAsset, quoteAsset)
	return &Market{
		Authority:     authority,
		BaseAsset:     baseAsset,
		QuoteAsset:    quoteAsset,
		BidsRef:       asset.BidsAddress(addr),
		AsksRef:       asset.AsksAddress(addr),
		BaseVaultRef:  asset.VaultAddress(addr, baseAsset),
		QuoteVaultRef: asset.VaultAddress(addr, quoteAsset),
	}
}

// Address returns the market's derived address.
func (m *Market) Address() common.Address {
	return asset.MarketAddress(m.BaseAsset, m.QuoteAsset)
}

// Admission is the capability value the engine compares market-creation
// callers against. The privileged identity is resolved by the deployment
// (program-metadata lookup or config), not by ambient global state.
type Admission struct {
	Admin common.Address
}

// IsAuthorized reports whether the caller may create markets.
func (a Admission) IsAuthorized(caller common.Address) bool {
	return caller == a.Admin
}

// Registry holds live markets keyed by derived address. Like the ledger
// arena it relies on the engine's lock for serialization.
type Registry struct {
	markets map[common.Address]*Market
}

// NewRegistry returns an empty market registry.
func NewRegistry() *Registry {
	return &Registry{markets: make(map[common.Address]*Market)}
}

// Get returns the market at addr or ErrNotFound.
func (r *Registry) Get(addr common.Address) (*Market, error) {
	m, ok := r.markets[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// Exists reports whether a market is registered at addr.
func (r *Registry) Exists(addr common.Address) bool {
	_, ok := r.markets[addr]
	return ok
}

// Put registers a market under its derived address.
func (r *Registry) Put(m *Market) {
	r.markets[m.Address()] = m
}

// List returns all registered markets.
func (r *Registry) List() []*Market {
	out := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}
