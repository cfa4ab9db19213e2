package asset

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Seed prefixes for derived addresses. Every persistent record in the
// exchange is named by a deterministic 20-byte address computed from the
// records it belongs to, so two nodes always agree on where state lives.
var (
	seedMarket     = []byte("market")
	seedBids       = []byte("bids")
	seedAsks       = []byte("asks")
	seedVault      = []byte("vault")
	seedOpenOrders = []byte("open_orders")
)

// Derive computes a deterministic address from seed byte slices:
// the last 20 bytes of keccak256(seed0 || seed1 || ...).
func Derive(seeds ...[]byte) common.Address {
	h := crypto.Keccak256(seeds...)
	return common.BytesToAddress(h[12:])
}

// MarketAddress derives the market address for an asset pair. The pair is
// unordered: (A,B) and (B,A) derive the same address, so a duplicate market
// for the reversed pair is rejected as already existing.
func MarketAddress(a, b common.Address) common.Address {
	lo, hi := a, b
	if bytes.Compare(hi.Bytes(), lo.Bytes()) < 0 {
		lo, hi = hi, lo
	}
	return Derive(seedMarket, lo.Bytes(), hi.Bytes())
}

// BidsAddress derives the bid-side book address for a market.
func BidsAddress(market common.Address) common.Address {
	return Derive(seedBids, market.Bytes())
}

// AsksAddress derives the ask-side book address for a market.
func AsksAddress(market common.Address) common.Address {
	return Derive(seedAsks, market.Bytes())
}

// VaultAddress derives the custody vault address holding one asset for a market.
func VaultAddress(market, assetID common.Address) common.Address {
	return Derive(seedVault, market.Bytes(), assetID.Bytes())
}

// OpenOrdersAddress derives the ledger-entry address for a (market, owner) pair.
func OpenOrdersAddress(market, owner common.Address) common.Address {
	return Derive(seedOpenOrders, market.Bytes(), owner.Bytes())
}
