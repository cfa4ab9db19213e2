package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborclob/harbor/pkg/core/ledger"
	"github.com/harborclob/harbor/pkg/core/market"
	"github.com/harborclob/harbor/pkg/core/num"
	"github.com/harborclob/harbor/pkg/core/orderbook"
	"github.com/harborclob/harbor/pkg/storage"
)

// Markets returns all registered markets.
func (e *Exchange) Markets() []*market.Market {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markets.List()
}

// Market returns the market at addr.
func (e *Exchange) Market(addr common.Address) (*market.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markets.Get(addr)
}

// BookOrders returns both sides of a market's book in priority order.
func (e *Exchange) BookOrders(marketAddr common.Address) (bids, asks []orderbook.Order, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.markets.Get(marketAddr)
	if err != nil {
		return nil, nil, err
	}
	return e.books[m.BidsRef].Orders(), e.books[m.AsksRef].Orders(), nil
}

// OpenOrders returns a copy of a trader's ledger entry, or false if the
// trader has never placed an order in the market.
func (e *Exchange) OpenOrders(marketAddr, owner common.Address) (ledger.Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := e.entries.Get(marketAddr, owner)
	if entry == nil {
		return ledger.Entry{}, false
	}
	return *entry, true
}

// RecentTrades returns up to limit trades from the persisted trade log,
// newest first. Empty in memory-only mode.
func (e *Exchange) RecentTrades(marketAddr common.Address, limit int) ([]*storage.Trade, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.LoadRecentTrades(marketAddr, limit)
}

// VerifyConservation checks the escrow invariant for one market: each
// vault's balance equals the sum of the corresponding locked and free
// buckets over all ledger entries. Returns nil at every quiescent point in
// a correct execution.
func (e *Exchange) VerifyConservation(marketAddr common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.markets.Get(marketAddr)
	if err != nil {
		return err
	}

	var sumBase, sumQuote uint64
	var sumErr error
	e.entries.ForMarket(marketAddr, func(en *ledger.Entry) {
		if sumErr != nil {
			return
		}
		for _, v := range []uint64{en.BaseLocked, en.BaseFree} {
			if sumBase, sumErr = num.Add(sumBase, v); sumErr != nil {
				return
			}
		}
		for _, v := range []uint64{en.QuoteLocked, en.QuoteFree} {
			if sumQuote, sumErr = num.Add(sumQuote, v); sumErr != nil {
				return
			}
		}
	})
	if sumErr != nil {
		return sumErr
	}

	baseVault := e.tokens.BalanceOf(m.BaseAsset, m.BaseVaultRef)
	quoteVault := e.tokens.BalanceOf(m.QuoteAsset, m.QuoteVaultRef)
	if baseVault != sumBase {
		return fmt.Errorf("base vault %d != ledger total %d", baseVault, sumBase)
	}
	if quoteVault != sumQuote {
		return fmt.Errorf("quote vault %d != ledger total %d", quoteVault, sumQuote)
	}
	return nil
}
