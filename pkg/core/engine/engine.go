// Package engine implements the exchange core: market creation, order
// placement with price-time matching against pre-declared maker ledgers, and
// settlement of accumulated proceeds.
//
// Every public operation is all-or-nothing. A call mutates only staged
// clones of the records it references; once every check has passed, the
// clones are swapped into live state and persisted in a single batch. A
// failure anywhere before commit leaves memory and disk untouched.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/harborclob/harbor/pkg/core/asset"
	"github.com/harborclob/harbor/pkg/core/ledger"
	"github.com/harborclob/harbor/pkg/core/market"
	"github.com/harborclob/harbor/pkg/core/num"
	"github.com/harborclob/harbor/pkg/core/orderbook"
	"github.com/harborclob/harbor/pkg/storage"
)

var (
	// ErrInvalidOrder is returned for non-positive price or size.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidPair is returned when a market is created with identical
	// base and quote assets.
	ErrInvalidPair = errors.New("base and quote assets must differ")

	// ErrNoFundsToSettle is returned when a trader settles with zero free
	// balances.
	ErrNoFundsToSettle = errors.New("no funds to settle")
)

// SelfTradePolicy decides what happens when a taker's new order would cross
// their own resting order.
type SelfTradePolicy uint8

const (
	// SelfTradeAllow lets the order trade against the owner's own resting
	// order; both legs settle on the same ledger entry.
	SelfTradeAllow SelfTradePolicy = iota

	// SelfTradeSkip leaves the owner's resting orders untouched during
	// matching.
	SelfTradeSkip
)

// Config carries the engine's fixed parameters.
type Config struct {
	BookCapacity int
	SelfTrade    SelfTradePolicy
}

// Fill describes one executed cross. Price is always the maker's price.
type Fill struct {
	Market   common.Address `json:"market"`
	Taker    common.Address `json:"taker"`
	Maker    common.Address `json:"maker"`
	Price    uint64         `json:"price"`
	Size     uint64         `json:"size"`
	BidTaker bool           `json:"bidTaker"`
	MakerSeq uint64         `json:"makerSeq"`
}

// Result reports the outcome of a PlaceOrder call.
type Result struct {
	Filled  uint64 // total base quantity executed
	Resting uint64 // sequence of the resting remainder, 0 if fully filled
	Fills   []Fill
}

// Exchange holds all live state of one deployment: registered markets, their
// books, the ledger-entry arena, and the token custody collaborator.
// All operations serialize on one mutex, matching the
// single-writer-per-record model the algorithms assume.
type Exchange struct {
	mu        sync.Mutex
	cfg       Config
	admission market.Admission
	tokens    asset.Ledger
	markets   *market.Registry
	books     map[common.Address]*orderbook.Book // keyed by bids/asks ref
	entries   *ledger.Registry
	store     *storage.Store // nil in memory-only mode
	log       *zap.Logger
	tradeID   uint64
}

// New builds an exchange. If store is non-nil, previously persisted markets,
// books, and ledger entries are restored.
func New(cfg Config, admission market.Admission, tokens asset.Ledger, store *storage.Store, logger *zap.Logger) (*Exchange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BookCapacity <= 0 {
		return nil, fmt.Errorf("book capacity must be positive, got %d", cfg.BookCapacity)
	}

	e := &Exchange{
		cfg:       cfg,
		admission: admission,
		tokens:    tokens,
		markets:   market.NewRegistry(),
		books:     make(map[common.Address]*orderbook.Book),
		entries:   ledger.NewRegistry(),
		store:     store,
		log:       logger,
	}
	if store != nil {
		if err := e.restore(); err != nil {
			return nil, fmt.Errorf("restore state: %w", err)
		}
	}
	return e, nil
}

func (e *Exchange) restore() error {
	markets, err := e.store.LoadMarkets()
	if err != nil {
		return err
	}
	for _, m := range markets {
		e.markets.Put(m)
		for _, ref := range []common.Address{m.BidsRef, m.AsksRef} {
			b, err := e.store.LoadBook(ref)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("market %s references missing book %s", m.Address().Hex(), ref.Hex())
			}
			e.books[ref] = b
		}
		// Trade IDs keep increasing across restarts.
		trades, err := e.store.LoadRecentTrades(m.Address(), 1)
		if err != nil {
			return err
		}
		if len(trades) > 0 && trades[0].ID > e.tradeID {
			e.tradeID = trades[0].ID
		}
	}
	entries, err := e.store.LoadEntries()
	if err != nil {
		return err
	}
	for _, en := range entries {
		e.entries.Put(en)
	}
	e.log.Info("state_restored",
		zap.Int("markets", len(markets)),
		zap.Int("ledger_entries", len(entries)))
	return nil
}

// InitializeMarket creates a market for an asset pair plus its two empty
// books and two zero-balance vaults, all atomically. Only the admission
// authority may call it; re-creating a pair (in either asset order) fails
// with market.ErrAlreadyExists.
func (e *Exchange) InitializeMarket(caller, baseAsset, quoteAsset common.Address) (*market.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.admission.IsAuthorized(caller) {
		return nil, fmt.Errorf("%w: caller %s", market.ErrUnauthorized, caller.Hex())
	}
	if baseAsset == quoteAsset {
		return nil, ErrInvalidPair
	}
	addr := asset.MarketAddress(baseAsset, quoteAsset)
	if e.markets.Exists(addr) {
		return nil, fmt.Errorf("%w: %s", market.ErrAlreadyExists, addr.Hex())
	}

	m := market.New(caller, baseAsset, quoteAsset)
	bids := orderbook.New(addr, true, e.cfg.BookCapacity)
	asks := orderbook.New(addr, false, e.cfg.BookCapacity)

	if e.store != nil {
		batch := e.store.NewBatch()
		if err := batch.PutMarket(m); err != nil {
			return nil, err
		}
		if err := batch.PutBook(m.BidsRef, bids); err != nil {
			return nil, err
		}
		if err := batch.PutBook(m.AsksRef, asks); err != nil {
			return nil, err
		}
		if err := batch.Commit(); err != nil {
			return nil, fmt.Errorf("persist market: %w", err)
		}
	}

	e.markets.Put(m)
	e.books[m.BidsRef] = bids
	e.books[m.AsksRef] = asks

	e.log.Info("market_initialized",
		zap.String("market", addr.Hex()),
		zap.String("base", baseAsset.Hex()),
		zap.String("quote", quoteAsset.Hex()),
		zap.String("authority", caller.Hex()))
	return m, nil
}

// PlaceOrder reserves the taker's collateral, crosses the opposite book in
// price-then-sequence priority, and rests any remainder on the taker's side.
//
// Only makers whose owner appears in makerHandles can be crossed; resting
// orders of other owners are skipped. The caller discovers and supplies the
// handle set ahead of submission.
func (e *Exchange) PlaceOrder(caller, marketAddr common.Address, isBid bool, price, size uint64, makerHandles []common.Address) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if price == 0 || size == 0 {
		return nil, fmt.Errorf("%w: price=%d size=%d", ErrInvalidOrder, price, size)
	}
	m, err := e.markets.Get(marketAddr)
	if err != nil {
		return nil, err
	}

	ownRef, oppRef := m.AsksRef, m.BidsRef
	if isBid {
		ownRef, oppRef = m.BidsRef, m.AsksRef
	}
	own := e.books[ownRef].Clone()
	opp := e.books[oppRef].Clone()

	taker := e.entries.Get(marketAddr, caller)
	if taker == nil {
		taker = ledger.NewEntry(caller, marketAddr)
	} else {
		taker = taker.Clone()
	}

	// Collateral reservation, before any matching. The free bucket is
	// consumed first; the shortfall comes from the caller's external
	// token account.
	reserveAsset := ledger.Base
	reserveAssetID, vaultRef := m.BaseAsset, m.BaseVaultRef
	required := size
	if isBid {
		reserveAsset = ledger.Quote
		reserveAssetID, vaultRef = m.QuoteAsset, m.QuoteVaultRef
		if required, err = num.Mul(price, size); err != nil {
			return nil, err
		}
	}
	pull := required - num.Min(taker.Free(reserveAsset), required)
	if pull > 0 {
		if e.tokens.BalanceOf(reserveAssetID, caller) < pull {
			return nil, fmt.Errorf("%w: need %d more %s units", ledger.ErrInsufficientFunds, pull, reserveAsset)
		}
		if _, err := num.Add(e.tokens.BalanceOf(reserveAssetID, vaultRef), pull); err != nil {
			return nil, err
		}
		if err := taker.Deposit(reserveAsset, pull); err != nil {
			return nil, err
		}
	}
	if err := taker.Reserve(reserveAsset, required); err != nil {
		return nil, err
	}

	handles := make(map[common.Address]bool, len(makerHandles))
	for _, h := range makerHandles {
		handles[h] = true
	}
	stagedMakers := make(map[common.Address]*ledger.Entry)

	remaining := size
	var fills []Fill
	type reduction struct {
		seq uint64
		qty uint64
	}
	var plan []reduction
	var scanErr error

	opp.Scan(func(o orderbook.Order) bool {
		if remaining == 0 || !crosses(isBid, price, o.Price) {
			return false
		}
		if o.Owner == caller && e.cfg.SelfTrade == SelfTradeSkip {
			return true
		}
		// Writes go only to pre-declared state: a maker whose ledger
		// handle was not supplied cannot be crossed in this call.
		if o.Owner != caller && !handles[o.Owner] {
			return true
		}

		maker := taker
		if o.Owner != caller {
			var ok bool
			if maker, ok = stagedMakers[o.Owner]; !ok {
				live := e.entries.Get(marketAddr, o.Owner)
				if live == nil {
					scanErr = fmt.Errorf("%w: resting order %d has no ledger entry for %s",
						ledger.ErrUnderflow, o.Sequence, o.Owner.Hex())
					return false
				}
				maker = live.Clone()
				stagedMakers[o.Owner] = maker
			}
		}

		fillSize := num.Min(remaining, o.Size)
		fillValue, err := num.Mul(o.Price, fillSize)
		if err != nil {
			scanErr = err
			return false
		}
		if err := settleFill(taker, maker, isBid, fillSize, fillValue); err != nil {
			scanErr = err
			return false
		}

		plan = append(plan, reduction{seq: o.Sequence, qty: fillSize})
		fills = append(fills, Fill{
			Market:   marketAddr,
			Taker:    caller,
			Maker:    o.Owner,
			Price:    o.Price,
			Size:     fillSize,
			BidTaker: isBid,
			MakerSeq: o.Sequence,
		})
		remaining -= fillSize
		return remaining > 0
	})
	if scanErr != nil {
		return nil, scanErr
	}

	for _, r := range plan {
		if err := opp.Reduce(r.seq, r.qty); err != nil {
			return nil, err
		}
	}

	var restingSeq uint64
	if remaining > 0 {
		if restingSeq, err = own.Insert(caller, price, remaining); err != nil {
			return nil, err
		}
	}

	// Commit point: every check has passed. The reservation pull cannot
	// fail (balance and overflow were verified under the engine lock).
	if pull > 0 {
		if err := e.tokens.Transfer(reserveAssetID, caller, vaultRef, pull); err != nil {
			panic(fmt.Sprintf("engine: reservation transfer failed after validation: %v", err))
		}
	}
	e.books[ownRef] = own
	e.books[oppRef] = opp
	e.entries.Put(taker)
	for _, maker := range stagedMakers {
		e.entries.Put(maker)
	}

	now := time.Now().UnixMilli()
	trades := make([]*storage.Trade, len(fills))
	for i, f := range fills {
		e.tradeID++
		trades[i] = &storage.Trade{
			ID:        e.tradeID,
			Market:    f.Market,
			Taker:     f.Taker,
			Maker:     f.Maker,
			Price:     f.Price,
			Size:      f.Size,
			BidTaker:  f.BidTaker,
			Timestamp: now,
		}
	}
	e.persistPlacement(m, own, opp, ownRef, oppRef, taker, stagedMakers, trades)

	e.log.Info("order_placed",
		zap.String("market", marketAddr.Hex()),
		zap.String("trader", caller.Hex()),
		zap.Bool("bid", isBid),
		zap.Uint64("price", price),
		zap.Uint64("size", size),
		zap.Uint64("filled", size-remaining),
		zap.Uint64("resting_seq", restingSeq),
		zap.Int("fills", len(fills)))

	return &Result{Filled: size - remaining, Resting: restingSeq, Fills: fills}, nil
}

// SettleFunds withdraws the caller's accumulated free balances from the
// market vaults to their external token accounts and zeroes both buckets.
func (e *Exchange) SettleFunds(caller, marketAddr common.Address) (baseOut, quoteOut uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.markets.Get(marketAddr)
	if err != nil {
		return 0, 0, err
	}
	entry := e.entries.Get(marketAddr, caller)
	if entry == nil || (entry.BaseFree == 0 && entry.QuoteFree == 0) {
		return 0, 0, ErrNoFundsToSettle
	}
	if entry.Owner != caller {
		return 0, 0, fmt.Errorf("%w: entry owner %s", market.ErrUnauthorized, entry.Owner.Hex())
	}

	baseOut, quoteOut = entry.BaseFree, entry.QuoteFree
	if e.tokens.BalanceOf(m.BaseAsset, m.BaseVaultRef) < baseOut ||
		e.tokens.BalanceOf(m.QuoteAsset, m.QuoteVaultRef) < quoteOut {
		return 0, 0, fmt.Errorf("%w: vault short of free claims", ledger.ErrUnderflow)
	}

	staged := entry.Clone()
	staged.BaseFree = 0
	staged.QuoteFree = 0

	if baseOut > 0 {
		if err := e.tokens.Transfer(m.BaseAsset, m.BaseVaultRef, caller, baseOut); err != nil {
			panic(fmt.Sprintf("engine: base settlement transfer failed after validation: %v", err))
		}
	}
	if quoteOut > 0 {
		if err := e.tokens.Transfer(m.QuoteAsset, m.QuoteVaultRef, caller, quoteOut); err != nil {
			panic(fmt.Sprintf("engine: quote settlement transfer failed after validation: %v", err))
		}
	}
	e.entries.Put(staged)

	if e.store != nil {
		batch := e.store.NewBatch()
		if err := batch.PutEntry(staged); err != nil {
			panic(fmt.Sprintf("engine: stage settled entry: %v", err))
		}
		if err := batch.Commit(); err != nil {
			panic(fmt.Sprintf("engine: persist settlement: %v", err))
		}
	}

	e.log.Info("funds_settled",
		zap.String("market", marketAddr.Hex()),
		zap.String("trader", caller.Hex()),
		zap.Uint64("base", baseOut),
		zap.Uint64("quote", quoteOut))
	return baseOut, quoteOut, nil
}

func (e *Exchange) persistPlacement(m *market.Market, own, opp *orderbook.Book, ownRef, oppRef common.Address,
	taker *ledger.Entry, makers map[common.Address]*ledger.Entry, trades []*storage.Trade) {
	if e.store == nil {
		return
	}
	batch := e.store.NewBatch()
	fail := func(err error) {
		// Live state has already advanced; losing the write would leave
		// disk behind memory, so treat this as fatal.
		panic(fmt.Sprintf("engine: persist placement: %v", err))
	}
	if err := batch.PutBook(ownRef, own); err != nil {
		fail(err)
	}
	if err := batch.PutBook(oppRef, opp); err != nil {
		fail(err)
	}
	if err := batch.PutEntry(taker); err != nil {
		fail(err)
	}
	for _, maker := range makers {
		if err := batch.PutEntry(maker); err != nil {
			fail(err)
		}
	}
	for _, t := range trades {
		if err := batch.PutTrade(t); err != nil {
			fail(err)
		}
	}
	if err := batch.Commit(); err != nil {
		fail(err)
	}
}

// crosses reports whether a taker at takerPrice trades with a resting order
// at makerPrice: bid price >= ask price.
func crosses(takerIsBid bool, takerPrice, makerPrice uint64) bool {
	if takerIsBid {
		return takerPrice >= makerPrice
	}
	return takerPrice <= makerPrice
}

// settleFill unwinds both sides' escrow for one fill at the maker's price.
// The taker of a bid fill gains free base; the maker gains free quote.
// For an ask taker the directions flip. Vault balances never move on fills;
// proceeds stay vault-backed until SettleFunds.
func settleFill(taker, maker *ledger.Entry, takerIsBid bool, fillSize, fillValue uint64) error {
	if fillSize > math.MaxInt64 || fillValue > math.MaxInt64 {
		return num.ErrOverflow
	}
	sz, val := int64(fillSize), int64(fillValue)
	if takerIsBid {
		if err := taker.Settle(ledger.Quote, -val, 0); err != nil {
			return err
		}
		if err := taker.Settle(ledger.Base, 0, sz); err != nil {
			return err
		}
		if err := maker.Settle(ledger.Base, -sz, 0); err != nil {
			return err
		}
		return maker.Settle(ledger.Quote, 0, val)
	}
	if err := taker.Settle(ledger.Base, -sz, 0); err != nil {
		return err
	}
	if err := taker.Settle(ledger.Quote, 0, val); err != nil {
		return err
	}
	if err := maker.Settle(ledger.Quote, -val, 0); err != nil {
		return err
	}
	return maker.Settle(ledger.Base, 0, sz)
}
