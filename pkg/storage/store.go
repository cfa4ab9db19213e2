// Package storage persists exchange state in Pebble. Each engine call that
// mutates state commits all of its writes in a single batch, so the on-disk
// view moves atomically from one quiescent point to the next.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/harborclob/harbor/pkg/core/ledger"
	"github.com/harborclob/harbor/pkg/core/market"
	"github.com/harborclob/harbor/pkg/core/orderbook"
)

// Store wraps a Pebble database holding markets, books, ledger entries, and
// the trade log.
type Store struct {
	db *pebble.DB
}

// NewStore opens (or creates) the database at path.
func NewStore(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		MaxOpenFiles:          1000,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// LoadMarkets returns every persisted market.
func (s *Store) LoadMarkets() ([]*market.Market, error) {
	prefix := []byte(prefixMarket)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var markets []*market.Market
	for iter.First(); iter.Valid(); iter.Next() {
		var m market.Market
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("decode market %s: %w", iter.Key(), err)
		}
		markets = append(markets, &m)
	}
	return markets, nil
}

// LoadBook returns the book persisted at addr, or nil if absent.
func (s *Store) LoadBook(addr common.Address) (*orderbook.Book, error) {
	data, closer, err := s.db.Get(bookKey(addr))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", addr.Hex(), err)
	}
	defer closer.Close()

	var b orderbook.Book
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode book %s: %w", addr.Hex(), err)
	}
	return &b, nil
}

// LoadEntries returns every persisted ledger entry across all markets.
func (s *Store) LoadEntries() ([]*ledger.Entry, error) {
	prefix := []byte(prefixEntry)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []*ledger.Entry
	for iter.First(); iter.Valid(); iter.Next() {
		var e ledger.Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", iter.Key(), err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// Trade is one fill in the append-only trade log.
type Trade struct {
	ID        uint64         `json:"id"`
	Market    common.Address `json:"market"`
	Taker     common.Address `json:"taker"`
	Maker     common.Address `json:"maker"`
	Price     uint64         `json:"price"`
	Size      uint64         `json:"size"`
	BidTaker  bool           `json:"bidTaker"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds
}

// LoadRecentTrades returns up to limit trades for a market, newest first.
func (s *Store) LoadRecentTrades(marketAddr common.Address, limit int) ([]*Trade, error) {
	prefix := tradePrefix(marketAddr)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var trades []*Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("decode trade %s: %w", iter.Key(), err)
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

// Batch accumulates the writes of one engine call and commits them
// atomically with fsync.
type Batch struct {
	b *pebble.Batch
}

// NewBatch starts an empty write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

// PutMarket stages a market record.
func (bt *Batch) PutMarket(m *market.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return bt.b.Set(marketKey(m.Address()), data, nil)
}

// PutBook stages one book side under its derived address.
func (bt *Batch) PutBook(addr common.Address, book *orderbook.Book) error {
	data, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return bt.b.Set(bookKey(addr), data, nil)
}

// PutEntry stages a ledger entry.
func (bt *Batch) PutEntry(e *ledger.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return bt.b.Set(entryKey(e.Market, e.Owner), data, nil)
}

// PutTrade stages a trade-log record.
func (bt *Batch) PutTrade(t *Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return bt.b.Set(tradeKey(t.Market, t.Timestamp, t.ID), data, nil)
}

// Commit writes the batch durably. All staged writes land or none do.
func (bt *Batch) Commit() error {
	return bt.b.Commit(pebble.Sync)
}
