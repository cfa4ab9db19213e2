package storage

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

var logMarket = common.HexToAddress("0x00000000000000000000000000000000000000AA")

// All fills of one placement share a timestamp, so within a timestamp the
// trade ID alone must keep keys in chronological order, including across the
// 9 -> 10 digit boundary.
func TestTradeLogOrderWithinOneTimestamp(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	const ts = int64(1756700000000)
	batch := s.NewBatch()
	for id := uint64(1); id <= 12; id++ {
		if err := batch.PutTrade(&Trade{ID: id, Market: logMarket, Price: 100, Size: 1, Timestamp: ts}); err != nil {
			t.Fatalf("put trade %d: %v", id, err)
		}
	}
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	trades, err := s.LoadRecentTrades(logMarket, 5)
	if err != nil {
		t.Fatalf("load recent trades: %v", err)
	}
	want := []uint64{12, 11, 10, 9, 8}
	if len(trades) != len(want) {
		t.Fatalf("loaded %d trades, want %d", len(trades), len(want))
	}
	for i, tr := range trades {
		if tr.ID != want[i] {
			t.Fatalf("trades[%d].ID = %d, want %d", i, tr.ID, want[i])
		}
	}
}

func TestLoadRecentTradesRejectsCorruptRecord(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	key := tradeKey(logMarket, 1756700000000, 1)
	if err := s.db.Set(key, []byte("not json"), pebble.Sync); err != nil {
		t.Fatalf("write corrupt record: %v", err)
	}

	if _, err := s.LoadRecentTrades(logMarket, 10); err == nil {
		t.Fatal("corrupt trade record decoded without error")
	}
}
