package orderbook

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testMarket = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	alice      = common.HexToAddress("0x0000000000000000000000000000000000000A11")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000B22")
)

func prices(orders []Order) []uint64 {
	out := make([]uint64, len(orders))
	for i, o := range orders {
		out[i] = o.Price
	}
	return out
}

func TestBidPriority(t *testing.T) {
	b := New(testMarket, true, 16)

	// Insert out of price order; best bid must be the highest price.
	for _, p := range []uint64{100, 105, 95, 102} {
		if _, err := b.Insert(alice, p, 10); err != nil {
			t.Fatalf("insert %d: %v", p, err)
		}
	}

	want := []uint64{105, 102, 100, 95}
	got := prices(b.Orders())
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bid priority = %v, want %v", got, want)
		}
	}

	best, ok := b.Best()
	if !ok || best.Price != 105 {
		t.Fatalf("best bid = %+v, want price 105", best)
	}
}

func TestAskPriority(t *testing.T) {
	b := New(testMarket, false, 16)

	for _, p := range []uint64{100, 105, 95, 102} {
		if _, err := b.Insert(alice, p, 10); err != nil {
			t.Fatalf("insert %d: %v", p, err)
		}
	}

	want := []uint64{95, 100, 102, 105}
	got := prices(b.Orders())
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ask priority = %v, want %v", got, want)
		}
	}
}

func TestEqualPriceTieBreaksBySequence(t *testing.T) {
	b := New(testMarket, true, 16)

	seq1, _ := b.Insert(alice, 100, 5)
	seq2, _ := b.Insert(bob, 100, 7)
	if seq2 <= seq1 {
		t.Fatalf("sequences not monotonic: %d then %d", seq1, seq2)
	}

	best, _ := b.Best()
	if best.Sequence != seq1 || best.Owner != alice {
		t.Fatalf("best = %+v, want earliest arrival seq %d", best, seq1)
	}

	// A better price posted later still outranks both.
	seq3, _ := b.Insert(bob, 101, 1)
	best, _ = b.Best()
	if best.Sequence != seq3 {
		t.Fatalf("best = %+v, want price 101 seq %d", best, seq3)
	}
}

func TestBookFull(t *testing.T) {
	b := New(testMarket, true, 2)

	if _, err := b.Insert(alice, 100, 1); err != nil {
		t.Fatalf("insert 1: %v", err)
	}
	if _, err := b.Insert(alice, 101, 1); err != nil {
		t.Fatalf("insert 2: %v", err)
	}
	if _, err := b.Insert(alice, 102, 1); !errors.Is(err, ErrBookFull) {
		t.Fatalf("insert 3 err = %v, want ErrBookFull", err)
	}
	if b.Len() != 2 {
		t.Fatalf("len = %d after rejected insert, want 2", b.Len())
	}

	// A removal frees the slot for a new insertion.
	best, _ := b.Best()
	if err := b.Remove(best.Sequence); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := b.Insert(bob, 99, 1); err != nil {
		t.Fatalf("insert after remove: %v", err)
	}
}

func TestReduceRemovesAtZero(t *testing.T) {
	b := New(testMarket, false, 8)

	s1, _ := b.Insert(alice, 100, 10)
	s2, _ := b.Insert(bob, 100, 10)
	s3, _ := b.Insert(alice, 101, 10)

	if err := b.Reduce(s1, 4); err != nil {
		t.Fatalf("partial reduce: %v", err)
	}
	o, ok := b.Get(s1)
	if !ok || o.Size != 6 {
		t.Fatalf("order after reduce = %+v, want size 6", o)
	}

	if err := b.Reduce(s1, 6); err != nil {
		t.Fatalf("final reduce: %v", err)
	}
	if _, ok := b.Get(s1); ok {
		t.Fatal("fully reduced order still present")
	}

	// Relative order of the survivors is unchanged.
	rest := b.Orders()
	if len(rest) != 2 || rest[0].Sequence != s2 || rest[1].Sequence != s3 {
		t.Fatalf("surviving order = %+v, want [%d %d]", rest, s2, s3)
	}

	if err := b.Reduce(s2, 11); !errors.Is(err, ErrReduceExceedsSize) {
		t.Fatalf("over-reduce err = %v, want ErrReduceExceedsSize", err)
	}
	if err := b.Reduce(999, 1); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("unknown seq err = %v, want ErrOrderNotFound", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := New(testMarket, true, 8)
	s1, _ := b.Insert(alice, 100, 5)

	cp := b.Clone()
	if _, err := cp.Insert(bob, 110, 3); err != nil {
		t.Fatalf("insert on clone: %v", err)
	}
	if err := cp.Reduce(s1, 5); err != nil {
		t.Fatalf("reduce on clone: %v", err)
	}

	if b.Len() != 1 {
		t.Fatalf("original len = %d after clone mutation, want 1", b.Len())
	}
	o, ok := b.Get(s1)
	if !ok || o.Size != 5 {
		t.Fatalf("original order = %+v, want untouched size 5", o)
	}
}

func TestPersistedRoundTripKeepsPriorityAndSequence(t *testing.T) {
	b := New(testMarket, false, 8)
	b.Insert(alice, 105, 3)
	b.Insert(bob, 100, 2)
	b.Insert(alice, 100, 4)

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Book
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	orig, got := b.Orders(), back.Orders()
	if len(got) != len(orig) {
		t.Fatalf("restored %d orders, want %d", len(got), len(orig))
	}
	for i := range orig {
		if got[i] != orig[i] {
			t.Fatalf("restored[%d] = %+v, want %+v", i, got[i], orig[i])
		}
	}

	// Sequence numbering continues where the original left off.
	seq, err := back.Insert(bob, 99, 1)
	if err != nil {
		t.Fatalf("insert after restore: %v", err)
	}
	if seq != 4 {
		t.Fatalf("next sequence = %d, want 4", seq)
	}
}
