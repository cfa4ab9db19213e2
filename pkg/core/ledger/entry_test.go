package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	owner  = common.HexToAddress("0x0000000000000000000000000000000000000A11")
	mkt    = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	other  = common.HexToAddress("0x0000000000000000000000000000000000000B22")
	otherM = common.HexToAddress("0x00000000000000000000000000000000000000BB")
)

func TestReserveMovesFreeToLocked(t *testing.T) {
	e := NewEntry(owner, mkt)
	if err := e.Deposit(Quote, 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := e.Reserve(Quote, 600); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if e.QuoteFree != 400 || e.QuoteLocked != 600 {
		t.Fatalf("after reserve: free=%d locked=%d, want 400/600", e.QuoteFree, e.QuoteLocked)
	}

	// Base buckets are untouched.
	if e.BaseFree != 0 || e.BaseLocked != 0 {
		t.Fatalf("base buckets moved: free=%d locked=%d", e.BaseFree, e.BaseLocked)
	}
}

func TestReserveInsufficientFundsLeavesEntryUnchanged(t *testing.T) {
	e := NewEntry(owner, mkt)
	e.Deposit(Base, 5)

	err := e.Reserve(Base, 6)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if e.BaseFree != 5 || e.BaseLocked != 0 {
		t.Fatalf("entry mutated on failed reserve: %+v", e)
	}
}

func TestReleaseUnderflow(t *testing.T) {
	e := NewEntry(owner, mkt)
	e.Deposit(Quote, 100)
	e.Reserve(Quote, 100)

	if err := e.Release(Quote, 40); err != nil {
		t.Fatalf("release: %v", err)
	}
	if e.QuoteFree != 40 || e.QuoteLocked != 60 {
		t.Fatalf("after release: free=%d locked=%d, want 40/60", e.QuoteFree, e.QuoteLocked)
	}

	if err := e.Release(Quote, 61); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("over-release err = %v, want ErrUnderflow", err)
	}
	if e.QuoteFree != 40 || e.QuoteLocked != 60 {
		t.Fatalf("entry mutated on failed release: %+v", e)
	}
}

func TestSettleAppliesDeltasAcrossBuckets(t *testing.T) {
	e := NewEntry(owner, mkt)
	e.Deposit(Base, 10)
	e.Reserve(Base, 10)

	// A fill of 6 base unwinds the maker's lock without touching free.
	if err := e.Settle(Base, -6, 0); err != nil {
		t.Fatalf("settle locked: %v", err)
	}
	// The quote proceeds land in the free bucket.
	if err := e.Settle(Quote, 0, 660); err != nil {
		t.Fatalf("settle free: %v", err)
	}

	if e.BaseLocked != 4 || e.QuoteFree != 660 {
		t.Fatalf("after settle: baseLocked=%d quoteFree=%d, want 4/660", e.BaseLocked, e.QuoteFree)
	}

	// Driving any bucket negative is rejected and nothing moves.
	if err := e.Settle(Base, -5, 0); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("negative settle err = %v, want ErrUnderflow", err)
	}
	if e.BaseLocked != 4 {
		t.Fatalf("locked mutated on failed settle: %d", e.BaseLocked)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	e := NewEntry(owner, mkt)
	e.Deposit(Quote, 100)

	cp := e.Clone()
	cp.Reserve(Quote, 100)

	if e.QuoteLocked != 0 || e.QuoteFree != 100 {
		t.Fatalf("original mutated through clone: %+v", e)
	}
}

func TestRegistryKeysByMarketAndOwner(t *testing.T) {
	r := NewRegistry()
	r.Put(NewEntry(owner, mkt))
	r.Put(NewEntry(other, mkt))
	r.Put(NewEntry(owner, otherM))

	if e := r.Get(mkt, owner); e == nil || e.Owner != owner || e.Market != mkt {
		t.Fatalf("lookup (mkt, owner) = %+v", e)
	}
	if e := r.Get(otherM, other); e != nil {
		t.Fatalf("lookup of absent pair = %+v, want nil", e)
	}

	var count int
	r.ForMarket(mkt, func(*Entry) { count++ })
	if count != 2 {
		t.Fatalf("ForMarket visited %d entries, want 2", count)
	}
}
