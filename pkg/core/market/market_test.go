package market

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	authority = common.HexToAddress("0x0000000000000000000000000000000000000001")
	tokenA    = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	tokenB    = common.HexToAddress("0x00000000000000000000000000000000000000BB")
)

func TestNewDerivesDistinctRefs(t *testing.T) {
	m := New(authority, tokenA, tokenB)

	refs := map[common.Address]bool{
		m.Address():     true,
		m.BidsRef:       true,
		m.AsksRef:       true,
		m.BaseVaultRef:  true,
		m.QuoteVaultRef: true,
	}
	if len(refs) != 5 {
		t.Fatalf("derived refs collide: %+v", m)
	}
}

func TestReversedPairSharesAddress(t *testing.T) {
	ab := New(authority, tokenA, tokenB)
	ba := New(authority, tokenB, tokenA)
	if ab.Address() != ba.Address() {
		t.Fatalf("pair order changed market address: %s vs %s", ab.Address().Hex(), ba.Address().Hex())
	}
}

func TestAdmission(t *testing.T) {
	a := Admission{Admin: authority}
	if !a.IsAuthorized(authority) {
		t.Fatal("admin rejected")
	}
	if a.IsAuthorized(tokenA) {
		t.Fatal("non-admin accepted")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	m := New(authority, tokenA, tokenB)

	if _, err := r.Get(m.Address()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty registry err = %v, want ErrNotFound", err)
	}

	r.Put(m)
	if !r.Exists(m.Address()) {
		t.Fatal("registered market not found")
	}
	got, err := r.Get(m.Address())
	if err != nil || got != m {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if len(r.List()) != 1 {
		t.Fatalf("List len = %d, want 1", len(r.List()))
	}
}
