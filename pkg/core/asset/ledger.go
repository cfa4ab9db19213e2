// Package asset defines the exchange's boundary to fungible-token custody:
// deterministic addresses for markets, books, and vaults, and the Ledger
// interface through which collateral moves between trader accounts and
// market vaults. The exchange core never mints or burns; it only transfers.
package asset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborclob/harbor/pkg/core/num"
)

// ErrInsufficientBalance is returned when a transfer exceeds the sender's balance.
var ErrInsufficientBalance = errors.New("insufficient token balance")

// Ledger is the custody collaborator: a per-asset map of holder balances.
// A production deployment backs this with the hosting chain's token program;
// MemLedger below serves the daemon and tests.
type Ledger interface {
	// BalanceOf returns the holder's balance of the given asset.
	BalanceOf(assetID, holder common.Address) uint64

	// Transfer moves amount from one holder to another. Fails with
	// ErrInsufficientBalance without mutating anything.
	Transfer(assetID, from, to common.Address, amount uint64) error

	// Mint credits newly issued tokens to a holder. This is the external
	// deposit path; the exchange core itself never calls it.
	Mint(assetID, to common.Address, amount uint64) error
}

// MemLedger is an in-memory token ledger guarded by a mutex.
type MemLedger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]uint64 // asset -> holder -> balance
}

// NewMemLedger returns an empty in-memory token ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{balances: make(map[common.Address]map[common.Address]uint64)}
}

func (l *MemLedger) BalanceOf(assetID, holder common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[assetID][holder]
}

func (l *MemLedger) Transfer(assetID, from, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	holders := l.balances[assetID]
	if holders[from] < amount {
		return fmt.Errorf("%w: asset %s holder %s has %d, need %d",
			ErrInsufficientBalance, assetID.Hex(), from.Hex(), holders[from], amount)
	}
	credited, err := num.Add(holders[to], amount)
	if err != nil {
		return err
	}
	holders[from] -= amount
	holders[to] = credited
	return nil
}

func (l *MemLedger) Mint(assetID, to common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	holders := l.balances[assetID]
	if holders == nil {
		holders = make(map[common.Address]uint64)
		l.balances[assetID] = holders
	}
	credited, err := num.Add(holders[to], amount)
	if err != nil {
		return err
	}
	holders[to] = credited
	return nil
}

// TotalSupply sums all holder balances of an asset. Test hook for the
// no-self-creation property: supply only changes via Mint.
func (l *MemLedger) TotalSupply(assetID common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total uint64
	for _, bal := range l.balances[assetID] {
		total += bal
	}
	return total
}

var _ Ledger = (*MemLedger)(nil)
