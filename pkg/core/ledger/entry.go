// Package ledger implements the per-(trader, market) escrow accounting
// record. Every resting order is backed by collateral in a locked bucket;
// fill proceeds accumulate in a free bucket until the trader settles them
// out. All four balances are non-negative at all times, and for each market
// vault the invariant holds:
//
//	vault.balance == sum(locked) + sum(free)
//
// over all entries of that market, i.e. every unit of custody is attributable
// to exactly one bucket of one trader.
package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborclob/harbor/pkg/core/num"
)

var (
	// ErrInsufficientFunds is returned when a reservation exceeds the free balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnderflow is returned when a release or settlement would drive a
	// bucket negative. This indicates an internal consistency violation and
	// is not user-recoverable.
	ErrUnderflow = errors.New("locked balance underflow")
)

// Asset selects which side of an entry an operation touches.
type Asset uint8

const (
	Base Asset = iota
	Quote
)

func (a Asset) String() string {
	if a == Base {
		return "base"
	}
	return "quote"
}

// Entry is the open-orders record of one trader in one market.
// Field order matches the persisted layout.
type Entry struct {
	Owner       common.Address `json:"owner"`
	Market      common.Address `json:"market"`
	BaseFree    uint64         `json:"baseFree"`
	BaseLocked  uint64         `json:"baseLocked"`
	QuoteFree   uint64         `json:"quoteFree"`
	QuoteLocked uint64         `json:"quoteLocked"`
}

// NewEntry returns a zero-balance entry. Entries are created lazily on a
// trader's first order in a market and never destroyed.
func NewEntry(owner, market common.Address) *Entry {
	return &Entry{Owner: owner, Market: market}
}

func (e *Entry) free(a Asset) *uint64 {
	if a == Base {
		return &e.BaseFree
	}
	return &e.QuoteFree
}

func (e *Entry) locked(a Asset) *uint64 {
	if a == Base {
		return &e.BaseLocked
	}
	return &e.QuoteLocked
}

// Free returns the free balance of the given asset.
func (e *Entry) Free(a Asset) uint64 { return *e.free(a) }

// Locked returns the locked balance of the given asset.
func (e *Entry) Locked(a Asset) uint64 { return *e.locked(a) }

// Reserve moves amount from the free bucket to the locked bucket.
func (e *Entry) Reserve(a Asset, amount uint64) error {
	free, locked := e.free(a), e.locked(a)
	if *free < amount {
		return fmt.Errorf("%w: %s free %d < %d", ErrInsufficientFunds, a, *free, amount)
	}
	newLocked, err := num.Add(*locked, amount)
	if err != nil {
		return err
	}
	*free -= amount
	*locked = newLocked
	return nil
}

// Release moves amount from the locked bucket back to the free bucket.
// Releasing more than is locked is an internal invariant violation.
func (e *Entry) Release(a Asset, amount uint64) error {
	free, locked := e.free(a), e.locked(a)
	if *locked < amount {
		return fmt.Errorf("%w: %s locked %d < %d", ErrUnderflow, a, *locked, amount)
	}
	newFree, err := num.Add(*free, amount)
	if err != nil {
		return err
	}
	*locked -= amount
	*free = newFree
	return nil
}

// Settle applies signed deltas to one asset's buckets. The matching engine
// uses it to unwind a maker's lock and credit the counterparty's proceeds.
// Both buckets must remain non-negative.
func (e *Entry) Settle(a Asset, lockedDelta, freeDelta int64) error {
	locked, err := applyDelta(*e.locked(a), lockedDelta)
	if err != nil {
		return fmt.Errorf("%s locked: %w", a, err)
	}
	free, err := applyDelta(*e.free(a), freeDelta)
	if err != nil {
		return fmt.Errorf("%s free: %w", a, err)
	}
	*e.locked(a) = locked
	*e.free(a) = free
	return nil
}

// Deposit credits the free bucket. Used when collateral is pulled in from
// the trader's external token account during reservation.
func (e *Entry) Deposit(a Asset, amount uint64) error {
	newFree, err := num.Add(*e.free(a), amount)
	if err != nil {
		return err
	}
	*e.free(a) = newFree
	return nil
}

// Clone returns a copy for staged mutation.
func (e *Entry) Clone() *Entry {
	cp := *e
	return &cp
}

func applyDelta(v uint64, delta int64) (uint64, error) {
	if delta >= 0 {
		return num.Add(v, uint64(delta))
	}
	out, err := num.Sub(v, uint64(-delta))
	if err != nil {
		return 0, ErrUnderflow
	}
	return out, nil
}
