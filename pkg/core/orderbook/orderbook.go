// Package orderbook implements one side of a market's book: a bounded,
// pure priority container. Orders live in a dense slot array with a
// free-list of vacant slots; a btree over the live slots keeps them in
// price-then-sequence priority. The book never matches — crossing is the
// engine's job — it only inserts, reduces, and removes.
package orderbook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/btree"
)

var (
	// ErrBookFull is returned when insertion exceeds the book's fixed capacity.
	ErrBookFull = errors.New("order book full")

	// ErrOrderNotFound is returned when a sequence number has no live order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrReduceExceedsSize is returned when a reduction exceeds the order's
	// remaining size. Internal consistency violation.
	ErrReduceExceedsSize = errors.New("reduce exceeds remaining size")
)

// Order is one resting commitment. Owner is the lookup key of the owning
// ledger entry, never a live handle. Field order matches the persisted layout.
type Order struct {
	Owner    common.Address `json:"owner"`
	Price    uint64         `json:"price"`
	Size     uint64         `json:"size"` // remaining, reduced on partial fills
	Sequence uint64         `json:"sequence"`
}

// slotRef is the priority-index item: enough key material to order and
// locate an order without touching the slot array.
type slotRef struct {
	price uint64
	seq   uint64
	slot  int
}

// Book is one side of a market's order book.
type Book struct {
	market  common.Address
	isBid   bool
	slots   []Order
	vacant  []int // free-list of slot indices
	bySeq   map[uint64]int
	idx     *btree.BTreeG[slotRef]
	nextSeq uint64
}

// New allocates an empty book with fixed capacity. For bids the best order
// is the highest price; for asks the lowest. Equal prices break ties by
// arrival sequence, earliest first.
func New(market common.Address, isBid bool, capacity int) *Book {
	less := func(a, b slotRef) bool {
		if a.price != b.price {
			if isBid {
				return a.price > b.price
			}
			return a.price < b.price
		}
		return a.seq < b.seq
	}

	vacant := make([]int, capacity)
	for i := range vacant {
		vacant[i] = capacity - 1 - i // pop order: slot 0 first
	}

	return &Book{
		market:  market,
		isBid:   isBid,
		slots:   make([]Order, capacity),
		vacant:  vacant,
		bySeq:   make(map[uint64]int, capacity),
		idx:     btree.NewBTreeG(less),
		nextSeq: 1,
	}
}

// Market returns the owning market address.
func (b *Book) Market() common.Address { return b.market }

// IsBid reports the side fixed at creation.
func (b *Book) IsBid() bool { return b.isBid }

// Len returns the number of resting orders.
func (b *Book) Len() int { return b.idx.Len() }

// Cap returns the fixed capacity.
func (b *Book) Cap() int { return len(b.slots) }

// Insert places a new order and assigns it the next arrival sequence.
// Fails with ErrBookFull when every slot is occupied; nothing is evicted.
func (b *Book) Insert(owner common.Address, price, size uint64) (uint64, error) {
	if len(b.vacant) == 0 {
		return 0, fmt.Errorf("%w: capacity %d", ErrBookFull, len(b.slots))
	}
	seq := b.nextSeq
	b.nextSeq++

	slot := b.vacant[len(b.vacant)-1]
	b.vacant = b.vacant[:len(b.vacant)-1]

	b.slots[slot] = Order{Owner: owner, Price: price, Size: size, Sequence: seq}
	b.bySeq[seq] = slot
	b.idx.Set(slotRef{price: price, seq: seq, slot: slot})
	return seq, nil
}

// Best returns the highest-priority order without removing it.
func (b *Book) Best() (Order, bool) {
	ref, ok := b.idx.Min()
	if !ok {
		return Order{}, false
	}
	return b.slots[ref.slot], true
}

// Get returns the live order with the given sequence.
func (b *Book) Get(seq uint64) (Order, bool) {
	slot, ok := b.bySeq[seq]
	if !ok {
		return Order{}, false
	}
	return b.slots[slot], true
}

// Reduce decrements an order's remaining size; at zero the order leaves the
// book and its slot returns to the free-list. The relative order of all
// remaining entries is unchanged.
func (b *Book) Reduce(seq, amount uint64) error {
	slot, ok := b.bySeq[seq]
	if !ok {
		return fmt.Errorf("%w: sequence %d", ErrOrderNotFound, seq)
	}
	o := &b.slots[slot]
	if amount > o.Size {
		return fmt.Errorf("%w: order %d size %d, reduce %d", ErrReduceExceedsSize, seq, o.Size, amount)
	}
	o.Size -= amount
	if o.Size == 0 {
		b.evict(slot)
	}
	return nil
}

// Remove deletes an order outright regardless of remaining size.
func (b *Book) Remove(seq uint64) error {
	slot, ok := b.bySeq[seq]
	if !ok {
		return fmt.Errorf("%w: sequence %d", ErrOrderNotFound, seq)
	}
	b.evict(slot)
	return nil
}

func (b *Book) evict(slot int) {
	o := b.slots[slot]
	b.idx.Delete(slotRef{price: o.Price, seq: o.Sequence, slot: slot})
	delete(b.bySeq, o.Sequence)
	b.slots[slot] = Order{}
	b.vacant = append(b.vacant, slot)
}

// Scan visits live orders in priority order until fn returns false.
func (b *Book) Scan(fn func(Order) bool) {
	b.idx.Scan(func(ref slotRef) bool {
		return fn(b.slots[ref.slot])
	})
}

// Orders returns all resting orders in priority order.
func (b *Book) Orders() []Order {
	out := make([]Order, 0, b.idx.Len())
	b.Scan(func(o Order) bool {
		out = append(out, o)
		return true
	})
	return out
}

// Clone returns an independent copy for staged mutation. The priority index
// is copy-on-write, so cloning is cheap even for a full book.
func (b *Book) Clone() *Book {
	cp := &Book{
		market:  b.market,
		isBid:   b.isBid,
		slots:   make([]Order, len(b.slots)),
		vacant:  make([]int, len(b.vacant)),
		bySeq:   make(map[uint64]int, len(b.bySeq)),
		idx:     b.idx.Copy(),
		nextSeq: b.nextSeq,
	}
	copy(cp.slots, b.slots)
	copy(cp.vacant, b.vacant)
	for k, v := range b.bySeq {
		cp.bySeq[k] = v
	}
	return cp
}

// bookJSON is the persisted layout: market, side, then the order sequence.
type bookJSON struct {
	Market   common.Address `json:"market"`
	IsBid    bool           `json:"isBid"`
	Orders   []Order        `json:"orders"`
	Capacity int            `json:"capacity"`
	NextSeq  uint64         `json:"nextSeq"`
}

func (b *Book) MarshalJSON() ([]byte, error) {
	return json.Marshal(bookJSON{
		Market:   b.market,
		IsBid:    b.isBid,
		Orders:   b.Orders(),
		Capacity: len(b.slots),
		NextSeq:  b.nextSeq,
	})
}

func (b *Book) UnmarshalJSON(data []byte) error {
	var enc bookJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	if len(enc.Orders) > enc.Capacity {
		return fmt.Errorf("book %s: %d orders exceed capacity %d", enc.Market.Hex(), len(enc.Orders), enc.Capacity)
	}
	fresh := New(enc.Market, enc.IsBid, enc.Capacity)
	for _, o := range enc.Orders {
		slot := fresh.vacant[len(fresh.vacant)-1]
		fresh.vacant = fresh.vacant[:len(fresh.vacant)-1]
		fresh.slots[slot] = o
		fresh.bySeq[o.Sequence] = slot
		fresh.idx.Set(slotRef{price: o.Price, seq: o.Sequence, slot: slot})
	}
	fresh.nextSeq = enc.NextSeq
	*b = *fresh
	return nil
}
