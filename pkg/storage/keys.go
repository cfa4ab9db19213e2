package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema:
//
//	mkt:<market-address>           -> Market
//	book:<book-address>            -> Book (one record per side)
//	oo:<market>:<owner>            -> ledger Entry
//	trade:<market>:<ts>:<id>       -> Trade (append-only fill log)
const (
	prefixMarket = "mkt:"
	prefixBook   = "book:"
	prefixEntry  = "oo:"
	prefixTrade  = "trade:"
)

func marketKey(addr common.Address) []byte {
	return []byte(prefixMarket + addr.Hex())
}

func bookKey(addr common.Address) []byte {
	return []byte(prefixBook + addr.Hex())
}

func entryKey(market, owner common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixEntry, market.Hex(), owner.Hex()))
}

// tradeKey zero-pads the timestamp and ID so keys sort chronologically,
// with ID breaking ties between fills of the same call.
func tradeKey(market common.Address, ts int64, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%020d", prefixTrade, market.Hex(), ts, id))
}

func tradePrefix(market common.Address) []byte {
	return []byte(prefixTrade + market.Hex() + ":")
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
