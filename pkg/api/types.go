package api

// Request and response types for the REST surface and WebSocket feed.
// All addresses travel as 0x-prefixed hex; all amounts as decimal strings of
// the asset's smallest unit, since uint64 does not round-trip through JSON
// numbers safely.

// CreateMarketRequest initializes a market for an asset pair.
type CreateMarketRequest struct {
	Caller     string `json:"caller"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
}

// MarketInfo is the public view of a market record.
type MarketInfo struct {
	Address       string `json:"address"`
	Authority     string `json:"authority"`
	BaseAsset     string `json:"baseAsset"`
	QuoteAsset    string `json:"quoteAsset"`
	BidsRef       string `json:"bidsRef"`
	AsksRef       string `json:"asksRef"`
	BaseVaultRef  string `json:"baseVaultRef"`
	QuoteVaultRef string `json:"quoteVaultRef"`
}

// PlaceOrderRequest submits a limit order.
type PlaceOrderRequest struct {
	Caller       string   `json:"caller"`
	Market       string   `json:"market"`
	IsBid        bool     `json:"isBid"`
	Price        string   `json:"price"`
	Size         string   `json:"size"`
	MakerHandles []string `json:"makerHandles"`
}

// PlaceOrderResponse reports the realized fill and any resting remainder.
type PlaceOrderResponse struct {
	Filled     string      `json:"filled"`
	RestingSeq uint64      `json:"restingSeq,omitempty"`
	Fills      []FillEvent `json:"fills"`
}

// SettleFundsRequest withdraws a trader's free balances.
type SettleFundsRequest struct {
	Caller string `json:"caller"`
	Market string `json:"market"`
}

// SettleFundsResponse reports the withdrawn amounts.
type SettleFundsResponse struct {
	BaseSettled  string `json:"baseSettled"`
	QuoteSettled string `json:"quoteSettled"`
}

// BookOrder is one resting order in a book snapshot.
type BookOrder struct {
	Owner    string `json:"owner"`
	Price    string `json:"price"`
	Size     string `json:"size"`
	Sequence uint64 `json:"sequence"`
}

// OrderbookSnapshot is both sides of a market's book in priority order.
type OrderbookSnapshot struct {
	Market string      `json:"market"`
	Bids   []BookOrder `json:"bids"`
	Asks   []BookOrder `json:"asks"`
}

// OpenOrdersInfo is a trader's escrow balances in one market.
type OpenOrdersInfo struct {
	Owner       string `json:"owner"`
	Market      string `json:"market"`
	BaseFree    string `json:"baseFree"`
	BaseLocked  string `json:"baseLocked"`
	QuoteFree   string `json:"quoteFree"`
	QuoteLocked string `json:"quoteLocked"`
}

// FillEvent is one executed cross, broadcast on the trade feed.
type FillEvent struct {
	Market   string `json:"market"`
	Taker    string `json:"taker"`
	Maker    string `json:"maker"`
	Price    string `json:"price"`
	Size     string `json:"size"`
	BidTaker bool   `json:"bidTaker"`
}

// ErrorResponse carries the typed failure reason.
type ErrorResponse struct {
	Error string `json:"error"`
}
