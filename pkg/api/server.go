// Package api exposes the exchange over REST plus a WebSocket fill feed.
// It owns no business logic: handlers decode requests, call the engine, and
// map its typed failures to status codes.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/harborclob/harbor/pkg/core/engine"
	"github.com/harborclob/harbor/pkg/core/ledger"
	"github.com/harborclob/harbor/pkg/core/market"
	"github.com/harborclob/harbor/pkg/core/num"
	"github.com/harborclob/harbor/pkg/core/orderbook"
)

// Server handles REST API and WebSocket connections.
type Server struct {
	exchange *engine.Exchange
	router   *mux.Router
	hub      *Hub
	log      *zap.Logger
}

// NewServer wires routes for the given exchange.
func NewServer(exchange *engine.Exchange, log *zap.Logger) *Server {
	s := &Server{
		exchange: exchange,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/markets", s.handleCreateMarket).Methods("POST")
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{address}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{address}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/markets/{address}/open-orders/{owner}", s.handleGetOpenOrders).Methods("GET")

	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/settle", s.handleSettleFunds).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub and serves HTTP until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	s.log.Info("api_listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	base, err := parseAddr(req.BaseAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	quote, err := parseAddr(req.QuoteAsset)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	m, err := s.exchange.InitializeMarket(caller, base, quote)
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	respondJSON(w, marketInfo(m))
}

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.exchange.Markets()
	out := make([]MarketInfo, len(markets))
	for i, m := range markets {
		out[i] = marketInfo(m)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddr(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	bids, asks, err := s.exchange.BookOrders(addr)
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	respondJSON(w, OrderbookSnapshot{
		Market: addr.Hex(),
		Bids:   bookOrders(bids),
		Asks:   bookOrders(asks),
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddr(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	trades, err := s.exchange.RecentTrades(addr, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, trades)
}

func (s *Server) handleGetOpenOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	marketAddr, err := parseAddr(vars["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := parseAddr(vars["owner"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	entry, ok := s.exchange.OpenOrders(marketAddr, owner)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Errorf("no open-orders entry for %s", owner.Hex()))
		return
	}
	respondJSON(w, OpenOrdersInfo{
		Owner:       entry.Owner.Hex(),
		Market:      entry.Market.Hex(),
		BaseFree:    u64s(entry.BaseFree),
		BaseLocked:  u64s(entry.BaseLocked),
		QuoteFree:   u64s(entry.QuoteFree),
		QuoteLocked: u64s(entry.QuoteLocked),
	})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	marketAddr, err := parseAddr(req.Market)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	size, err := parseAmount(req.Size)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	handles := make([]common.Address, 0, len(req.MakerHandles))
	for _, h := range req.MakerHandles {
		addr, err := parseAddr(h)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		handles = append(handles, addr)
	}

	res, err := s.exchange.PlaceOrder(caller, marketAddr, req.IsBid, price, size, handles)
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}

	events := make([]FillEvent, len(res.Fills))
	for i, f := range res.Fills {
		events[i] = FillEvent{
			Market:   f.Market.Hex(),
			Taker:    f.Taker.Hex(),
			Maker:    f.Maker.Hex(),
			Price:    u64s(f.Price),
			Size:     u64s(f.Size),
			BidTaker: f.BidTaker,
		}
	}
	s.hub.BroadcastFills(events)

	respondJSON(w, PlaceOrderResponse{
		Filled:     u64s(res.Filled),
		RestingSeq: res.Resting,
		Fills:      events,
	})
}

func (s *Server) handleSettleFunds(w http.ResponseWriter, r *http.Request) {
	var req SettleFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	marketAddr, err := parseAddr(req.Market)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	baseOut, quoteOut, err := s.exchange.SettleFunds(caller, marketAddr)
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	respondJSON(w, SettleFundsResponse{
		BaseSettled:  u64s(baseOut),
		QuoteSettled: u64s(quoteOut),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func marketInfo(m *market.Market) MarketInfo {
	return MarketInfo{
		Address:       m.Address().Hex(),
		Authority:     m.Authority.Hex(),
		BaseAsset:     m.BaseAsset.Hex(),
		QuoteAsset:    m.QuoteAsset.Hex(),
		BidsRef:       m.BidsRef.Hex(),
		AsksRef:       m.AsksRef.Hex(),
		BaseVaultRef:  m.BaseVaultRef.Hex(),
		QuoteVaultRef: m.QuoteVaultRef.Hex(),
	}
}

func bookOrders(orders []orderbook.Order) []BookOrder {
	out := make([]BookOrder, len(orders))
	for i, o := range orders {
		out[i] = BookOrder{
			Owner:    o.Owner.Hex(),
			Price:    u64s(o.Price),
			Size:     u64s(o.Size),
			Sequence: o.Sequence,
		}
	}
	return out
}

// statusForError maps the engine's typed failures to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, market.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, market.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidOrder),
		errors.Is(err, engine.ErrInvalidPair),
		errors.Is(err, num.ErrOverflow):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, engine.ErrNoFundsToSettle):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orderbook.ErrBookFull):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseAddr(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func u64s(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}
