package handler

import (
	"encoding/json"
	"net/http"
)

// EngineControl exposes the matching engine's runtime switches.
type EngineControl interface {
	TradingEnabled() bool
	SetTradingEnabled(enabled bool)
	SlippageRate() float64
}

// OrderInventory reports how many orders the service currently holds live.
type OrderInventory interface {
	LiveCount() int
}

// BookDepth reports resting order counts for a market's book.
type BookDepth interface {
	Depth(marketID string) (buys, sells int)
}

type EngineHandler struct {
	engine EngineControl
	orders OrderInventory
	books  BookDepth
}

func NewEngineHandler(engine EngineControl, orders OrderInventory, books BookDepth) *EngineHandler {
	return &EngineHandler{engine: engine, orders: orders, books: books}
}

func (h *EngineHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"trading_enabled": h.engine.TradingEnabled(),
		"slippage_rate":   h.engine.SlippageRate(),
		"live_orders":     h.orders.LiveCount(),
	})
}

func (h *EngineHandler) Depth(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	buys, sells := h.books.Depth(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"buys":      buys,
		"sells":     sells,
	})
}

type tradingRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *EngineHandler) SetTrading(w http.ResponseWriter, r *http.Request) {
	var req tradingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.engine.SetTradingEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"trading_enabled": h.engine.TradingEnabled()})
}
