package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// MarketService is the subset of market operations the handler needs.
type MarketService interface {
	Define(ctx context.Context, venue, base, quote string, priceBasis, volumeBasis int64, synthetic bool) (*domain.Market, error)
	Get(ctx context.Context, id string) (*domain.Market, error)
	List(ctx context.Context, opts domain.ListOpts) ([]*domain.Market, error)
}

// BookReader serves the latest observed book snapshot per market.
type BookReader interface {
	GetBook(ctx context.Context, marketID string) (*domain.Book, error)
}

type MarketHandler struct {
	markets MarketService
	books   BookReader
}

func NewMarketHandler(markets MarketService, books BookReader) *MarketHandler {
	return &MarketHandler{markets: markets, books: books}
}

type defineMarketRequest struct {
	Venue       string `json:"venue"`
	Base        string `json:"base"`
	Quote       string `json:"quote"`
	PriceBasis  int64  `json:"price_basis"`
	VolumeBasis int64  `json:"volume_basis"`
	Synthetic   bool   `json:"synthetic"`
}

func (h *MarketHandler) Define(w http.ResponseWriter, r *http.Request) {
	var req defineMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.markets.Define(r.Context(), req.Venue, req.Base, req.Quote, req.PriceBasis, req.VolumeBasis, req.Synthetic)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMarket) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to define market")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	m, err := h.markets.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Book serves the latest cached order book snapshot for a market.
func (h *MarketHandler) Book(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	b, err := h.books.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no book snapshot for market")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch book")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	ms, err := h.markets.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": ms, "count": len(ms)})
}
