package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alanyoungcy/tradesim/internal/domain"
	"github.com/alanyoungcy/tradesim/internal/service"
)

// OrderService is the subset of order operations the handler needs.
type OrderService interface {
	Submit(ctx context.Context, req service.SubmitOrder) (*domain.Order, error)
	Cancel(ctx context.Context, id string) (*domain.Order, error)
	CancelAll(ctx context.Context, portfolio string) (int, error)
	Get(ctx context.Context, id string) (domain.OrderRecord, error)
	ListOpen(ctx context.Context, portfolio string, opts domain.ListOpts) ([]domain.OrderRecord, error)
}

type OrderHandler struct {
	orders OrderService
}

func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type submitOrderRequest struct {
	MarketID    string `json:"market_id"`
	Portfolio   string `json:"portfolio"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	LimitPrice  *int64 `json:"limit_price_count,omitempty"`
	StopPrice   *int64 `json:"stop_price_count,omitempty"`
	VolumeCount int64  `json:"volume_count"`
}

func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.Submit(r.Context(), service.SubmitOrder{
		MarketID:    req.MarketID,
		Portfolio:   req.Portfolio,
		Side:        domain.Side(req.Side),
		Type:        domain.FillType(req.Type),
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		VolumeCount: req.VolumeCount,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, domain.ErrInvalidOrder),
			errors.Is(err, domain.ErrUnknownMarket),
			errors.Is(err, domain.ErrStopUnsupported):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to submit order")
		}
		return
	}
	writeJSON(w, http.StatusCreated, o.Record())
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orders.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch order")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	portfolio := r.URL.Query().Get("portfolio")
	recs, err := h.orders.ListOpen(r.Context(), portfolio, parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": recs, "count": len(recs)})
}

func (h *OrderHandler) CancelAll(w http.ResponseWriter, r *http.Request) {
	portfolio := r.URL.Query().Get("portfolio")
	n, err := h.orders.CancelAll(r.Context(), portfolio)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": n})
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), pathParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrOrderNotOpen),
			errors.Is(err, domain.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to cancel order")
		}
		return
	}
	writeJSON(w, http.StatusOK, o.Record())
}
