package handler

import (
	"context"
	"net/http"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// FillService is the subset of fill queries the handler needs.
type FillService interface {
	ListByOrder(ctx context.Context, orderID string) ([]*domain.Fill, error)
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]*domain.Fill, error)
}

type FillHandler struct {
	fills FillService
}

func NewFillHandler(fills FillService) *FillHandler {
	return &FillHandler{fills: fills}
}

func (h *FillHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	fills, err := h.fills.ListByOrder(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list fills")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fills": fills, "count": len(fills)})
}

func (h *FillHandler) ListByMarket(w http.ResponseWriter, r *http.Request) {
	fills, err := h.fills.ListByMarket(r.Context(), pathParam(r, "id"), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list fills")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fills": fills, "count": len(fills)})
}
