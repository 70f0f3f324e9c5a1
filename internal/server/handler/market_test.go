package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

type stubMarketService struct {
	market *domain.Market
	err    error
}

func (s *stubMarketService) Define(ctx context.Context, venue, base, quote string, priceBasis, volumeBasis int64, synthetic bool) (*domain.Market, error) {
	return s.market, s.err
}

func (s *stubMarketService) Get(ctx context.Context, id string) (*domain.Market, error) {
	return s.market, s.err
}

func (s *stubMarketService) List(ctx context.Context, opts domain.ListOpts) ([]*domain.Market, error) {
	return []*domain.Market{s.market}, s.err
}

type stubBookReader struct {
	book *domain.Book
	err  error
}

func (s *stubBookReader) GetBook(ctx context.Context, marketID string) (*domain.Book, error) {
	return s.book, s.err
}

func TestMarketHandlerBook(t *testing.T) {
	snapshot := &domain.Book{
		MarketID:  "SIM:BTC/USD",
		Timestamp: time.Now().UTC(),
		Bids:      []domain.Offer{{MarketID: "SIM:BTC/USD", PriceCount: 9900, VolumeCount: 5}},
		Asks:      []domain.Offer{{MarketID: "SIM:BTC/USD", PriceCount: 10100, VolumeCount: 3}},
	}
	h := NewMarketHandler(&stubMarketService{}, &stubBookReader{book: snapshot})

	req := httptest.NewRequest(http.MethodGet, "/api/markets/SIM:BTC%2FUSD/book", nil)
	req.SetPathValue("id", "SIM:BTC/USD")
	rec := httptest.NewRecorder()
	h.Book(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "SIM:BTC/USD", got.MarketID)
	require.Len(t, got.Bids, 1)
	require.Len(t, got.Asks, 1)
}

func TestMarketHandlerBookNotCached(t *testing.T) {
	h := NewMarketHandler(&stubMarketService{}, &stubBookReader{err: domain.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/markets/SIM:ETH%2FUSD/book", nil)
	req.SetPathValue("id", "SIM:ETH/USD")
	rec := httptest.NewRecorder()
	h.Book(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarketHandlerGetNotFound(t *testing.T) {
	h := NewMarketHandler(&stubMarketService{err: domain.ErrNotFound}, &stubBookReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/markets/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
