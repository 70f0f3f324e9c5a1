package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradesim/internal/book"
	"github.com/alanyoungcy/tradesim/internal/domain"
)

const testMarketID = "SIM:BTC/USD"

type fakeLookup struct {
	markets map[string]*domain.Market
}

func (f *fakeLookup) Market(_ context.Context, id string) (*domain.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return nil, domain.ErrUnknownMarket
	}
	return m, nil
}

type recordingSink struct {
	fills []*domain.Fill
}

func (s *recordingSink) HandleFill(_ context.Context, _ *domain.Order, f *domain.Fill) {
	s.fills = append(s.fills, f)
}

type fixture struct {
	engine *Engine
	books  *book.Registry
	sink   *recordingSink
	t0     time.Time
}

func newFixture(t *testing.T, slippageRate float64) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	books := book.NewRegistry(logger)
	lookup := &fakeLookup{markets: map[string]*domain.Market{
		testMarketID: {ID: testMarketID, Venue: "SIM", Base: "BTC", Quote: "USD", PriceBasis: 100, VolumeBasis: 100},
	}}
	sink := &recordingSink{}
	eng := New(logger, books, lookup, sink, slippageRate, true)
	seq := 0
	eng.newID = func() string {
		seq++
		return fmt.Sprintf("fill-%d", seq)
	}
	return &fixture{engine: eng, books: books, sink: sink, t0: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (fx *fixture) restLimit(id string, side domain.Side, price, volume int64, submitted time.Time) *domain.Order {
	vol := volume * side.Sign()
	o := domain.NewOrder(id, testMarketID, "alpha", side, domain.FillTypeLimit, &price, nil, vol, submitted)
	o.SetState(domain.OrderStatePlaced, "")
	fx.books.Submit(o)
	return o
}

func (fx *fixture) restMarket(id string, side domain.Side, volume int64, submitted time.Time) *domain.Order {
	vol := volume * side.Sign()
	o := domain.NewOrder(id, testMarketID, "alpha", side, domain.FillTypeMarket, nil, nil, vol, submitted)
	o.SetState(domain.OrderStatePlaced, "")
	fx.books.Submit(o)
	return o
}

func (fx *fixture) bookEvent(ts time.Time, asks, bids []domain.Offer) *domain.Book {
	return &domain.Book{MarketID: testMarketID, Timestamp: ts, Asks: asks, Bids: bids}
}

func offer(price, volume int64) domain.Offer {
	return domain.Offer{MarketID: testMarketID, PriceCount: price, VolumeCount: volume}
}

func TestEngineBuyLimitPartialAcrossLevels(t *testing.T) {
	fx := newFixture(t, 0)
	o := fx.restLimit("buy", domain.SideBuy, 100, 10, fx.t0)

	eventTS := fx.t0.Add(time.Second)
	fx.engine.OnBook(context.Background(), fx.bookEvent(eventTS,
		[]domain.Offer{offer(98, 4), offer(99, 3), offer(101, 5)}, nil))

	require.Len(t, fx.sink.fills, 2)
	assert.Equal(t, int64(98), fx.sink.fills[0].PriceCount)
	assert.Equal(t, int64(4), fx.sink.fills[0].VolumeCount)
	assert.Equal(t, int64(99), fx.sink.fills[1].PriceCount)
	assert.Equal(t, int64(3), fx.sink.fills[1].VolumeCount)
	assert.Equal(t, int64(3), o.Remaining())

	// Still resting with volume left.
	buys, _ := fx.books.Depth(testMarketID)
	assert.Equal(t, 1, buys)
}

func TestEngineOffersDepleteAcrossOrders(t *testing.T) {
	fx := newFixture(t, 0)
	first := fx.restLimit("first", domain.SideBuy, 100, 6, fx.t0)
	second := fx.restLimit("second", domain.SideBuy, 99, 6, fx.t0)

	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(time.Second),
		[]domain.Offer{offer(98, 10)}, nil))

	assert.Equal(t, int64(0), first.Remaining())
	assert.Equal(t, int64(2), second.Remaining())

	// The filled order left the book, the partial one stayed.
	buys, _ := fx.books.Depth(testMarketID)
	assert.Equal(t, 1, buys)
	require.Len(t, fx.sink.fills, 2)
	assert.Equal(t, int64(6), fx.sink.fills[0].VolumeCount)
	assert.Equal(t, int64(4), fx.sink.fills[1].VolumeCount)
}

func TestEngineLimitViolationStopsWholeSide(t *testing.T) {
	fx := newFixture(t, 0)
	first := fx.restLimit("first", domain.SideBuy, 100, 5, fx.t0)
	second := fx.restLimit("second", domain.SideBuy, 97, 5, fx.t0)

	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(time.Second),
		[]domain.Offer{offer(99, 3), offer(101, 10)}, nil))

	// First order takes the affordable level, then hits 101 and the pass
	// stops; the 97 order never trades even though nothing could fill it
	// anyway.
	assert.Equal(t, int64(2), first.Remaining())
	assert.Equal(t, int64(5), second.Remaining())
	require.Len(t, fx.sink.fills, 1)
	assert.Equal(t, int64(99), fx.sink.fills[0].PriceCount)
}

func TestEngineSellSideMatchesBids(t *testing.T) {
	fx := newFixture(t, 0)
	o := fx.restLimit("sell", domain.SideSell, 100, 5, fx.t0)

	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(time.Second),
		nil, []domain.Offer{offer(102, 5)}))

	require.Len(t, fx.sink.fills, 1)
	assert.Equal(t, int64(102), fx.sink.fills[0].PriceCount)
	assert.Equal(t, int64(-5), fx.sink.fills[0].VolumeCount)
	assert.Equal(t, int64(0), o.Remaining())
}

func TestEngineSellLimitViolated(t *testing.T) {
	fx := newFixture(t, 0)
	o := fx.restLimit("sell", domain.SideSell, 100, 5, fx.t0)

	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(time.Second),
		nil, []domain.Offer{offer(99, 5)}))

	assert.Empty(t, fx.sink.fills)
	assert.Equal(t, int64(-5), o.Remaining())
}

func TestEngineMarketOrderSlippage(t *testing.T) {
	fx := newFixture(t, 0.01)
	fx.restMarket("mkt", domain.SideBuy, 5, fx.t0)

	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(time.Second),
		[]domain.Offer{offer(100, 5)}, nil))

	require.Len(t, fx.sink.fills, 1)
	assert.Equal(t, int64(101), fx.sink.fills[0].PriceCount)
}

func TestEngineLimitCapsSlippage(t *testing.T) {
	fx := newFixture(t, 0.05)
	fx.restLimit("buy", domain.SideBuy, 100, 5, fx.t0)

	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(time.Second),
		[]domain.Offer{offer(100, 5)}, nil))

	// Slipped price 105 is capped at the limit.
	require.Len(t, fx.sink.fills, 1)
	assert.Equal(t, int64(100), fx.sink.fills[0].PriceCount)
}

func TestEngineSellSlippageFloorsAtLimit(t *testing.T) {
	fx := newFixture(t, 0.05)
	fx.restLimit("sell", domain.SideSell, 100, 5, fx.t0)

	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(time.Second),
		nil, []domain.Offer{offer(100, 5)}))

	// Slipped price 95 is floored at the limit.
	require.Len(t, fx.sink.fills, 1)
	assert.Equal(t, int64(100), fx.sink.fills[0].PriceCount)
}

func TestEngineTradePrintSides(t *testing.T) {
	fx := newFixture(t, 0)
	buy := fx.restLimit("buy", domain.SideBuy, 100, 5, fx.t0)
	sell := fx.restLimit("sell", domain.SideSell, 100, 5, fx.t0)

	// A sell print trades against the resting buy only.
	fx.engine.OnTrade(context.Background(), &domain.Trade{
		MarketID: testMarketID, Timestamp: fx.t0.Add(time.Second), PriceCount: 99, VolumeCount: -3,
	})
	assert.Equal(t, int64(2), buy.Remaining())
	assert.Equal(t, int64(-5), sell.Remaining())

	// A buy print trades against the resting sell only.
	fx.engine.OnTrade(context.Background(), &domain.Trade{
		MarketID: testMarketID, Timestamp: fx.t0.Add(2 * time.Second), PriceCount: 101, VolumeCount: 3,
	})
	assert.Equal(t, int64(2), buy.Remaining())
	assert.Equal(t, int64(-2), sell.Remaining())
}

func TestEngineSkipsFutureOrders(t *testing.T) {
	fx := newFixture(t, 0)
	eventTS := fx.t0.Add(time.Second)
	late := fx.restLimit("late", domain.SideBuy, 100, 5, eventTS.Add(time.Minute))
	early := fx.restLimit("early", domain.SideBuy, 99, 5, fx.t0)

	fx.engine.OnBook(context.Background(), fx.bookEvent(eventTS,
		[]domain.Offer{offer(98, 5)}, nil))

	assert.Equal(t, int64(5), late.Remaining())
	assert.Equal(t, int64(0), early.Remaining())
}

func TestEngineTradingDisabled(t *testing.T) {
	fx := newFixture(t, 0)
	o := fx.restLimit("buy", domain.SideBuy, 100, 5, fx.t0)
	fx.engine.SetTradingEnabled(false)

	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(time.Second),
		[]domain.Offer{offer(98, 5)}, nil))

	assert.Empty(t, fx.sink.fills)
	assert.Equal(t, int64(5), o.Remaining())

	fx.engine.SetTradingEnabled(true)
	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(2*time.Second),
		[]domain.Offer{offer(98, 5)}, nil))
	assert.Equal(t, int64(0), o.Remaining())
}

func TestEngineIgnoresSyntheticMarkets(t *testing.T) {
	fx := newFixture(t, 0)
	synthID := "SIM:SYN/USD"
	lookup := fx.engine.markets.(*fakeLookup)
	lookup.markets[synthID] = &domain.Market{ID: synthID, Venue: "SIM", Base: "SYN", Quote: "USD", PriceBasis: 100, VolumeBasis: 100, Synthetic: true}

	price := int64(100)
	o := domain.NewOrder("buy", synthID, "alpha", domain.SideBuy, domain.FillTypeLimit, &price, nil, 5, fx.t0)
	fx.books.Submit(o)

	fx.engine.OnBook(context.Background(), &domain.Book{
		MarketID: synthID, Timestamp: fx.t0.Add(time.Second),
		Asks: []domain.Offer{offer(98, 5)},
	})
	assert.Empty(t, fx.sink.fills)
}

func TestEngineNoBookNoWork(t *testing.T) {
	fx := newFixture(t, 0)
	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0,
		[]domain.Offer{offer(98, 5)}, nil))
	assert.Empty(t, fx.sink.fills)
}

func TestEngineNeverOverfills(t *testing.T) {
	fx := newFixture(t, 0)
	o := fx.restLimit("buy", domain.SideBuy, 100, 5, fx.t0)

	fx.engine.OnBook(context.Background(), fx.bookEvent(fx.t0.Add(time.Second),
		[]domain.Offer{offer(98, 50), offer(99, 50)}, nil))

	assert.Equal(t, int64(0), o.Remaining())
	var total int64
	for _, f := range fx.sink.fills {
		total += f.VolumeCount
	}
	assert.Equal(t, int64(5), total)
}
