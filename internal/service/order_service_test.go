package service

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

type orderFixture struct {
	orders     *OrderService
	books      *book.Registry
	orderStore *memOrderStore
	bus        *fakeBus
	limiter    *fakeLimiter
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	markets := NewMarketService(logger, newMemMarketStore())
	_, err := markets.Define(context.Background(), "SIM", "BTC", "USD", 100, 100, false)
	require.NoError(t, err)

	books := book.NewRegistry(logger)
	orderStore := newMemOrderStore()
	bus := &fakeBus{}
	limiter := &fakeLimiter{allow: true}
	orders := NewOrderService(logger, orderStore, books, markets, bus, limiter)
	seq := 0
	orders.newID = func() string {
		seq++
		return fmt.Sprintf("ord-%d", seq)
	}
	return &orderFixture{orders: orders, books: books, orderStore: orderStore, bus: bus, limiter: limiter}
}

func limitReq(price, volume int64) SubmitOrder {
	return SubmitOrder{
		MarketID:    testMarketID,
		Portfolio:   "alpha",
		Side:        domain.SideBuy,
		Type:        domain.FillTypeLimit,
		LimitPrice:  &price,
		VolumeCount: volume,
	}
}

func TestSubmitPlacesOrder(t *testing.T) {
	fx := newOrderFixture(t)

	o, err := fx.orders.Submit(context.Background(), limitReq(10000, 10))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatePlaced, o.State())
	assert.Equal(t, int64(10), o.VolumeCount)

	buys, _ := fx.books.Depth(testMarketID)
	assert.Equal(t, 1, buys)

	rec, err := fx.orderStore.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatePlaced, rec.State)
	assert.NotEmpty(t, fx.bus.onChannel(ChannelOrders))
	assert.NotEmpty(t, fx.bus.onStream(StreamOrders))
}

func TestSubmitSellCarriesNegativeVolume(t *testing.T) {
	fx := newOrderFixture(t)
	price := int64(10000)

	o, err := fx.orders.Submit(context.Background(), SubmitOrder{
		MarketID:    testMarketID,
		Portfolio:   "alpha",
		Side:        domain.SideSell,
		Type:        domain.FillTypeLimit,
		LimitPrice:  &price,
		VolumeCount: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-10), o.VolumeCount)
	assert.Equal(t, int64(-10), o.Remaining())
}

func TestSubmitRejectsStopPrice(t *testing.T) {
	fx := newOrderFixture(t)
	req := limitReq(10000, 10)
	stop := int64(9500)
	req.StopPrice = &stop

	o, err := fx.orders.Submit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrStopUnsupported)
	require.NotNil(t, o)
	assert.Equal(t, domain.OrderStateRejected, o.State())

	// The refusal is persisted.
	rec, err := fx.orderStore.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStateRejected, rec.State)

	// Nothing reached the book.
	buys, _ := fx.books.Depth(testMarketID)
	assert.Zero(t, buys)
}

func TestSubmitValidation(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	_, err := fx.orders.Submit(ctx, SubmitOrder{
		MarketID: testMarketID, Portfolio: "alpha",
		Side: domain.SideBuy, Type: domain.FillTypeLimit, VolumeCount: 10,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder, "limit order without price")

	req := limitReq(10000, 0)
	_, err = fx.orders.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder, "zero volume")

	req = limitReq(10000, 10)
	req.MarketID = "SIM:XX/YY"
	_, err = fx.orders.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrUnknownMarket)
}

func TestSubmitRateLimited(t *testing.T) {
	fx := newOrderFixture(t)
	fx.limiter.allow = false

	_, err := fx.orders.Submit(context.Background(), limitReq(10000, 10))
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestCancelRestingOrder(t *testing.T) {
	fx := newOrderFixture(t)
	o, err := fx.orders.Submit(context.Background(), limitReq(10000, 10))
	require.NoError(t, err)

	got, err := fx.orders.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStateCancelled, got.State())

	buys, _ := fx.books.Depth(testMarketID)
	assert.Zero(t, buys)
	assert.Zero(t, fx.orders.LiveCount())
}

func TestCancelTerminalOrder(t *testing.T) {
	fx := newOrderFixture(t)
	o, err := fx.orders.Submit(context.Background(), limitReq(10000, 10))
	require.NoError(t, err)
	_, err = fx.orders.Cancel(context.Background(), o.ID)
	require.NoError(t, err)

	_, err = fx.orders.Cancel(context.Background(), o.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotOpen)
}

func TestCancelLosesRaceToFill(t *testing.T) {
	fx := newOrderFixture(t)
	o, err := fx.orders.Submit(context.Background(), limitReq(10000, 10))
	require.NoError(t, err)

	// Simulate the engine finishing the order: remaining hits zero and the
	// book removes it, but the fill pipeline has not reconciled yet.
	o.Reduce(o.VolumeCount)
	require.True(t, fx.books.Remove(o))

	_, err = fx.orders.Cancel(context.Background(), o.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	// The cancel must not clobber the lifecycle mid-fill.
	assert.True(t, o.State().Open())
}

func TestCancelMissingWithRemainingRejects(t *testing.T) {
	fx := newOrderFixture(t)
	o, err := fx.orders.Submit(context.Background(), limitReq(10000, 10))
	require.NoError(t, err)

	// The order vanished from the book with volume left: book and lifecycle
	// disagree.
	require.True(t, fx.books.Remove(o))

	got, err := fx.orders.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStateRejected, got.State())
}

func TestCancelUnknownOrder(t *testing.T) {
	fx := newOrderFixture(t)
	_, err := fx.orders.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelAll(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := fx.orders.Submit(ctx, limitReq(10000+int64(i), 10))
		require.NoError(t, err)
	}

	n, err := fx.orders.CancelAll(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, fx.orders.LiveCount())
}

func TestSubmitLosesRaceToCancel(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	// The entry-time stamp is the last step before the PLACED transition;
	// cancelling everything there exercises a cancel landing while the
	// order is registered but not yet placed.
	calls := 0
	fx.orders.now = func() time.Time {
		calls++
		if calls == 2 {
			_, err := fx.orders.CancelAll(ctx, "")
			require.NoError(t, err)
		}
		return time.Now().UTC()
	}

	o, err := fx.orders.Submit(ctx, limitReq(10000, 10))
	require.ErrorIs(t, err, domain.ErrOrderNotOpen)
	assert.Equal(t, domain.OrderStateCancelled, o.State())
	assert.Zero(t, fx.orders.LiveCount())

	buys, _ := fx.books.Depth(testMarketID)
	assert.Zero(t, buys, "cancelled order must not stay seated in the book")
}

func TestCancelAllByPortfolio(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	_, err := fx.orders.Submit(ctx, limitReq(10000, 10))
	require.NoError(t, err)

	other := limitReq(10100, 5)
	other.Portfolio = "beta"
	kept, err := fx.orders.Submit(ctx, other)
	require.NoError(t, err)

	n, err := fx.orders.CancelAll(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, fx.orders.LiveCount())
	assert.Equal(t, domain.OrderStatePlaced, kept.State())
}

func TestRecoverReseatsOpenOrders(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()

	first, err := fx.orders.Submit(ctx, limitReq(10000, 10))
	require.NoError(t, err)
	second, err := fx.orders.Submit(ctx, limitReq(9900, 5))
	require.NoError(t, err)
	_, err = fx.orders.Cancel(ctx, second.ID)
	require.NoError(t, err)

	// Fresh service over the same store, as after a restart.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	markets := NewMarketService(logger, newMemMarketStore())
	books := book.NewRegistry(logger)
	restarted := NewOrderService(logger, fx.orderStore, books, markets, &fakeBus{}, nil)

	require.NoError(t, restarted.Recover(ctx))
	assert.Equal(t, 1, restarted.LiveCount())
	buys, _ := books.Depth(testMarketID)
	assert.Equal(t, 1, buys)

	rec, err := restarted.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatePlaced, rec.State)
}

func TestListOpenByPortfolio(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()
	_, err := fx.orders.Submit(ctx, limitReq(10000, 10))
	require.NoError(t, err)

	recs, err := fx.orders.ListOpen(ctx, "alpha", domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = fx.orders.ListOpen(ctx, "beta", domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestApplyFillTransitions(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()
	o, err := fx.orders.Submit(ctx, limitReq(10000, 10))
	require.NoError(t, err)

	f := domain.NewFill("fill-1", o, time.Now().UTC(), 9900, 4)
	o.Reduce(f.VolumeCount)
	fx.orders.ApplyFill(ctx, o, f)
	assert.Equal(t, domain.OrderStatePartFilled, o.State())

	f2 := domain.NewFill("fill-2", o, time.Now().UTC(), 9900, 6)
	o.Reduce(f2.VolumeCount)
	fx.orders.ApplyFill(ctx, o, f2)
	assert.Equal(t, domain.OrderStateFilled, o.State())
	assert.Zero(t, fx.orders.LiveCount())
}
