package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tradesim/internal/book"
	"github.com/alanyoungcy/tradesim/internal/domain"
)

// MarketLookup resolves market definitions for incoming events.
type MarketLookup interface {
	Market(ctx context.Context, id string) (*domain.Market, error)
}

// FillSink receives each execution the engine produces, outside any book
// lock, in the order the fills happened within the pass.
type FillSink interface {
	HandleFill(ctx context.Context, o *domain.Order, f *domain.Fill)
}

// Engine matches resting orders against external market events. Book
// snapshots match asks against resting buys and bids against resting sells;
// trade prints are converted into a single counter offer first.
type Engine struct {
	logger       *slog.Logger
	books        *book.Registry
	markets      MarketLookup
	sink         FillSink
	slippageRate float64
	enabled      atomic.Bool
	newID        func() string
}

// New creates an engine. Trading starts in the given enabled state.
func New(logger *slog.Logger, books *book.Registry, markets MarketLookup, sink FillSink, slippageRate float64, enabled bool) *Engine {
	e := &Engine{
		logger:       logger.With("component", "engine"),
		books:        books,
		markets:      markets,
		sink:         sink,
		slippageRate: slippageRate,
		newID:        uuid.NewString,
	}
	e.enabled.Store(enabled)
	return e
}

// SetTradingEnabled flips the global matching switch. Disabled means events
// are consumed but produce no fills.
func (e *Engine) SetTradingEnabled(v bool) { e.enabled.Store(v) }

// TradingEnabled reports whether matching is active.
func (e *Engine) TradingEnabled() bool { return e.enabled.Load() }

// SlippageRate returns the configured per-fill slippage fraction.
func (e *Engine) SlippageRate() float64 { return e.slippageRate }

// OnBook matches the book snapshot against both resting sides.
func (e *Engine) OnBook(ctx context.Context, b *domain.Book) {
	m, mb, ok := e.admit(ctx, b.MarketID)
	if !ok {
		return
	}
	e.matchSide(ctx, m, mb.Buys, normalizeOffers(b.Asks, b.Timestamp), b.Timestamp)
	e.matchSide(ctx, m, mb.Sells, normalizeOffers(b.Bids, b.Timestamp), b.Timestamp)
}

// OnTrade synthesizes a one-level book from the print and matches it. A
// negative print volume is a sell hitting resting buys; positive is a buy
// lifting resting sells.
func (e *Engine) OnTrade(ctx context.Context, t *domain.Trade) {
	m, mb, ok := e.admit(ctx, t.MarketID)
	if !ok {
		return
	}
	offer := domain.Offer{
		MarketID:    t.MarketID,
		Timestamp:   t.Timestamp,
		PriceCount:  t.PriceCount,
		VolumeCount: abs64(t.VolumeCount),
	}
	aggressor := domain.SideBuy
	if t.VolumeCount < 0 {
		aggressor = domain.SideSell
	}
	e.matchSide(ctx, m, mb.SideBook(aggressor.Opposite()), []domain.Offer{offer}, t.Timestamp)
}

// admit decides whether an event for the market should be matched at all.
func (e *Engine) admit(ctx context.Context, marketID string) (*domain.Market, *book.MarketBook, bool) {
	if !e.enabled.Load() {
		return nil, nil, false
	}
	mb, ok := e.books.Lookup(marketID)
	if !ok {
		return nil, nil, false
	}
	m, err := e.markets.Market(ctx, marketID)
	if err != nil {
		e.logger.Warn("dropping event for unknown market", "market_id", marketID, "error", err)
		return nil, nil, false
	}
	if m.Synthetic {
		return nil, nil, false
	}
	return m, mb, true
}

// normalizeOffers copies the offers so each side's pass consumes its own
// volume counters, normalizing volumes to positive and defaulting missing
// timestamps to the event time.
func normalizeOffers(offers []domain.Offer, eventTS time.Time) []domain.Offer {
	out := make([]domain.Offer, 0, len(offers))
	for _, off := range offers {
		off.VolumeCount = abs64(off.VolumeCount)
		if off.VolumeCount == 0 {
			continue
		}
		if off.Timestamp.IsZero() {
			off.Timestamp = eventTS
		}
		out = append(out, off)
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
