// Package ticker generates synthetic market data for simulation runs:
// trade prints with Poisson-distributed volumes arriving on an exponential
// clock, with periodic book snapshots built around the walking price.
package ticker

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// MarketConfig drives generation for one market.
type MarketConfig struct {
	MarketID     string
	StartPrice   int64         // initial price count
	Volatility   float64       // stddev of one step's relative move
	MeanInterval time.Duration // mean time between trades
	MeanVolume   float64       // mean trade volume count
	BookEvery    int           // emit a book snapshot every N trades
	BookLevels   int           // levels per side in emitted books
	Spread       float64       // relative distance between book levels
}

func (c MarketConfig) withDefaults() MarketConfig {
	if c.Volatility <= 0 {
		c.Volatility = 0.001
	}
	if c.MeanInterval <= 0 {
		c.MeanInterval = time.Second
	}
	if c.MeanVolume <= 0 {
		c.MeanVolume = 100
	}
	if c.BookEvery <= 0 {
		c.BookEvery = 10
	}
	if c.BookLevels <= 0 {
		c.BookLevels = 3
	}
	if c.Spread <= 0 {
		c.Spread = 0.0005
	}
	return c
}

// Ticker publishes generated market events on the signal bus, one goroutine
// per market.
type Ticker struct {
	logger  *slog.Logger
	bus     domain.SignalBus
	channel string
	markets []MarketConfig
	seed    func() uint64
	now     func() time.Time
}

// New creates a Ticker publishing on the given bus channel.
func New(logger *slog.Logger, bus domain.SignalBus, channel string, markets []MarketConfig) *Ticker {
	return &Ticker{
		logger:  logger.With(slog.String("component", "ticker")),
		bus:     bus,
		channel: channel,
		markets: markets,
		seed:    func() uint64 { return uint64(time.Now().UnixNano()) },
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run generates events for every configured market until the context ends.
func (t *Ticker) Run(ctx context.Context) error {
	if len(t.markets) == 0 {
		t.logger.Info("ticker idle, no markets configured")
		<-ctx.Done()
		return ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, cfg := range t.markets {
		cfg := cfg.withDefaults()
		g.Go(func() error { return t.runMarket(ctx, cfg) })
	}
	return g.Wait()
}

func (t *Ticker) runMarket(ctx context.Context, cfg MarketConfig) error {
	rng := rand.New(rand.NewPCG(t.seed(), t.seed()))
	price := float64(cfg.StartPrice)
	t.logger.Info("ticker market started", "market_id", cfg.MarketID,
		"start_price", cfg.StartPrice, "mean_interval", cfg.MeanInterval)

	trades := 0
	timer := time.NewTimer(nextArrival(rng, cfg.MeanInterval))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		timer.Reset(nextArrival(rng, cfg.MeanInterval))

		price = walk(rng, price, cfg.Volatility)
		volume := int64(poisson(rng, cfg.MeanVolume)) + 1
		if rng.IntN(2) == 0 {
			volume = -volume
		}

		now := t.now()
		trade := &domain.Trade{
			MarketID:    cfg.MarketID,
			Timestamp:   now,
			PriceCount:  int64(math.Round(price)),
			VolumeCount: volume,
		}
		t.publish(ctx, domain.MarketEvent{Type: domain.MarketEventTrade, Trade: trade})

		trades++
		if trades%cfg.BookEvery == 0 {
			book := t.buildBook(rng, cfg, price, now)
			t.publish(ctx, domain.MarketEvent{Type: domain.MarketEventBook, Book: book})
		}
	}
}

// buildBook lays BookLevels price levels on each side of the walk price,
// asks above and bids below, each one Spread further out.
func (t *Ticker) buildBook(rng *rand.Rand, cfg MarketConfig, price float64, ts time.Time) *domain.Book {
	b := &domain.Book{MarketID: cfg.MarketID, Timestamp: ts}
	for i := 1; i <= cfg.BookLevels; i++ {
		dist := float64(i) * cfg.Spread
		askVol := int64(poisson(rng, cfg.MeanVolume)) + 1
		bidVol := int64(poisson(rng, cfg.MeanVolume)) + 1
		b.Asks = append(b.Asks, domain.Offer{
			MarketID:    cfg.MarketID,
			Timestamp:   ts,
			PriceCount:  int64(math.Round(price * (1 + dist))),
			VolumeCount: askVol,
		})
		b.Bids = append(b.Bids, domain.Offer{
			MarketID:    cfg.MarketID,
			Timestamp:   ts,
			PriceCount:  int64(math.Round(price * (1 - dist))),
			VolumeCount: bidVol,
		})
	}
	return b
}

func (t *Ticker) publish(ctx context.Context, ev domain.MarketEvent) {
	if err := t.bus.Publish(ctx, t.channel, ev); err != nil {
		t.logger.Warn("publishing market event failed", "error", err)
	}
}

func nextArrival(rng *rand.Rand, mean time.Duration) time.Duration {
	return time.Duration(rng.ExpFloat64() * float64(mean))
}

// walk applies one multiplicative step. Negative draws divide rather than
// multiply so a move down and the same move up cancel out and the price
// stays positive.
func walk(rng *rand.Rand, price, volatility float64) float64 {
	delta := rng.NormFloat64() * volatility
	if delta < 0 {
		return price / (1 - delta)
	}
	return price * (1 + delta)
}

// poisson draws by Knuth's method; fine for the small means used here.
func poisson(rng *rand.Rand, mean float64) int {
	l := math.Exp(-mean)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}
