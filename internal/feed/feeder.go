// Package feed moves market-data events from the signal bus into the
// matching engine.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// MarketEventHandler consumes decoded market events. The engine implements
// it; tests substitute a fake.
type MarketEventHandler interface {
	OnBook(ctx context.Context, b *domain.Book)
	OnTrade(ctx context.Context, t *domain.Trade)
}

// Feeder subscribes to the market-data channel, caches each book snapshot,
// and hands events to the handler. Malformed messages are logged and
// skipped; the feed never stops over one bad payload.
type Feeder struct {
	bus       domain.SignalBus
	bookCache domain.BookCache
	handler   MarketEventHandler
	channel   string
	logger    *slog.Logger
}

// NewFeeder creates a Feeder reading from the given bus channel.
func NewFeeder(bus domain.SignalBus, bookCache domain.BookCache, handler MarketEventHandler, channel string, logger *slog.Logger) *Feeder {
	return &Feeder{
		bus:       bus,
		bookCache: bookCache,
		handler:   handler,
		channel:   channel,
		logger:    logger.With(slog.String("component", "feeder")),
	}
}

// Run consumes the channel until the context ends or the subscription closes.
func (f *Feeder) Run(ctx context.Context) error {
	ch, stop, err := f.bus.Subscribe(ctx, f.channel)
	if err != nil {
		return err
	}
	defer stop()

	f.logger.Info("feeder started", "channel", f.channel)
	defer f.logger.Info("feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.handleMessage(ctx, msg.Payload)
		}
	}
}

func (f *Feeder) handleMessage(ctx context.Context, data []byte) {
	var ev domain.MarketEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		f.logger.Debug("dropping malformed market event",
			slog.String("error", err.Error()), slog.Int("payload_len", len(data)))
		return
	}

	switch {
	case ev.Type == domain.MarketEventBook && ev.Book != nil:
		if f.bookCache != nil {
			if err := f.bookCache.SetBook(ctx, ev.Book); err != nil {
				f.logger.Warn("caching book snapshot failed",
					"market_id", ev.Book.MarketID, "error", err)
			}
		}
		f.handler.OnBook(ctx, ev.Book)
	case ev.Type == domain.MarketEventTrade && ev.Trade != nil:
		f.handler.OnTrade(ctx, ev.Trade)
	default:
		f.logger.Debug("dropping market event with unknown type", "type", ev.Type)
	}
}
