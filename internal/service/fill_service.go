package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/tradesim/internal/domain"
	"github.com/alanyoungcy/tradesim/internal/engine"
)

// FillService post-processes every execution the engine produces: commission
// pricing, fill history, persistence, bus fan-out, then lifecycle
// reconciliation. A failure in any one step is logged and the rest still
// runs; a fill must never be silently lost.
type FillService struct {
	logger  *slog.Logger
	store   domain.FillStore
	markets *MarketService
	fees    domain.FeeSchedule
	bus     domain.SignalBus
	orders  *OrderService
}

var _ engine.FillSink = (*FillService)(nil)

func NewFillService(logger *slog.Logger, store domain.FillStore, markets *MarketService,
	fees domain.FeeSchedule, bus domain.SignalBus, orders *OrderService) *FillService {
	return &FillService{
		logger:  logger.With("component", "fill_service"),
		store:   store,
		markets: markets,
		fees:    fees,
		bus:     bus,
		orders:  orders,
	}
}

// HandleFill receives one execution from the engine, outside any book lock.
func (s *FillService) HandleFill(ctx context.Context, o *domain.Order, f *domain.Fill) {
	m, err := s.markets.Get(ctx, f.MarketID)
	if err != nil {
		s.logger.Warn("commission skipped, market lookup failed", "fill_id", f.ID, "error", err)
	} else if c, err := s.fees.Commission(f, m); err != nil {
		s.logger.Warn("commission pricing failed", "fill_id", f.ID, "error", err)
	} else {
		f.Commission = &c
	}

	if m != nil {
		s.logger.Info("fill processed", "fill_id", f.ID, "order_id", o.ID,
			"price", m.PriceAmount(f.PriceCount).String(),
			"volume", m.VolumeAmount(f.VolumeCount).String())
	}

	if err := o.AddFill(f); err != nil {
		if errors.Is(err, domain.ErrOverfill) {
			s.logger.Error("overfill detected", "order_id", o.ID, "fill_id", f.ID,
				"volume_count", f.VolumeCount)
		} else {
			s.logger.Error("recording fill on order failed", "fill_id", f.ID, "error", err)
		}
	}

	if err := s.store.Insert(ctx, f); err != nil {
		s.logger.Error("persisting fill failed", "fill_id", f.ID, "error", err)
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, ChannelFills, f); err != nil {
			s.logger.Warn("publishing fill failed", "fill_id", f.ID, "error", err)
		}
		if _, err := s.bus.StreamAppend(ctx, StreamFills, f); err != nil {
			s.logger.Warn("appending fill to stream failed", "fill_id", f.ID, "error", err)
		}
	}

	s.orders.ApplyFill(ctx, o, f)
}

// ListByOrder returns an order's executions.
func (s *FillService) ListByOrder(ctx context.Context, orderID string) ([]*domain.Fill, error) {
	return s.store.ListByOrder(ctx, orderID)
}

// ListByMarket returns a market's executions.
func (s *FillService) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]*domain.Fill, error) {
	return s.store.ListByMarket(ctx, marketID, opts)
}
