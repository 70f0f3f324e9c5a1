package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tradesim/internal/book"
	"github.com/alanyoungcy/tradesim/internal/domain"
)

// Bus channels for lifecycle events.
const (
	ChannelOrders     = "orders"
	ChannelFills      = "fills"
	ChannelMarketData = "marketdata"
)

// Durable streams mirroring the ephemeral channels, for consumers that
// replay history instead of listening live.
const (
	StreamOrders = "stream:orders"
	StreamFills  = "stream:fills"
)

// SubmitOrder is a validated order submission request. Volume is an unsigned
// count; the service applies the side's sign.
type SubmitOrder struct {
	MarketID    string
	Portfolio   string
	Side        domain.Side
	Type        domain.FillType
	LimitPrice  *int64
	StopPrice   *int64
	VolumeCount int64
}

// OrderService owns the order lifecycle: submission into the book, cancel
// requests racing the matching engine, state reconciliation after fills, and
// re-seating open orders at startup. Live orders are held in memory; the
// store only ever sees snapshots.
type OrderService struct {
	logger  *slog.Logger
	store   domain.OrderStore
	books   *book.Registry
	markets *MarketService
	bus     domain.SignalBus
	limiter domain.RateLimiter

	mu   sync.RWMutex
	live map[string]*domain.Order

	newID func() string
	now   func() time.Time
}

func NewOrderService(logger *slog.Logger, store domain.OrderStore, books *book.Registry,
	markets *MarketService, bus domain.SignalBus, limiter domain.RateLimiter) *OrderService {
	return &OrderService{
		logger:  logger.With("component", "order_service"),
		store:   store,
		books:   books,
		markets: markets,
		bus:     bus,
		limiter: limiter,
		live:    make(map[string]*domain.Order),
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the request, persists the order, and seats it in the
// book. Stop prices are rejected outright; the rejected order is still
// persisted so the refusal is auditable.
func (s *OrderService) Submit(ctx context.Context, req SubmitOrder) (*domain.Order, error) {
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, "orders:"+req.Portfolio)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, admitting order", "error", err)
		} else if !ok {
			return nil, fmt.Errorf("service: submit: portfolio %s: %w", req.Portfolio, domain.ErrRateLimited)
		}
	}
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	now := s.now()
	o := domain.NewOrder(s.newID(), req.MarketID, req.Portfolio, req.Side, req.Type,
		req.LimitPrice, req.StopPrice, req.VolumeCount*req.Side.Sign(), now)

	if req.StopPrice != nil {
		o.SetState(domain.OrderStateRejected, domain.ErrStopUnsupported.Error())
		if err := s.store.Create(ctx, o.Record()); err != nil {
			s.logger.Error("persisting rejected order failed", "order_id", o.ID, "error", err)
		}
		s.publishUpdate(ctx, o)
		return o, fmt.Errorf("service: submit: %w", domain.ErrStopUnsupported)
	}

	if err := s.store.Create(ctx, o.Record()); err != nil {
		return nil, fmt.Errorf("service: submit: persist order: %w", err)
	}

	s.mu.Lock()
	s.live[o.ID] = o
	s.mu.Unlock()

	s.books.Submit(o)
	o.SetEntryTime(s.now())
	if !o.TransitionIfOpen(domain.OrderStatePlaced, "") {
		// A cancel closed the order between registration and placement.
		// Undo the book insert and keep the cancel's terminal state.
		s.books.Remove(o)
		s.mu.Lock()
		delete(s.live, o.ID)
		s.mu.Unlock()
		return o, fmt.Errorf("service: submit %s: %w", o.ID, domain.ErrOrderNotOpen)
	}
	s.persist(ctx, o)
	s.publishUpdate(ctx, o)
	s.logger.Info("order placed", "order_id", o.ID, "market_id", o.MarketID,
		"side", o.Side, "type", o.Type, "volume_count", o.VolumeCount)
	return o, nil
}

func (s *OrderService) validate(ctx context.Context, req SubmitOrder) error {
	if !req.Side.Valid() {
		return fmt.Errorf("service: submit: side %q: %w", req.Side, domain.ErrInvalidOrder)
	}
	if !req.Type.Valid() {
		return fmt.Errorf("service: submit: type %q: %w", req.Type, domain.ErrInvalidOrder)
	}
	if req.VolumeCount <= 0 {
		return fmt.Errorf("service: submit: volume must be positive: %w", domain.ErrInvalidOrder)
	}
	if req.Type == domain.FillTypeLimit && req.LimitPrice == nil {
		return fmt.Errorf("service: submit: limit order without limit price: %w", domain.ErrInvalidOrder)
	}
	if req.LimitPrice != nil && *req.LimitPrice <= 0 {
		return fmt.Errorf("service: submit: limit price must be positive: %w", domain.ErrInvalidOrder)
	}
	if req.Portfolio == "" {
		return fmt.Errorf("service: submit: portfolio is required: %w", domain.ErrInvalidOrder)
	}
	m, err := s.markets.Get(ctx, req.MarketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("service: submit: market %s: %w", req.MarketID, domain.ErrUnknownMarket)
		}
		return fmt.Errorf("service: submit: %w", err)
	}
	if m.Synthetic {
		return fmt.Errorf("service: submit: market %s is synthetic: %w", req.MarketID, domain.ErrInvalidOrder)
	}
	return nil
}

// Cancel requests cancellation of an open order. The outcome depends on how
// the request races the matching engine:
//
//   - the order was still resting: it leaves the book CANCELLED;
//   - the order already left the book with nothing remaining: it completed,
//     and the caller gets ErrAlreadyResolved instead of a state change;
//   - the order is not in the book but volume remains: the book and the
//     lifecycle disagree, and the order is REJECTED to flag the defect.
func (s *OrderService) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	o, ok := s.live[id]
	s.mu.RUnlock()
	if !ok {
		rec, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("service: cancel %s: %w", id, err)
		}
		if rec.State.Terminal() {
			return nil, fmt.Errorf("service: cancel %s: state %s: %w", id, rec.State, domain.ErrOrderNotOpen)
		}
		return nil, fmt.Errorf("service: cancel %s: %w", id, domain.ErrNotFound)
	}

	switch st := o.State(); {
	case st == domain.OrderStateNew:
		o.SetState(domain.OrderStateCancelled, "cancelled before placement")
		s.retire(ctx, o)
		return o, nil
	case st.Terminal():
		return o, fmt.Errorf("service: cancel %s: state %s: %w", id, st, domain.ErrOrderNotOpen)
	}

	o.TransitionIfOpen(domain.OrderStateCancelling, "cancel requested")
	if s.books.Remove(o) {
		o.SetState(domain.OrderStateCancelled, "")
		s.retire(ctx, o)
		s.logger.Info("order cancelled", "order_id", o.ID, "remaining_count", o.Remaining())
		return o, nil
	}

	// Not resting. Either the engine just finished it, or the book lost it.
	if o.Remaining() == 0 {
		// Leave the state alone; the fill pipeline is finalizing it.
		return o, fmt.Errorf("service: cancel %s: %w", id, domain.ErrAlreadyResolved)
	}
	o.SetState(domain.OrderStateRejected, "order not found in book")
	s.retire(ctx, o)
	s.logger.Error("open order missing from book", "order_id", o.ID, "remaining_count", o.Remaining())
	return o, nil
}

// CancelAll cancels every live order, skipping those already resolved. An
// empty portfolio cancels across all portfolios. It returns the number
// actually cancelled.
func (s *OrderService) CancelAll(ctx context.Context, portfolio string) (int, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.live))
	for id, o := range s.live {
		if portfolio != "" && o.Portfolio != portfolio {
			continue
		}
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var cancelled int
	var errs []error
	for _, id := range ids {
		_, err := s.Cancel(ctx, id)
		switch {
		case err == nil:
			cancelled++
		case errors.Is(err, domain.ErrAlreadyResolved), errors.Is(err, domain.ErrOrderNotOpen):
			// Lost the race to a fill; nothing to do.
		default:
			errs = append(errs, err)
		}
	}
	return cancelled, errors.Join(errs...)
}

// ApplyFill reconciles the lifecycle after a fill has been recorded: an
// exhausted order goes FILLED and retires, anything else moves to
// PARTFILLED unless a cancel already closed it.
func (s *OrderService) ApplyFill(ctx context.Context, o *domain.Order, f *domain.Fill) {
	if o.Remaining() == 0 {
		o.SetState(domain.OrderStateFilled, "")
		s.retire(ctx, o)
		s.logger.Info("order filled", "order_id", o.ID, "fill_id", f.ID)
		return
	}
	o.TransitionIfOpen(domain.OrderStatePartFilled, "")
	s.persist(ctx, o)
	s.publishUpdate(ctx, o)
}

// Recover re-seats every open order from the store into the book. Run once
// at startup before the feed is started.
func (s *OrderService) Recover(ctx context.Context) error {
	recs, err := s.store.ListByState(ctx, domain.OpenOrderStates, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("service: recover orders: %w", err)
	}
	for _, rec := range recs {
		o := domain.OrderFromRecord(rec)
		s.mu.Lock()
		s.live[o.ID] = o
		s.mu.Unlock()
		s.books.Submit(o)
		o.SetEntryTime(s.now())
	}
	s.logger.Info("open orders recovered", "count", len(recs))
	return nil
}

// Get returns the order snapshot, preferring the live order over the store.
func (s *OrderService) Get(ctx context.Context, id string) (domain.OrderRecord, error) {
	s.mu.RLock()
	o, ok := s.live[id]
	s.mu.RUnlock()
	if ok {
		return o.Record(), nil
	}
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("service: get order %s: %w", id, err)
	}
	return rec, nil
}

// ListOpen returns the open orders of one portfolio.
func (s *OrderService) ListOpen(ctx context.Context, portfolio string, opts domain.ListOpts) ([]domain.OrderRecord, error) {
	recs, err := s.store.ListOpenByPortfolio(ctx, portfolio, opts)
	if err != nil {
		return nil, fmt.Errorf("service: list open orders: %w", err)
	}
	return recs, nil
}

// LiveCount returns the number of orders currently held in memory.
func (s *OrderService) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

// retire persists a terminal order, publishes the update, and drops it from
// the live set.
func (s *OrderService) retire(ctx context.Context, o *domain.Order) {
	s.persist(ctx, o)
	s.publishUpdate(ctx, o)
	s.mu.Lock()
	delete(s.live, o.ID)
	s.mu.Unlock()
}

func (s *OrderService) persist(ctx context.Context, o *domain.Order) {
	if err := s.store.Update(ctx, o.Record()); err != nil {
		s.logger.Error("persisting order failed", "order_id", o.ID, "error", err)
	}
}

func (s *OrderService) publishUpdate(ctx context.Context, o *domain.Order) {
	if s.bus == nil {
		return
	}
	rec := o.Record()
	upd := domain.OrderUpdate{
		OrderID:        rec.ID,
		MarketID:       rec.MarketID,
		Portfolio:      rec.Portfolio,
		State:          rec.State,
		Reason:         rec.Reason,
		RemainingCount: rec.RemainingCount,
		Timestamp:      s.now(),
	}
	if err := s.bus.Publish(ctx, ChannelOrders, upd); err != nil {
		s.logger.Warn("publishing order update failed", "order_id", o.ID, "error", err)
	}
	if _, err := s.bus.StreamAppend(ctx, StreamOrders, upd); err != nil {
		s.logger.Warn("appending order update to stream failed", "order_id", o.ID, "error", err)
	}
}
