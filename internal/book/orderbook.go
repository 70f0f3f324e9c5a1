package book

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// SideBook holds the resting orders for one side of one market, kept in
// priority order: market orders first, then limit orders best price first
// (descending for buys, ascending for sells), ties broken by submission time.
//
// The side mutex is the outer lock. Any code needing both the side lock and
// an order's own lock must take the side lock first; MatchPass enforces that
// structurally by holding the side lock for the caller's whole pass.
type SideBook struct {
	side   domain.Side
	logger *slog.Logger

	mu     sync.Mutex
	orders []*domain.Order
}

// NewSideBook creates an empty side book.
func NewSideBook(side domain.Side, logger *slog.Logger) *SideBook {
	return &SideBook{side: side, logger: logger}
}

// Side returns which side this book holds.
func (b *SideBook) Side() domain.Side { return b.side }

// before reports whether order a has strictly higher priority than order c.
func (b *SideBook) before(a, c *domain.Order) bool {
	ap, cp := a.LimitPriceCount, c.LimitPriceCount
	switch {
	case ap == nil && cp != nil:
		return true
	case ap != nil && cp == nil:
		return false
	case ap != nil && cp != nil && *ap != *cp:
		if b.side == domain.SideBuy {
			return *ap > *cp
		}
		return *ap < *cp
	}
	return a.SubmittedAt.Before(c.SubmittedAt)
}

// ordered reports whether a may rest immediately ahead of c.
func (b *SideBook) ordered(a, c *domain.Order) bool {
	return !b.before(c, a)
}

// Submit inserts the order at its priority position. Neighbour ordering is
// verified after insertion; an anomaly is logged and the whole side re-sorted
// rather than dropping the order.
func (b *SideBook) Submit(o *domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := sort.Search(len(b.orders), func(i int) bool {
		return b.before(o, b.orders[i])
	})
	b.orders = append(b.orders, nil)
	copy(b.orders[i+1:], b.orders[i:])
	b.orders[i] = o

	if (i > 0 && !b.ordered(b.orders[i-1], o)) ||
		(i+1 < len(b.orders) && !b.ordered(o, b.orders[i+1])) {
		b.logger.Warn("order book priority anomaly, re-sorting side",
			"market_id", o.MarketID, "side", b.side, "order_id", o.ID)
		sort.SliceStable(b.orders, func(x, y int) bool {
			return b.before(b.orders[x], b.orders[y])
		})
	}
}

// Remove takes the order out of the book. It returns false when the order is
// no longer resting, which callers use to detect a cancel losing the race
// against a matching pass.
func (b *SideBook) Remove(o *domain.Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.orders {
		if cur == o {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			return true
		}
	}
	return false
}

// MatchPass runs fn over the resting orders in priority order while holding
// the side lock, then removes the orders fn reports as exhausted before
// releasing it. Cancellation on this side is serialized against the pass.
func (b *SideBook) MatchPass(fn func(orders []*domain.Order) (remove []*domain.Order)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.orders) == 0 {
		return
	}
	remove := fn(b.orders)
	if len(remove) == 0 {
		return
	}
	gone := make(map[*domain.Order]struct{}, len(remove))
	for _, o := range remove {
		gone[o] = struct{}{}
	}
	kept := b.orders[:0]
	for _, o := range b.orders {
		if _, ok := gone[o]; !ok {
			kept = append(kept, o)
		}
	}
	for i := len(kept); i < len(b.orders); i++ {
		b.orders[i] = nil
	}
	b.orders = kept
}

// Len returns the number of resting orders.
func (b *SideBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}

// Snapshot returns the resting orders in priority order.
func (b *SideBook) Snapshot() []*domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*domain.Order, len(b.orders))
	copy(out, b.orders)
	return out
}

// MarketBook pairs the two side books of one market.
type MarketBook struct {
	Buys  *SideBook
	Sells *SideBook
}

// SideBook returns the book for the given side.
func (m *MarketBook) SideBook(side domain.Side) *SideBook {
	if side == domain.SideSell {
		return m.Sells
	}
	return m.Buys
}

// Registry hands out per-market books, creating them on first use.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	books map[string]*MarketBook
}

// NewRegistry creates an empty book registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger.With("component", "book"),
		books:  make(map[string]*MarketBook),
	}
}

// Book returns the market's book, creating it if needed.
func (r *Registry) Book(marketID string) *MarketBook {
	r.mu.RLock()
	mb, ok := r.books[marketID]
	r.mu.RUnlock()
	if ok {
		return mb
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if mb, ok = r.books[marketID]; ok {
		return mb
	}
	mb = &MarketBook{
		Buys:  NewSideBook(domain.SideBuy, r.logger),
		Sells: NewSideBook(domain.SideSell, r.logger),
	}
	r.books[marketID] = mb
	return mb
}

// Lookup returns the market's book without creating one.
func (r *Registry) Lookup(marketID string) (*MarketBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mb, ok := r.books[marketID]
	return mb, ok
}

// Submit places the order on its market and side.
func (r *Registry) Submit(o *domain.Order) {
	r.Book(o.MarketID).SideBook(o.Side).Submit(o)
}

// Remove takes the order out of its book, reporting whether it was resting.
func (r *Registry) Remove(o *domain.Order) bool {
	mb, ok := r.Lookup(o.MarketID)
	if !ok {
		return false
	}
	return mb.SideBook(o.Side).Remove(o)
}

// Depth returns the number of resting orders per side for a market.
func (r *Registry) Depth(marketID string) (buys, sells int) {
	mb, ok := r.Lookup(marketID)
	if !ok {
		return 0, 0
	}
	return mb.Buys.Len(), mb.Sells.Len()
}
