package engine

import (
	"context"
	"math"
	"time"

	"github.com/alanyoungcy/tradesim/internal/book"
	"github.com/alanyoungcy/tradesim/internal/domain"
)

// sideDesc captures the asymmetry between the two resting sides so the
// matching pass itself is written once. A buy is violated by an offer priced
// above its limit and slips upward; a sell mirrors both.
type sideDesc struct {
	sign     int64
	violates func(limitCount, priceCount int64) bool
	clamp    func(limitCount, slippedCount int64) int64
	slip     func(priceCount int64, rate float64) int64
}

var buyDesc = sideDesc{
	sign:     1,
	violates: func(limit, price int64) bool { return price > limit },
	clamp:    min64,
	slip: func(price int64, rate float64) int64 {
		return price + slipCount(price, rate)
	},
}

var sellDesc = sideDesc{
	sign:     -1,
	violates: func(limit, price int64) bool { return price < limit },
	clamp:    max64,
	slip: func(price int64, rate float64) int64 {
		return price - slipCount(price, rate)
	},
}

func descFor(side domain.Side) sideDesc {
	if side == domain.SideSell {
		return sellDesc
	}
	return buyDesc
}

type execution struct {
	order *domain.Order
	fill  *domain.Fill
}

// matchSide runs one matching pass of the given offers over one resting side.
// Offers arrive best price first and are depleted across orders within the
// pass; orders whose remaining volume reaches zero are removed from the book
// before the side lock is released. Fills are handed to the sink only after
// the lock is gone. A panic is contained to this side of this event.
func (e *Engine) matchSide(ctx context.Context, m *domain.Market, sb *book.SideBook, offers []domain.Offer, eventTS time.Time) {
	if len(offers) == 0 {
		return
	}
	d := descFor(sb.Side())

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("matching pass panicked, dropping event side",
				"market_id", m.ID, "side", sb.Side(), "panic", r)
		}
	}()

	var execs []execution
	sb.MatchPass(func(orders []*domain.Order) []*domain.Order {
		var remove []*domain.Order
		live := len(offers)
	scan:
		for _, o := range orders {
			rem := o.Remaining()
			if rem == 0 {
				remove = append(remove, o)
				continue
			}
			// An order stamped after the event never trades against it.
			if o.SubmittedAt.After(eventTS) {
				continue
			}
			for i := range offers {
				off := &offers[i]
				if off.VolumeCount == 0 {
					continue
				}
				if o.Type == domain.FillTypeLimit && d.violates(*o.LimitPriceCount, off.PriceCount) {
					// Offers only get worse from here, and every later order
					// carries an equal or worse limit. Nothing else can trade.
					break scan
				}
				price := d.slip(off.PriceCount, e.slippageRate)
				if o.Type == domain.FillTypeLimit {
					price = d.clamp(*o.LimitPriceCount, price)
				}
				vol := d.sign * min64(off.VolumeCount, abs64(rem))
				off.VolumeCount -= abs64(vol)
				if off.VolumeCount == 0 {
					live--
				}
				rem = o.Reduce(vol)
				execs = append(execs, execution{
					order: o,
					fill:  domain.NewFill(e.newID(), o, off.Timestamp, price, vol),
				})
				if rem == 0 {
					remove = append(remove, o)
					break
				}
			}
			if live == 0 {
				break scan
			}
		}
		return remove
	})

	for _, ex := range execs {
		e.sink.HandleFill(ctx, ex.order, ex.fill)
	}
}

// slipCount converts the fractional slippage rate into a price count delta,
// rounded half away from zero.
func slipCount(priceCount int64, rate float64) int64 {
	return int64(math.Round(float64(priceCount) * rate))
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
