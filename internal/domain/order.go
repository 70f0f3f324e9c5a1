package domain

import (
	"sync"
	"time"
)

// Side indicates whether an order buys or sells the base.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for a buy, -1 for a sell. Volume counts on orders and
// fills carry this sign.
func (s Side) Sign() int64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// Opposite returns the counter side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// FillType selects how an order may execute.
type FillType string

const (
	FillTypeMarket FillType = "MARKET"
	FillTypeLimit  FillType = "LIMIT"
)

// Valid reports whether t is a known fill type.
func (t FillType) Valid() bool { return t == FillTypeMarket || t == FillTypeLimit }

// OrderState tracks the order lifecycle.
type OrderState string

const (
	OrderStateNew        OrderState = "NEW"
	OrderStatePlaced     OrderState = "PLACED"
	OrderStatePartFilled OrderState = "PARTFILLED"
	OrderStateRouted     OrderState = "ROUTED"
	OrderStateCancelling OrderState = "CANCELLING"
	OrderStateFilled     OrderState = "FILLED"
	OrderStateCancelled  OrderState = "CANCELLED"
	OrderStateRejected   OrderState = "REJECTED"
)

// Open reports whether the state still admits fills or cancellation.
func (s OrderState) Open() bool {
	switch s {
	case OrderStateNew, OrderStatePlaced, OrderStatePartFilled, OrderStateRouted, OrderStateCancelling:
		return true
	}
	return false
}

// Terminal reports whether the state is final.
func (s OrderState) Terminal() bool { return !s.Open() }

// OpenOrderStates lists every state a live order can be in, in the order
// startup recovery queries them.
var OpenOrderStates = []OrderState{
	OrderStatePlaced, OrderStatePartFilled, OrderStateRouted, OrderStateCancelling,
}

// Order is a resting client order. The immutable submission fields are plain;
// the mutable ones (remaining volume, state, fill history) are guarded by the
// order's own mutex so a cancel can race a matching pass safely. VolumeCount
// and the remaining volume carry the side's sign.
type Order struct {
	ID              string
	MarketID        string
	Portfolio       string
	Side            Side
	Type            FillType
	LimitPriceCount *int64
	StopPriceCount  *int64
	VolumeCount     int64
	SubmittedAt     time.Time

	mu        sync.Mutex
	entryTime time.Time
	remaining int64
	state     OrderState
	reason    string
	fills     []*Fill
}

// NewOrder creates an order in state NEW with its full volume remaining.
func NewOrder(id, marketID, portfolio string, side Side, fillType FillType,
	limitPriceCount, stopPriceCount *int64, volumeCount int64, submittedAt time.Time) *Order {
	return &Order{
		ID:              id,
		MarketID:        marketID,
		Portfolio:       portfolio,
		Side:            side,
		Type:            fillType,
		LimitPriceCount: limitPriceCount,
		StopPriceCount:  stopPriceCount,
		VolumeCount:     volumeCount,
		SubmittedAt:     submittedAt,
		remaining:       volumeCount,
		state:           OrderStateNew,
	}
}

// State returns the current lifecycle state.
func (o *Order) State() OrderState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Reason returns the reason attached to the last state change, if any.
func (o *Order) Reason() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reason
}

// SetState unconditionally moves the order to the given state.
func (o *Order) SetState(s OrderState, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
	o.reason = reason
}

// TransitionIfOpen moves the order to the given state only when the current
// state is still open, and reports whether the transition happened.
func (o *Order) TransitionIfOpen(s OrderState, reason string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.Open() {
		return false
	}
	o.state = s
	o.reason = reason
	return true
}

// SetEntryTime stamps the moment the order entered the book.
func (o *Order) SetEntryTime(t time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entryTime = t
}

// EntryTime returns the book-entry timestamp, zero until placed.
func (o *Order) EntryTime() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.entryTime
}

// Remaining returns the signed unfilled volume count. It is monotonically
// non-increasing in absolute value until cancellation.
func (o *Order) Remaining() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remaining
}

// Reduce subtracts a signed fill volume from the remaining volume and returns
// the new remaining count.
func (o *Order) Reduce(volumeCount int64) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.remaining -= volumeCount
	return o.remaining
}

// AddFill appends a fill to the order's history. It returns ErrOverfill when
// the accumulated fill volume exceeds the requested volume; the fill is still
// recorded so the anomaly stays visible downstream.
func (o *Order) AddFill(f *Fill) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fills = append(o.fills, f)
	var filled int64
	for _, exec := range o.fills {
		filled += abs64(exec.VolumeCount)
	}
	if filled > abs64(o.VolumeCount) {
		return ErrOverfill
	}
	return nil
}

// Fills returns a copy of the order's fill history.
func (o *Order) Fills() []*Fill {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Fill, len(o.fills))
	copy(out, o.fills)
	return out
}

// Record takes an immutable snapshot of the order for persistence and API
// responses.
func (o *Order) Record() OrderRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OrderRecord{
		ID:              o.ID,
		MarketID:        o.MarketID,
		Portfolio:       o.Portfolio,
		Side:            o.Side,
		Type:            o.Type,
		LimitPriceCount: o.LimitPriceCount,
		StopPriceCount:  o.StopPriceCount,
		VolumeCount:     o.VolumeCount,
		RemainingCount:  o.remaining,
		State:           o.state,
		Reason:          o.reason,
		SubmittedAt:     o.SubmittedAt,
		UpdatedAt:       time.Now().UTC(),
	}
}

// OrderRecord is the persisted shape of an order.
type OrderRecord struct {
	ID              string     `json:"id"`
	MarketID        string     `json:"market_id"`
	Portfolio       string     `json:"portfolio"`
	Side            Side       `json:"side"`
	Type            FillType   `json:"type"`
	LimitPriceCount *int64     `json:"limit_price_count,omitempty"`
	StopPriceCount  *int64     `json:"stop_price_count,omitempty"`
	VolumeCount     int64      `json:"volume_count"`
	RemainingCount  int64      `json:"remaining_count"`
	State           OrderState `json:"state"`
	Reason          string     `json:"reason,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// OrderFromRecord rebuilds a live order from its persisted snapshot. Used by
// startup recovery to re-seat in-flight orders in the book.
func OrderFromRecord(rec OrderRecord) *Order {
	o := NewOrder(rec.ID, rec.MarketID, rec.Portfolio, rec.Side, rec.Type,
		rec.LimitPriceCount, rec.StopPriceCount, rec.VolumeCount, rec.SubmittedAt)
	o.remaining = rec.RemainingCount
	o.state = rec.State
	o.reason = rec.Reason
	return o
}

// OrderUpdate is the event published on every order state transition.
type OrderUpdate struct {
	OrderID        string     `json:"order_id"`
	MarketID       string     `json:"market_id"`
	Portfolio      string     `json:"portfolio"`
	State          OrderState `json:"state"`
	Reason         string     `json:"reason,omitempty"`
	RemainingCount int64      `json:"remaining_count"`
	Timestamp      time.Time  `json:"timestamp"`
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
