package domain

import "time"

// Fill is a single execution against a resting order. VolumeCount carries the
// order side's sign; PriceCount and Commission are expressed in the market's
// price basis.
type Fill struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	MarketID    string    `json:"market_id"`
	Portfolio   string    `json:"portfolio"`
	Timestamp   time.Time `json:"timestamp"`
	PriceCount  int64     `json:"price_count"`
	VolumeCount int64     `json:"volume_count"`
	Commission  *Amount   `json:"commission,omitempty"`
}

// NewFill creates a fill at the given price and signed volume.
func NewFill(id string, o *Order, ts time.Time, priceCount, volumeCount int64) *Fill {
	return &Fill{
		ID:          id,
		OrderID:     o.ID,
		MarketID:    o.MarketID,
		Portfolio:   o.Portfolio,
		Timestamp:   ts,
		PriceCount:  priceCount,
		VolumeCount: volumeCount,
	}
}

// Notional returns |price * volume| in the market's price basis.
func (f *Fill) Notional(m *Market) Amount {
	n := f.PriceCount * f.VolumeCount
	if n < 0 {
		n = -n
	}
	return m.PriceAmount(n / m.VolumeBasis)
}
