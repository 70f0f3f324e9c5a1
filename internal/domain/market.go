package domain

import (
	"fmt"
	"strings"
	"time"
)

// Market identifies one tradable instrument: a venue plus a base/quote
// listing. A Market is immutable once created and owns the fixed-point bases
// used to interpret every price and volume count quoted on it.
type Market struct {
	ID          string    `json:"id"`
	Venue       string    `json:"venue"`
	Base        string    `json:"base"`
	Quote       string    `json:"quote"`
	PriceBasis  int64     `json:"price_basis"`  // price counts per quote unit
	VolumeBasis int64     `json:"volume_basis"` // volume counts per base unit
	Synthetic   bool      `json:"synthetic"`    // excluded from matching
	CreatedAt   time.Time `json:"created_at"`
}

// MarketID builds the canonical market identifier "VENUE:BASE/QUOTE".
func MarketID(venue, base, quote string) string {
	return strings.ToUpper(venue) + ":" + strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// NewMarket creates a Market after validating its listing and bases.
func NewMarket(venue, base, quote string, priceBasis, volumeBasis int64, synthetic bool) (*Market, error) {
	if venue == "" || base == "" || quote == "" {
		return nil, fmt.Errorf("market: %w: venue, base and quote are required", ErrInvalidMarket)
	}
	if priceBasis <= 0 || volumeBasis <= 0 {
		return nil, fmt.Errorf("market: %w: bases must be positive (price=%d volume=%d)",
			ErrInvalidMarket, priceBasis, volumeBasis)
	}
	return &Market{
		ID:          MarketID(venue, base, quote),
		Venue:       strings.ToUpper(venue),
		Base:        strings.ToUpper(base),
		Quote:       strings.ToUpper(quote),
		PriceBasis:  priceBasis,
		VolumeBasis: volumeBasis,
		Synthetic:   synthetic,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Listing returns the "BASE/QUOTE" half of the market identifier.
func (m Market) Listing() string { return m.Base + "/" + m.Quote }

// PriceAmount interprets a raw price count on this market.
func (m Market) PriceAmount(count int64) Amount {
	return Amount{Count: count, Basis: m.PriceBasis}
}

// VolumeAmount interprets a raw volume count on this market.
func (m Market) VolumeAmount(count int64) Amount {
	return Amount{Count: count, Basis: m.VolumeBasis}
}
