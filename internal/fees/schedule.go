package fees

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// Schedule prices commission as basis points of fill notional, with an
// optional per-venue override of the default rate.
type Schedule struct {
	defaultBps float64
	venueBps   map[string]float64
}

var _ domain.FeeSchedule = (*Schedule)(nil)

// NewSchedule creates a schedule. venueBps may be nil.
func NewSchedule(defaultBps float64, venueBps map[string]float64) (*Schedule, error) {
	if defaultBps < 0 {
		return nil, fmt.Errorf("fees: negative default rate %f", defaultBps)
	}
	for venue, bps := range venueBps {
		if bps < 0 {
			return nil, fmt.Errorf("fees: negative rate %f for venue %s", bps, venue)
		}
	}
	return &Schedule{defaultBps: defaultBps, venueBps: venueBps}, nil
}

// Rate returns the basis-point rate applied to fills on the given venue.
func (s *Schedule) Rate(venue string) float64 {
	if bps, ok := s.venueBps[venue]; ok {
		return bps
	}
	return s.defaultBps
}

// Commission returns the fee for the fill in the market's price basis.
// Notional is |price * volume| scaled back by the volume basis; commission
// rounds half away from zero.
func (s *Schedule) Commission(f *domain.Fill, m *domain.Market) (domain.Amount, error) {
	if m.VolumeBasis <= 0 {
		return domain.Amount{}, fmt.Errorf("fees: market %s: %w", m.ID, domain.ErrInvalidMarket)
	}
	notional := f.Notional(m)
	count := int64(math.Round(float64(notional.Count) * s.Rate(m.Venue) / 10000))
	return domain.NewAmount(count, m.PriceBasis), nil
}
