package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

type memMarketStore struct {
	mu      sync.Mutex
	markets map[string]*domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[string]*domain.Market)}
}

func (s *memMarketStore) Upsert(_ context.Context, m *domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (*domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) List(_ context.Context, _ domain.ListOpts) ([]*domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out, nil
}

type memOrderStore struct {
	mu   sync.Mutex
	recs map[string]domain.OrderRecord
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{recs: make(map[string]domain.OrderRecord)}
}

func (s *memOrderStore) Create(_ context.Context, rec domain.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.recs[rec.ID] = rec
	return nil
}

func (s *memOrderStore) Update(_ context.Context, rec domain.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	return nil
}

func (s *memOrderStore) GetByID(_ context.Context, id string) (domain.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return domain.OrderRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *memOrderStore) ListByState(_ context.Context, states []domain.OrderState, _ domain.ListOpts) ([]domain.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OrderRecord
	for _, rec := range s.recs {
		for _, st := range states {
			if rec.State == st {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (s *memOrderStore) ListOpenByPortfolio(_ context.Context, portfolio string, _ domain.ListOpts) ([]domain.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OrderRecord
	for _, rec := range s.recs {
		if rec.Portfolio == portfolio && rec.State.Open() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memOrderStore) ListTerminalBefore(_ context.Context, cutoff time.Time, _ domain.ListOpts) ([]domain.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OrderRecord
	for _, rec := range s.recs {
		if rec.State.Terminal() && rec.UpdatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memFillStore struct {
	mu    sync.Mutex
	fills []*domain.Fill
}

func (s *memFillStore) Insert(_ context.Context, f *domain.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, f)
	return nil
}

func (s *memFillStore) ListByOrder(_ context.Context, orderID string) ([]*domain.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Fill
	for _, f := range s.fills {
		if f.OrderID == orderID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *memFillStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]*domain.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Fill
	for _, f := range s.fills {
		if f.MarketID == marketID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *memFillStore) ListBefore(_ context.Context, cutoff time.Time, _ domain.ListOpts) ([]*domain.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Fill
	for _, f := range s.fills {
		if f.Timestamp.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out, nil
}

type busRecord struct {
	channel string
	payload any
}

type fakeBus struct {
	mu        sync.Mutex
	published []busRecord
	streamed  []busRecord
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, busRecord{channel: channel, payload: payload})
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan domain.StreamMessage, func(), error) {
	ch := make(chan domain.StreamMessage)
	return ch, func() { close(ch) }, nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload any) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed = append(b.streamed, busRecord{channel: stream, payload: payload})
	return fmt.Sprintf("0-%d", len(b.streamed)), nil
}

func (b *fakeBus) onStream(stream string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []any
	for _, rec := range b.streamed {
		if rec.channel == stream {
			out = append(out, rec.payload)
		}
	}
	return out
}

func (b *fakeBus) onChannel(channel string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []any
	for _, rec := range b.published {
		if rec.channel == channel {
			out = append(out, rec.payload)
		}
	}
	return out
}

type fakeLimiter struct {
	allow bool
}

func (l *fakeLimiter) Allow(context.Context, string) (bool, error) {
	return l.allow, nil
}

type flatFee struct {
	count int64
}

func (f *flatFee) Commission(_ *domain.Fill, m *domain.Market) (domain.Amount, error) {
	return domain.NewAmount(f.count, m.PriceBasis), nil
}
