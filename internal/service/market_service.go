package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// MarketService manages market definitions with a read-through cache in
// front of the store. The engine resolves every incoming event through it,
// so lookups must not hit the database on the hot path.
type MarketService struct {
	logger *slog.Logger
	store  domain.MarketStore

	mu    sync.RWMutex
	cache map[string]*domain.Market
}

func NewMarketService(logger *slog.Logger, store domain.MarketStore) *MarketService {
	return &MarketService{
		logger: logger.With("component", "market_service"),
		store:  store,
		cache:  make(map[string]*domain.Market),
	}
}

// Define validates and persists a market, replacing any existing definition
// with the same venue/base/quote listing.
func (s *MarketService) Define(ctx context.Context, venue, base, quote string, priceBasis, volumeBasis int64, synthetic bool) (*domain.Market, error) {
	m, err := domain.NewMarket(venue, base, quote, priceBasis, volumeBasis, synthetic)
	if err != nil {
		return nil, fmt.Errorf("service: define market: %w", err)
	}
	if err := s.store.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("service: define market: %w", err)
	}
	s.mu.Lock()
	s.cache[m.ID] = m
	s.mu.Unlock()
	s.logger.Info("market defined", "market_id", m.ID, "synthetic", m.Synthetic)
	return m, nil
}

// Get returns the market by ID, consulting the store on a cache miss.
func (s *MarketService) Get(ctx context.Context, id string) (*domain.Market, error) {
	s.mu.RLock()
	m, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: get market %s: %w", id, err)
	}
	s.mu.Lock()
	s.cache[id] = m
	s.mu.Unlock()
	return m, nil
}

// Market implements the engine's market lookup.
func (s *MarketService) Market(ctx context.Context, id string) (*domain.Market, error) {
	return s.Get(ctx, id)
}

// List returns markets from the store.
func (s *MarketService) List(ctx context.Context, opts domain.ListOpts) ([]*domain.Market, error) {
	markets, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service: list markets: %w", err)
	}
	return markets, nil
}

// WarmCache primes the cache with every stored market. Called once at
// startup before the feed starts.
func (s *MarketService) WarmCache(ctx context.Context) error {
	markets, err := s.store.List(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("service: warm market cache: %w", err)
	}
	s.mu.Lock()
	for _, m := range markets {
		s.cache[m.ID] = m
	}
	s.mu.Unlock()
	s.logger.Info("market cache warmed", "count", len(markets))
	return nil
}
