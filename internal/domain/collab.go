package domain

import (
	"context"
	"time"
)

// ListOpts bounds paging on list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists market definitions.
type MarketStore interface {
	Upsert(ctx context.Context, m *Market) error
	GetByID(ctx context.Context, id string) (*Market, error)
	List(ctx context.Context, opts ListOpts) ([]*Market, error)
}

// OrderStore persists order snapshots.
type OrderStore interface {
	Create(ctx context.Context, rec OrderRecord) error
	Update(ctx context.Context, rec OrderRecord) error
	GetByID(ctx context.Context, id string) (OrderRecord, error)
	ListByState(ctx context.Context, states []OrderState, opts ListOpts) ([]OrderRecord, error)
	ListOpenByPortfolio(ctx context.Context, portfolio string, opts ListOpts) ([]OrderRecord, error)
	ListTerminalBefore(ctx context.Context, cutoff time.Time, opts ListOpts) ([]OrderRecord, error)
}

// FillStore persists executions.
type FillStore interface {
	Insert(ctx context.Context, f *Fill) error
	ListByOrder(ctx context.Context, orderID string) ([]*Fill, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]*Fill, error)
	ListBefore(ctx context.Context, cutoff time.Time, opts ListOpts) ([]*Fill, error)
}

// SignalBus fans events out between processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channel string) (<-chan StreamMessage, func(), error)
	StreamAppend(ctx context.Context, stream string, payload any) (string, error)
}

// BookCache holds the latest book snapshot per market.
type BookCache interface {
	SetBook(ctx context.Context, b *Book) error
	GetBook(ctx context.Context, marketID string) (*Book, error)
}

// RateLimiter gates order submission per portfolio.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// FeeSchedule prices commission for a fill.
type FeeSchedule interface {
	Commission(f *Fill, m *Market) (Amount, error)
}
