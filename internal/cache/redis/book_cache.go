package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// defaultBookTTL bounds how stale a cached snapshot may get before it
// disappears on its own.
const defaultBookTTL = 5 * time.Minute

// BookCache implements domain.BookCache by storing the latest observed book
// snapshot per market as a JSON blob with a TTL. Only the newest snapshot
// matters, so a plain SET/GET pair is enough.
//
// Key schema:
//
//	book:{marketID}  - JSON-encoded domain.Book
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.BookCache = (*BookCache)(nil)

// NewBookCache creates a BookCache backed by the given Client. A zero ttl
// uses the default.
func NewBookCache(c *Client, ttl time.Duration) *BookCache {
	if ttl <= 0 {
		ttl = defaultBookTTL
	}
	return &BookCache{rdb: c.Underlying(), ttl: ttl}
}

func bookKey(marketID string) string { return "book:" + marketID }

// SetBook replaces the market's cached snapshot.
func (bc *BookCache) SetBook(ctx context.Context, b *domain.Book) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("redis: set book %s: encode: %w", b.MarketID, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(b.MarketID), data, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", b.MarketID, err)
	}
	return nil
}

// GetBook returns the market's latest cached snapshot, or domain.ErrNotFound
// when none is cached.
func (bc *BookCache) GetBook(ctx context.Context, marketID string) (*domain.Book, error) {
	data, err := bc.rdb.Get(ctx, bookKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get book %s: %w", marketID, err)
	}
	var b domain.Book
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("redis: get book %s: decode: %w", marketID, err)
	}
	return &b, nil
}
