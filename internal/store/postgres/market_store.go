package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Upsert inserts the market or replaces an existing definition.
func (s *MarketStore) Upsert(ctx context.Context, m *domain.Market) error {
	const query = `
		INSERT INTO markets (id, venue, base, quote, price_basis, volume_basis, synthetic, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			price_basis = EXCLUDED.price_basis,
			volume_basis = EXCLUDED.volume_basis,
			synthetic = EXCLUDED.synthetic`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Venue, m.Base, m.Quote, m.PriceBasis, m.VolumeBasis, m.Synthetic, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

const marketSelectCols = `id, venue, base, quote, price_basis, volume_basis, synthetic, created_at`

func scanMarket(row pgx.Row) (*domain.Market, error) {
	var m domain.Market
	err := row.Scan(&m.ID, &m.Venue, &m.Base, &m.Quote,
		&m.PriceBasis, &m.VolumeBasis, &m.Synthetic, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID returns a market by its identifier.
func (s *MarketStore) GetByID(ctx context.Context, id string) (*domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets ordered by identifier.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]*domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets ORDER BY id`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	return out, nil
}
