package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

var _ domain.FillStore = (*FillStore)(nil)

// NewFillStore creates a FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Insert records an execution. The commission columns stay NULL when the
// fill carries none.
func (s *FillStore) Insert(ctx context.Context, f *domain.Fill) error {
	var commCount, commBasis *int64
	if f.Commission != nil {
		commCount = &f.Commission.Count
		commBasis = &f.Commission.Basis
	}

	const query = `
		INSERT INTO fills (
			id, order_id, market_id, portfolio, ts,
			price_count, volume_count, commission_count, commission_basis
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		f.ID, f.OrderID, f.MarketID, f.Portfolio, f.Timestamp,
		f.PriceCount, f.VolumeCount, commCount, commBasis,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert fill %s: %w", f.ID, err)
	}
	return nil
}

const fillSelectCols = `id, order_id, market_id, portfolio, ts,
	price_count, volume_count, commission_count, commission_basis`

func scanFill(row pgx.Row) (*domain.Fill, error) {
	var f domain.Fill
	var commCount, commBasis *int64
	err := row.Scan(&f.ID, &f.OrderID, &f.MarketID, &f.Portfolio, &f.Timestamp,
		&f.PriceCount, &f.VolumeCount, &commCount, &commBasis)
	if err != nil {
		return nil, err
	}
	if commCount != nil && commBasis != nil {
		c := domain.NewAmount(*commCount, *commBasis)
		f.Commission = &c
	}
	return &f, nil
}

func (s *FillStore) queryFills(ctx context.Context, query string, args ...any) ([]*domain.Fill, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Fill
	for rows.Next() {
		f, err := scanFill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListByOrder returns an order's fills in execution order.
func (s *FillStore) ListByOrder(ctx context.Context, orderID string) ([]*domain.Fill, error) {
	out, err := s.queryFills(ctx,
		`SELECT `+fillSelectCols+` FROM fills WHERE order_id = $1 ORDER BY ts`, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills for order %s: %w", orderID, err)
	}
	return out, nil
}

// ListByMarket returns a market's fills, newest first.
func (s *FillStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]*domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + ` FROM fills WHERE market_id = $1 ORDER BY ts DESC`
	args := []any{marketID}
	if opts.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, opts.Limit, opts.Offset)
	}

	out, err := s.queryFills(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills for market %s: %w", marketID, err)
	}
	return out, nil
}

// ListBefore returns fills executed before the cutoff, oldest first, used by
// the archiver.
func (s *FillStore) ListBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]*domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + ` FROM fills WHERE ts < $1 ORDER BY ts`
	args := []any{cutoff}
	if opts.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, opts.Limit, opts.Offset)
	}

	out, err := s.queryFills(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return out, nil
}
