package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL. Orders live in
// memory while open; the table only ever holds snapshots.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates an OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts a new order snapshot.
func (s *OrderStore) Create(ctx context.Context, rec domain.OrderRecord) error {
	const query = `
		INSERT INTO orders (
			id, market_id, portfolio, side, order_type,
			limit_price_count, stop_price_count, volume_count, remaining_count,
			state, reason, submitted_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.MarketID, rec.Portfolio, string(rec.Side), string(rec.Type),
		rec.LimitPriceCount, rec.StopPriceCount, rec.VolumeCount, rec.RemainingCount,
		string(rec.State), rec.Reason, rec.SubmittedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", rec.ID, err)
	}
	return nil
}

// Update overwrites the mutable fields of an order snapshot.
func (s *OrderStore) Update(ctx context.Context, rec domain.OrderRecord) error {
	const query = `
		UPDATE orders SET
			remaining_count = $2, state = $3, reason = $4, updated_at = $5
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		rec.ID, rec.RemainingCount, string(rec.State), rec.Reason, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update order %s: %w", rec.ID, domain.ErrNotFound)
	}
	return nil
}

const orderSelectCols = `id, market_id, portfolio, side, order_type,
	limit_price_count, stop_price_count, volume_count, remaining_count,
	state, reason, submitted_at, updated_at`

func scanOrder(row pgx.Row) (domain.OrderRecord, error) {
	var rec domain.OrderRecord
	var side, orderType, state string
	err := row.Scan(&rec.ID, &rec.MarketID, &rec.Portfolio, &side, &orderType,
		&rec.LimitPriceCount, &rec.StopPriceCount, &rec.VolumeCount, &rec.RemainingCount,
		&state, &rec.Reason, &rec.SubmittedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	rec.Side = domain.Side(side)
	rec.Type = domain.FillType(orderType)
	rec.State = domain.OrderState(state)
	return rec, nil
}

// GetByID returns an order snapshot by its identifier.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.OrderRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)
	rec, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderRecord{}, domain.ErrNotFound
		}
		return domain.OrderRecord{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return rec, nil
}

func (s *OrderStore) queryOrders(ctx context.Context, query string, args ...any) ([]domain.OrderRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListByState returns orders in any of the given states, oldest first.
func (s *OrderStore) ListByState(ctx context.Context, states []domain.OrderState, opts domain.ListOpts) ([]domain.OrderRecord, error) {
	strs := make([]string, len(states))
	for i, st := range states {
		strs[i] = string(st)
	}
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE state = ANY($1) ORDER BY submitted_at`
	args := []any{strs}
	if opts.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, opts.Limit, opts.Offset)
	}

	out, err := s.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by state: %w", err)
	}
	return out, nil
}

// ListOpenByPortfolio returns a portfolio's open orders, oldest first.
func (s *OrderStore) ListOpenByPortfolio(ctx context.Context, portfolio string, opts domain.ListOpts) ([]domain.OrderRecord, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders
		WHERE portfolio = $1
		  AND state IN ('NEW', 'PLACED', 'PARTFILLED', 'ROUTED', 'CANCELLING')
		ORDER BY submitted_at`
	args := []any{portfolio}
	if opts.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, opts.Limit, opts.Offset)
	}

	out, err := s.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders for %s: %w", portfolio, err)
	}
	return out, nil
}

// ListTerminalBefore returns terminal orders last updated before the cutoff,
// used by the archiver.
func (s *OrderStore) ListTerminalBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.OrderRecord, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders
		WHERE updated_at < $1
		  AND state IN ('FILLED', 'CANCELLED', 'REJECTED')
		ORDER BY updated_at`
	args := []any{cutoff}
	if opts.Limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, opts.Limit, opts.Offset)
	}

	out, err := s.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal orders: %w", err)
	}
	return out, nil
}
