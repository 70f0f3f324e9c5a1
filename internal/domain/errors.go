package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidOrder    = errors.New("invalid order parameters")
	ErrInvalidMarket   = errors.New("invalid market parameters")
	ErrUnknownMarket   = errors.New("unknown market")
	ErrBasisMismatch   = errors.New("amount basis mismatch")
	ErrStopUnsupported = errors.New("stop prices unsupported")

	// ErrOrderNotOpen is returned by a cancel against an order already in a
	// terminal state.
	ErrOrderNotOpen = errors.New("cannot cancel a non-open order")

	// ErrAlreadyResolved is returned by a cancel that lost the race against a
	// fill: the order left the book because it completed, not because the
	// cancel failed.
	ErrAlreadyResolved = errors.New("order already resolved")

	// ErrOverfill marks the invariant violation where a fill would push an
	// order past its requested volume. It is a defect signal, never an
	// expected outcome.
	ErrOverfill = errors.New("fill volume exceeds order remaining volume")
)
