package domain

import (
	"fmt"
	"strconv"
)

// Amount is a fixed-point quantity. The real value is Count divided by Basis,
// where Basis is the number of counts per whole unit for one market (e.g. a
// price basis of 100 means prices are held in cents). All arithmetic stays on
// the integer Count; two Amounts may only be combined or compared when their
// bases match.
type Amount struct {
	Count int64 `json:"count"`
	Basis int64 `json:"basis"`
}

// NewAmount creates an Amount from a raw count and a per-market basis.
func NewAmount(count, basis int64) Amount {
	return Amount{Count: count, Basis: basis}
}

// Float64 returns the display value. It is for presentation only; it must
// never feed back into Amount arithmetic.
func (a Amount) Float64() float64 {
	if a.Basis == 0 {
		return 0
	}
	return float64(a.Count) / float64(a.Basis)
}

// IsZero reports whether the amount has a zero count.
func (a Amount) IsZero() bool { return a.Count == 0 }

// Neg returns the amount with its count negated.
func (a Amount) Neg() Amount { return Amount{Count: -a.Count, Basis: a.Basis} }

// Abs returns the amount with a non-negative count.
func (a Amount) Abs() Amount {
	if a.Count < 0 {
		return a.Neg()
	}
	return a
}

// Add returns a + b. It fails when the bases differ.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Basis != b.Basis {
		return Amount{}, fmt.Errorf("amount: add: %w (%d vs %d)", ErrBasisMismatch, a.Basis, b.Basis)
	}
	return Amount{Count: a.Count + b.Count, Basis: a.Basis}, nil
}

// Sub returns a - b. It fails when the bases differ.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Basis != b.Basis {
		return Amount{}, fmt.Errorf("amount: sub: %w (%d vs %d)", ErrBasisMismatch, a.Basis, b.Basis)
	}
	return Amount{Count: a.Count - b.Count, Basis: a.Basis}, nil
}

// Cmp returns -1, 0, or +1 as a is less than, equal to, or greater than b.
// It fails when the bases differ.
func (a Amount) Cmp(b Amount) (int, error) {
	if a.Basis != b.Basis {
		return 0, fmt.Errorf("amount: cmp: %w (%d vs %d)", ErrBasisMismatch, a.Basis, b.Basis)
	}
	switch {
	case a.Count < b.Count:
		return -1, nil
	case a.Count > b.Count:
		return 1, nil
	default:
		return 0, nil
	}
}

// String renders the display value for logs.
func (a Amount) String() string {
	return strconv.FormatFloat(a.Float64(), 'f', -1, 64)
}
