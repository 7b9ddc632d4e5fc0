// Package expense holds the operating-expense ledger. Expenses are
// unrelated to orders but share the financial-reporting read path.
package expense

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an expense amount is not positive.
var ErrInvalidAmount = errors.New("expense amount must be greater than 0")

// Expense is a single ledger entry.
type Expense struct {
	ID          string
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	CreatedAt   time.Time
}

// Validate checks the amount invariant.
func (e *Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Repository defines persistence operations for expenses.
type Repository interface {
	List(ctx context.Context) ([]Expense, error)
	Create(ctx context.Context, e *Expense) error
	Delete(ctx context.Context, id string) error
}
