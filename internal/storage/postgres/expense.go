package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/madraim/shopdesk/internal/domain/expense"
)

var _ expense.Repository = (*ExpenseRepository)(nil)

// ExpenseRepository implements expense.Repository backed by PostgreSQL.
type ExpenseRepository struct {
	pool *pgxpool.Pool
}

// NewExpenseRepository returns an ExpenseRepository that uses the given pool.
func NewExpenseRepository(pool *pgxpool.Pool) *ExpenseRepository {
	return &ExpenseRepository{pool: pool}
}

// List returns all expenses, newest spending date first.
func (r *ExpenseRepository) List(ctx context.Context) ([]expense.Expense, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, amount, spent_at, created_at
		FROM expenses ORDER BY spent_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	defer rows.Close()

	var out []expense.Expense
	for rows.Next() {
		var e expense.Expense
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.Date, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Create inserts a new expense row.
func (r *ExpenseRepository) Create(ctx context.Context, e *expense.Expense) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO expenses (id, description, amount, spent_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Description, e.Amount, e.Date, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating expense %q: %w", e.ID, err)
	}
	return nil
}

// Delete removes an expense row.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting expense %q: %w", id, err)
	}
	return nil
}
