package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/madraim/shopdesk/internal/domain/pricing"
	"github.com/madraim/shopdesk/internal/settings"
)

var _ settings.Store = (*SettingsRepository)(nil)

// storedDiscount is the JSONB shape of one discount entry. Order in the
// array is significant: it is the first-match precedence order.
type storedDiscount struct {
	Target     string          `json:"target"`
	Percentage decimal.Decimal `json:"percentage"`
}

// SettingsRepository implements settings.Store over the single settings
// row.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get loads the stored settings.
func (r *SettingsRepository) Get(ctx context.Context) (settings.Stored, error) {
	var (
		out           settings.Stored
		discountsJSON []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT local_margin, discounts FROM settings WHERE id = 1`).
		Scan(&out.LocalMargin, &discountsJSON)
	if err != nil {
		return settings.Stored{}, fmt.Errorf("loading settings: %w", err)
	}

	var stored []storedDiscount
	if err := json.Unmarshal(discountsJSON, &stored); err != nil {
		return settings.Stored{}, fmt.Errorf("unmarshaling discounts: %w", err)
	}
	out.Discounts = make([]pricing.Discount, len(stored))
	for i, d := range stored {
		out.Discounts[i] = pricing.Discount{Target: d.Target, Percentage: d.Percentage}
	}
	return out, nil
}

// Update overwrites the stored settings.
func (r *SettingsRepository) Update(ctx context.Context, s settings.Stored) error {
	stored := make([]storedDiscount, len(s.Discounts))
	for i, d := range s.Discounts {
		stored[i] = storedDiscount{Target: d.Target, Percentage: d.Percentage}
	}
	discountsJSON, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshaling discounts: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE settings SET local_margin = $1, discounts = $2 WHERE id = 1`,
		s.LocalMargin, discountsJSON)
	if err != nil {
		return fmt.Errorf("updating settings: %w", err)
	}
	return nil
}
