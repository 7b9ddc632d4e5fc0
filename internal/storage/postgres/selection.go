package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/madraim/shopdesk/internal/domain/selection"
)

var _ selection.Repository = (*SelectionRepository)(nil)

// SelectionRepository implements selection.Repository backed by
// PostgreSQL. Lines are stored as JSONB: selections are written once and
// read back whole, never queried per line.
type SelectionRepository struct {
	pool *pgxpool.Pool
}

// NewSelectionRepository returns a SelectionRepository that uses the
// given pool.
func NewSelectionRepository(pool *pgxpool.Pool) *SelectionRepository {
	return &SelectionRepository{pool: pool}
}

const selectionColumns = `id, contact_name, contact_phone, contact_email,
	contact_address, lines, status, created_at`

// Create persists a new pending selection.
func (r *SelectionRepository) Create(ctx context.Context, s *selection.Selection) error {
	linesJSON, err := json.Marshal(s.Lines)
	if err != nil {
		return fmt.Errorf("marshaling selection lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO selections (id, contact_name, contact_phone, contact_email,
			contact_address, lines, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Contact.Name, s.Contact.Phone, s.Contact.Email,
		s.Contact.Address, linesJSON, string(s.Status), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating selection %q: %w", s.ID, err)
	}
	return nil
}

// GetByID returns a selection regardless of status, for audit.
func (r *SelectionRepository) GetByID(ctx context.Context, id string) (*selection.Selection, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectionColumns+` FROM selections WHERE id = $1`, id)
	s, err := scanSelection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, selection.ErrNotFound
		}
		return nil, fmt.Errorf("getting selection %q: %w", id, err)
	}
	return s, nil
}

// ListPending returns the actionable list: pending only, newest first.
func (r *SelectionRepository) ListPending(ctx context.Context) ([]selection.Selection, error) {
	return r.list(ctx,
		`SELECT `+selectionColumns+` FROM selections
		 WHERE status = 'pending' ORDER BY created_at DESC`)
}

// List returns every selection, newest first.
func (r *SelectionRepository) List(ctx context.Context) ([]selection.Selection, error) {
	return r.list(ctx,
		`SELECT `+selectionColumns+` FROM selections ORDER BY created_at DESC`)
}

func (r *SelectionRepository) list(ctx context.Context, query string) ([]selection.Selection, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing selections: %w", err)
	}
	defer rows.Close()

	var out []selection.Selection
	for rows.Next() {
		s, err := scanSelection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// MarkProcessed is the store-side half of exactly-once conversion: a
// conditional update that only succeeds while the row is still pending.
// Two staff sessions racing to convert the same selection both reach this
// statement; the second one matches zero rows and gets the conflict.
func (r *SelectionRepository) MarkProcessed(ctx context.Context, id string) (*selection.Selection, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE selections SET status = 'processed'
		WHERE id = $1 AND status = 'pending'
		RETURNING `+selectionColumns, id)

	s, err := scanSelection(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("marking selection %q processed: %w", id, err)
	}

	// Zero rows: either the selection does not exist or it is no longer
	// pending. Distinguish for the caller.
	var status string
	lookupErr := r.pool.QueryRow(ctx,
		`SELECT status FROM selections WHERE id = $1`, id).Scan(&status)
	if lookupErr != nil {
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return nil, selection.ErrNotFound
		}
		return nil, fmt.Errorf("checking selection %q status: %w", id, lookupErr)
	}
	return nil, &selection.AlreadyProcessedError{SelectionID: id}
}

func scanSelection(row pgx.Row) (*selection.Selection, error) {
	var (
		s         selection.Selection
		linesJSON []byte
		status    string
	)
	err := row.Scan(&s.ID, &s.Contact.Name, &s.Contact.Phone, &s.Contact.Email,
		&s.Contact.Address, &linesJSON, &status, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(linesJSON, &s.Lines); err != nil {
		return nil, fmt.Errorf("unmarshaling selection lines: %w", err)
	}
	s.Status = selection.Status(status)
	return &s, nil
}
