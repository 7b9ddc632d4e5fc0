package selection

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service implements the submission side of the selection lifecycle.
// Conversion to an order is orchestrated by the order service, which owns
// the second half of the two-phase protocol.
type Service struct {
	selections Repository
	now        func() time.Time
}

// NewService creates a selection Service backed by the given repository.
func NewService(selections Repository) *Service {
	return &Service{selections: selections, now: time.Now}
}

// Submit validates and persists a new pending selection. No price
// resolution happens here: lines reference products by ID only, and
// pricing is deferred until staff convert the selection.
func (s *Service) Submit(ctx context.Context, contact Contact, lines []Line) (*Selection, error) {
	if contact.Name == "" {
		return nil, ErrNameRequired
	}
	if contact.Phone == "" {
		return nil, ErrPhoneRequired
	}
	if len(lines) == 0 {
		return nil, ErrEmptyLines
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	sel := &Selection{
		ID:        uuid.New().String(),
		Contact:   contact,
		Lines:     lines,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}
	if err := s.selections.Create(ctx, sel); err != nil {
		return nil, errors.Wrap(err, "create selection")
	}
	return sel, nil
}

// ListPending returns the actionable pending list, newest first.
func (s *Service) ListPending(ctx context.Context) ([]Selection, error) {
	return s.selections.ListPending(ctx)
}

// List returns every selection, processed ones included, for audit.
func (s *Service) List(ctx context.Context) ([]Selection, error) {
	return s.selections.List(ctx)
}

// Get returns a single selection by ID.
func (s *Service) Get(ctx context.Context, id string) (*Selection, error) {
	return s.selections.GetByID(ctx, id)
}
