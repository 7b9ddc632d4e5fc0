// Package selection governs the anonymous customer selection lifecycle:
// a selection is created pending and makes a single, one-way transition
// to processed when staff convert it into an order. That exactly-once
// transition is the whole point of the package — duplicate invoicing is
// the failure it exists to prevent.
package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of a selection.
type Status string

const (
	// StatusPending is the initial state, set at creation.
	StatusPending Status = "pending"
	// StatusProcessed is terminal. There is no reverse transition.
	StatusProcessed Status = "processed"
)

// Sentinel errors for selection validation and lookup.
var (
	ErrNotFound        = errors.New("selection not found")
	ErrNameRequired    = errors.New("contact name required")
	ErrPhoneRequired   = errors.New("contact phone required")
	ErrEmptyLines      = errors.New("at least one line required")
	ErrInvalidQuantity = errors.New("line quantity must be greater than 0")
)

// AlreadyProcessedError indicates an attempted conversion of a selection
// that is no longer pending. The first staff member to convert wins; every
// later attempt gets this error instead of a duplicate order.
type AlreadyProcessedError struct {
	SelectionID string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("selection %s already processed", e.SelectionID)
}

// Contact is the submitter's identity. Phone is required; the rest is
// optional.
type Contact struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// Line is a selection position. It deliberately carries no price: tier
// resolution is deferred to conversion time so price changes between
// submission and invoicing are reflected on the invoice.
type Line struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// Selection is an anonymous customer's proposed cart awaiting staff
// conversion. It is never edited after submission; the only mutation is
// the lifecycle transition.
type Selection struct {
	ID        string
	Contact   Contact
	Lines     []Line
	Status    Status
	CreatedAt time.Time
}

// Repository defines persistence operations for selections.
type Repository interface {
	Create(ctx context.Context, s *Selection) error
	GetByID(ctx context.Context, id string) (*Selection, error)
	// ListPending returns pending selections ordered by creation time
	// descending. Processed selections are excluded from the actionable
	// list but stay retrievable via GetByID and List for audit.
	ListPending(ctx context.Context) ([]Selection, error)
	List(ctx context.Context) ([]Selection, error)
	// MarkProcessed atomically transitions a pending selection to
	// processed and returns its frozen data. It must be implemented as a
	// store-side conditional update: a selection that is already
	// processed yields *AlreadyProcessedError, a missing one ErrNotFound.
	// Client-side checks only reduce the race window; this store-side
	// guard is what guarantees exactly-once conversion.
	MarkProcessed(ctx context.Context, id string) (*Selection, error)
}
