package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/madraim/shopdesk/internal/domain/catalog"
	"github.com/madraim/shopdesk/internal/domain/customer"
	"github.com/madraim/shopdesk/internal/domain/pricing"
	"github.com/madraim/shopdesk/internal/domain/selection"
	"github.com/madraim/shopdesk/pkg/mutgate"
)

// SettingsSource yields the pricing snapshot in effect at call time.
type SettingsSource interface {
	Snapshot(ctx context.Context) (pricing.Settings, error)
}

// ConvertRequest is the staff input for converting a pending selection.
type ConvertRequest struct {
	SelectionID  string
	ShippingCost decimal.Decimal
	ApplyMargin  bool
	// Tiers optionally overrides the price tier per product ID; lines
	// without an entry are invoiced at the normal tier.
	Tiers map[string]pricing.Tier
}

// CreateRequest is the staff input for a direct invoice without an
// originating selection.
type CreateRequest struct {
	CustomerID   string
	Specs        []LineSpec
	ShippingCost decimal.Decimal
	ApplyMargin  bool
}

// EditRequest re-runs assembly for an existing order.
type EditRequest struct {
	OrderID      string
	Specs        []LineSpec
	ShippingCost decimal.Decimal
	ApplyMargin  bool
}

// Service orchestrates order creation, selection conversion, and order
// editing. All of its mutations go through the shared gate: the store has
// no transactions, so only one mutation per session may be in flight.
type Service struct {
	products   catalog.Repository
	customers  customer.Repository
	selections selection.Repository
	orders     Repository
	settings   SettingsSource
	assembler  *Assembler
	gate       *mutgate.Gate
	lg         *zap.Logger
}

// NewService creates an order Service with the required collaborators.
func NewService(
	products catalog.Repository,
	customers customer.Repository,
	selections selection.Repository,
	orders Repository,
	settings SettingsSource,
	gate *mutgate.Gate,
	lg *zap.Logger,
) *Service {
	return &Service{
		products:   products,
		customers:  customers,
		selections: selections,
		orders:     orders,
		settings:   settings,
		assembler:  NewAssembler(),
		gate:       gate,
		lg:         lg,
	}
}

// ConvertSelection performs the exactly-once selection → order transition.
//
// The rate check runs first: with no exchange rate there is nothing to
// invoice, and the selection must stay pending. Then the store-side
// conditional update marks the selection processed — the step that makes
// a second convert fail with a conflict instead of producing a duplicate
// invoice. Order assembly and persistence follow; if the order write
// fails after the mark, the recoverable processed-without-order state is
// surfaced as a typed error rather than silently losing the sale.
func (s *Service) ConvertSelection(ctx context.Context, req ConvertRequest) (*Order, error) {
	var out *Order
	err := s.gate.Do(func() error {
		snap, err := s.settings.Snapshot(ctx)
		if err != nil {
			return err
		}
		if !snap.RateKnown {
			return pricing.ErrRateUnavailable
		}

		sel, err := s.selections.MarkProcessed(ctx, req.SelectionID)
		if err != nil {
			return err
		}

		o, err := s.buildFromSelection(ctx, sel, req, snap)
		if err != nil {
			// Past the point of no return: the selection is already
			// processed. Converting it again would double-invoice, so the
			// orphaned state is reported instead of retried.
			s.lg.Error("selection processed but order not created",
				zap.String("selection_id", sel.ID), zap.Error(err))
			return &ProcessedWithoutOrderError{SelectionID: sel.ID, Err: err}
		}
		out = o
		return nil
	})
	return out, err
}

func (s *Service) buildFromSelection(ctx context.Context, sel *selection.Selection, req ConvertRequest, snap pricing.Settings) (*Order, error) {
	specs := make([]LineSpec, len(sel.Lines))
	ids := make([]string, len(sel.Lines))
	for i, l := range sel.Lines {
		specs[i] = LineSpec{
			ProductID: l.ProductID,
			Tier:      req.Tiers[l.ProductID],
			Quantity:  l.Quantity,
		}
		ids[i] = l.ProductID
	}

	products, err := s.fetchProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	cust, err := s.resolveCustomer(ctx, sel.Contact)
	if err != nil {
		return nil, err
	}

	o, err := s.assembler.Assemble(AssembleInput{
		Specs:        specs,
		Products:     products,
		Customer:     *cust,
		ShippingCost: req.ShippingCost,
		ApplyMargin:  req.ApplyMargin,
		Settings:     snap,
		SelectionID:  sel.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Create builds and persists a direct staff invoice for an existing
// customer, without an originating selection.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	var out *Order
	err := s.gate.Do(func() error {
		snap, err := s.settings.Snapshot(ctx)
		if err != nil {
			return err
		}
		if !snap.RateKnown {
			return pricing.ErrRateUnavailable
		}

		cust, err := s.customers.GetByID(ctx, req.CustomerID)
		if err != nil {
			return errors.Wrap(err, "get customer")
		}

		products, err := s.fetchProducts(ctx, specIDs(req.Specs))
		if err != nil {
			return err
		}

		o, err := s.assembler.Assemble(AssembleInput{
			Specs:        req.Specs,
			Products:     products,
			Customer:     *cust,
			ShippingCost: req.ShippingCost,
			ApplyMargin:  req.ApplyMargin,
			Settings:     snap,
		})
		if err != nil {
			return err
		}

		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		out = o
		return nil
	})
	return out, err
}

// Edit re-invokes the assembler against an existing order and overwrites
// its lines and totals. ID, creation time and selection link survive.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*Order, error) {
	var out *Order
	err := s.gate.Do(func() error {
		snap, err := s.settings.Snapshot(ctx)
		if err != nil {
			return err
		}
		if !snap.RateKnown {
			return pricing.ErrRateUnavailable
		}

		existing, err := s.orders.GetByID(ctx, req.OrderID)
		if err != nil {
			return err
		}

		cust, err := s.customers.GetByID(ctx, existing.CustomerID)
		if err != nil {
			return errors.Wrap(err, "get customer")
		}

		products, err := s.fetchProducts(ctx, specIDs(req.Specs))
		if err != nil {
			return err
		}

		o, err := s.assembler.Reassemble(existing, AssembleInput{
			Specs:        req.Specs,
			Products:     products,
			Customer:     *cust,
			ShippingCost: req.ShippingCost,
			ApplyMargin:  req.ApplyMargin,
			Settings:     snap,
		})
		if err != nil {
			return err
		}

		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		out = o
		return nil
	})
	return out, err
}

// List returns every stored order.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// Get returns a single order by ID.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.gate.Do(func() error {
		return s.orders.Delete(ctx, id)
	})
}

// resolveCustomer finds the customer record matching the selection's
// contact phone, creating one when the submitter is new.
func (s *Service) resolveCustomer(ctx context.Context, contact selection.Contact) (*customer.Customer, error) {
	existing, err := s.customers.GetByPhone(ctx, contact.Phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, customer.ErrNotFound) {
		return nil, errors.Wrap(err, "lookup customer by phone")
	}

	c := &customer.Customer{
		ID:        uuid.New().String(),
		Name:      contact.Name,
		Phone:     contact.Phone,
		Email:     contact.Email,
		Address:   contact.Address,
		CreatedAt: time.Now(),
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create customer")
	}
	return c, nil
}

func (s *Service) fetchProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	products := make(map[string]catalog.Product, len(ids))
	for _, id := range ids {
		if _, ok := products[id]; ok {
			continue
		}
		p, err := s.products.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, &UnknownProductError{ProductID: id}
			}
			return nil, errors.Wrapf(err, "get product %s", id)
		}
		products[id] = *p
	}
	return products, nil
}

func specIDs(specs []LineSpec) []string {
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ProductID
	}
	return ids
}
