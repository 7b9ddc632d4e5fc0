package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/madraim/shopdesk/internal/domain/order"
	"github.com/madraim/shopdesk/internal/domain/pricing"
)

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Tier      string `json:"tier"`
	Quantity  int    `json:"quantity"`
}

type orderRequest struct {
	CustomerID   string             `json:"customer_id"`
	Lines        []orderLineRequest `json:"lines"`
	ShippingCost string             `json:"shipping_cost"`
	ApplyMargin  *bool              `json:"apply_margin"`
}

type orderLineResponse struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	PointsPerUnit string `json:"points_per_unit"`
	Quantity      int    `json:"quantity"`
	Tier          string `json:"tier"`
	UnitPrice     string `json:"unit_price"`
	LineTotal     string `json:"line_total"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	CustomerID    string              `json:"customer_id"`
	CustomerName  string              `json:"customer_name"`
	Lines         []orderLineResponse `json:"lines"`
	ShippingCost  string              `json:"shipping_cost"`
	TotalPrice    string              `json:"total_price"`
	TotalPoints   string              `json:"total_points"`
	MarginApplied bool                `json:"margin_applied"`
	SelectionID   string              `json:"selection_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (req orderRequest) parse() ([]order.LineSpec, decimal.Decimal, bool, error) {
	specs := make([]order.LineSpec, len(req.Lines))
	for i, l := range req.Lines {
		tier := pricing.Tier(l.Tier)
		if l.Tier == "" {
			tier = pricing.TierNormal
		}
		if !tier.Valid() {
			return nil, decimal.Zero, false, errors.Errorf("unknown tier %q", l.Tier)
		}
		specs[i] = order.LineSpec{ProductID: l.ProductID, Tier: tier, Quantity: l.Quantity}
	}

	shipping := decimal.Zero
	if req.ShippingCost != "" {
		var err error
		if shipping, err = decimal.NewFromString(req.ShippingCost); err != nil {
			return nil, decimal.Zero, false, errors.Wrap(err, "shipping_cost")
		}
	}
	return specs, shipping, req.ApplyMargin == nil || *req.ApplyMargin, nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.orders.List(ctx)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := h.orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*o))
}

// createOrder builds a direct staff invoice for an existing customer,
// skipping the selection flow entirely.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	specs, shipping, applyMargin, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.Create(ctx, order.CreateRequest{
		CustomerID:   req.CustomerID,
		Specs:        specs,
		ShippingCost: shipping,
		ApplyMargin:  applyMargin,
	})
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(*o))
}

// editOrder re-runs assembly against current prices. Identity, creation
// time and the selection link of the stored order survive the rewrite.
func (h *Handler) editOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	specs, shipping, applyMargin, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.Edit(ctx, order.EditRequest{
		OrderID:      chi.URLParam(r, "id"),
		Specs:        specs,
		ShippingCost: shipping,
		ApplyMargin:  applyMargin,
	})
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.orders.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toOrderResponse(o order.Order) orderResponse {
	lines := make([]orderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineResponse{
			ProductID:     l.ProductID,
			Name:          l.Name,
			PointsPerUnit: l.PointsPerUnit.String(),
			Quantity:      l.Quantity,
			Tier:          string(l.Tier),
			UnitPrice:     l.UnitPrice.StringFixed(2),
			LineTotal:     l.Total().StringFixed(2),
		}
	}
	return orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		Lines:         lines,
		ShippingCost:  o.ShippingCost.StringFixed(2),
		TotalPrice:    o.TotalPrice.StringFixed(2),
		TotalPoints:   o.TotalPoints.String(),
		MarginApplied: o.MarginApplied,
		SelectionID:   o.SelectionID,
		CreatedAt:     o.CreatedAt,
	}
}
