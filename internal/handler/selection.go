package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/madraim/shopdesk/internal/domain/order"
	"github.com/madraim/shopdesk/internal/domain/pricing"
	"github.com/madraim/shopdesk/internal/domain/selection"
)

type selectionLineRequest struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type submitSelectionRequest struct {
	Name    string                 `json:"name"`
	Phone   string                 `json:"phone"`
	Email   string                 `json:"email"`
	Address string                 `json:"address"`
	Lines   []selectionLineRequest `json:"lines"`
}

type selectionResponse struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Phone     string                 `json:"phone"`
	Email     string                 `json:"email,omitempty"`
	Address   string                 `json:"address,omitempty"`
	Lines     []selectionLineRequest `json:"lines"`
	Status    selection.Status       `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
}

// submitSelection is the single anonymous endpoint: customers post their
// proposed cart and contact details, nothing is priced or invoiced yet.
func (h *Handler) submitSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitSelectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lines := make([]selection.Line, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = selection.Line{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity}
	}
	contact := selection.Contact{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	}

	sel, err := h.selections.Submit(ctx, contact, lines)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSelectionResponse(*sel))
}

func (h *Handler) listSelections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sels, err := h.selections.List(ctx)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSelectionResponses(sels))
}

func (h *Handler) listPendingSelections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sels, err := h.selections.ListPending(ctx)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSelectionResponses(sels))
}

type convertSelectionRequest struct {
	ShippingCost string            `json:"shipping_cost"`
	ApplyMargin  *bool             `json:"apply_margin"`
	Tiers        map[string]string `json:"tiers"`
}

// convertSelection runs the exactly-once selection → order transition.
// Outcome is counted per status so conversion conflicts show up on the
// dashboard, not just in logs.
func (h *Handler) convertSelection(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConvertSelection")
	defer span.End()
	id := chi.URLParam(r, "id")

	var req convertSelectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	shipping := decimal.Zero
	if req.ShippingCost != "" {
		var err error
		if shipping, err = decimal.NewFromString(req.ShippingCost); err != nil {
			writeError(w, http.StatusBadRequest, "shipping_cost: "+err.Error())
			return
		}
	}
	tiers := make(map[string]pricing.Tier, len(req.Tiers))
	for pid, t := range req.Tiers {
		tier := pricing.Tier(t)
		if !tier.Valid() {
			writeError(w, http.StatusBadRequest, "unknown tier "+t)
			return
		}
		tiers[pid] = tier
	}

	o, err := h.orders.ConvertSelection(ctx, order.ConvertRequest{
		SelectionID:  id,
		ShippingCost: shipping,
		ApplyMargin:  req.ApplyMargin == nil || *req.ApplyMargin,
		Tiers:        tiers,
	})
	if err != nil {
		h.conversions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		writeDomainError(ctx, w, err)
		return
	}
	h.conversions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	writeJSON(w, http.StatusCreated, toOrderResponse(*o))
}

func toSelectionResponse(s selection.Selection) selectionResponse {
	lines := make([]selectionLineRequest, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = selectionLineRequest{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity}
	}
	return selectionResponse{
		ID:        s.ID,
		Name:      s.Contact.Name,
		Phone:     s.Contact.Phone,
		Email:     s.Contact.Email,
		Address:   s.Contact.Address,
		Lines:     lines,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
	}
}

func toSelectionResponses(sels []selection.Selection) []selectionResponse {
	out := make([]selectionResponse, len(sels))
	for i, s := range sels {
		out[i] = toSelectionResponse(s)
	}
	return out
}
