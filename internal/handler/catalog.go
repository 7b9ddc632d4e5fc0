package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/madraim/shopdesk/internal/domain/catalog"
	"github.com/madraim/shopdesk/internal/domain/pricing"
)

type productPrices struct {
	Normal             string `json:"normal"`
	Member             string `json:"member"`
	Discounted         bool   `json:"discounted,omitempty"`
	DiscountPercentage string `json:"discount_percentage,omitempty"`
	OriginalNormal     string `json:"original_normal,omitempty"`
	OriginalMember     string `json:"original_member,omitempty"`
}

type productResponse struct {
	ID            string         `json:"id"`
	CategoryID    string         `json:"category_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	PointsPerUnit string         `json:"points_per_unit"`
	Available     bool           `json:"available"`
	CreatedAt     time.Time      `json:"created_at"`
	Prices        *productPrices `json:"prices,omitempty"`
}

type productListResponse struct {
	Products        []productResponse `json:"products"`
	PricesAvailable bool              `json:"prices_available"`
}

// listProducts returns the catalog with resolved local prices. When the
// exchange rate is not loaded yet the listing still succeeds, with
// prices_available=false and no price fields, so the staff UI can render
// the catalog in a loading state.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.products.List(ctx)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	snap, err := h.source.Snapshot(ctx)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	resp := productListResponse{
		Products:        make([]productResponse, 0, len(products)),
		PricesAvailable: snap.RateKnown,
	}
	for _, p := range products {
		item := toProductResponse(p)
		if snap.RateKnown {
			rp, err := pricing.Resolve(p, snap, true)
			if err != nil {
				writeDomainError(ctx, w, err)
				return
			}
			item.Prices = toPrices(rp)
		}
		resp.Products = append(resp.Products, item)
	}
	if !snap.RateKnown {
		zctx.From(ctx).Debug("catalog served without prices", zap.Int("products", len(products)))
	}
	writeJSON(w, http.StatusOK, resp)
}

type productRequest struct {
	CategoryID      string `json:"category_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	BaseNormalPrice string `json:"base_normal_price"`
	BaseMemberPrice string `json:"base_member_price"`
	PointsPerUnit   string `json:"points_per_unit"`
	Available       *bool  `json:"available"`
}

func (req productRequest) apply(p *catalog.Product) error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	normal, err := decimal.NewFromString(req.BaseNormalPrice)
	if err != nil {
		return errors.Wrap(err, "base_normal_price")
	}
	member, err := decimal.NewFromString(req.BaseMemberPrice)
	if err != nil {
		return errors.Wrap(err, "base_member_price")
	}
	points := decimal.Zero
	if req.PointsPerUnit != "" {
		if points, err = decimal.NewFromString(req.PointsPerUnit); err != nil {
			return errors.Wrap(err, "points_per_unit")
		}
	}
	if normal.IsNegative() || member.IsNegative() {
		return errors.New("base prices must not be negative")
	}

	p.CategoryID = req.CategoryID
	p.Name = req.Name
	p.Description = req.Description
	p.BaseNormalPrice = normal
	p.BaseMemberPrice = member
	p.PointsPerUnit = points
	p.Available = req.Available == nil || *req.Available
	return nil
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := catalog.Product{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := req.apply(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.products.Create(ctx, &p); err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	existing, err := h.products.GetByID(ctx, id)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.apply(existing); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.products.Update(ctx, existing); err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*existing))
}

// deleteProduct hard-deletes a catalog entry. Products referenced by
// orders are refused with 409 unless force=true is passed, matching the
// staff UI's "delete anyway" confirmation.
func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	force := r.URL.Query().Get("force") == "true"

	if err := h.products.Delete(ctx, id, force); err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toProductResponse(p catalog.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Description:   p.Description,
		PointsPerUnit: p.PointsPerUnit.String(),
		Available:     p.Available,
		CreatedAt:     p.CreatedAt,
	}
}

func toPrices(rp pricing.ResolvedPrice) *productPrices {
	out := &productPrices{
		Normal: rp.Final.StringFixed(2),
		Member: rp.FinalMember.StringFixed(2),
	}
	if rp.Discounted {
		out.Discounted = true
		out.DiscountPercentage = rp.DiscountPercentage.String()
		out.OriginalNormal = rp.Original.StringFixed(2)
		out.OriginalMember = rp.OriginalMember.StringFixed(2)
	}
	return out
}
