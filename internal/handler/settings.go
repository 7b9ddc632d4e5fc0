package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/madraim/shopdesk/internal/domain/pricing"
	"github.com/madraim/shopdesk/internal/settings"
)

type discountPayload struct {
	Target     string `json:"target"`
	Percentage string `json:"percentage"`
}

type settingsResponse struct {
	LocalMargin string            `json:"local_margin"`
	Discounts   []discountPayload `json:"discounts"`
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stored, err := h.settings.Get(ctx)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(stored))
}

type updateSettingsRequest struct {
	LocalMargin string `json:"local_margin"`
}

// updateSettings changes the staff-editable local margin. Discounts have
// their own add/remove endpoints because their order is significant.
func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateSettingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	margin, err := decimal.NewFromString(req.LocalMargin)
	if err != nil {
		writeError(w, http.StatusBadRequest, "local_margin: "+err.Error())
		return
	}

	err = h.gate.Do(func() error {
		stored, err := h.settings.Get(ctx)
		if err != nil {
			return err
		}
		stored.LocalMargin = margin
		return h.settings.Update(ctx, stored)
	})
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	stored, err := h.settings.Get(ctx)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(stored))
}

// addDiscount appends a discount to the ordered list. Appending never
// shadows an existing discount: lookup is first match, so earlier entries
// keep winning for their targets.
func (h *Handler) addDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req discountPayload
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	pct, err := decimal.NewFromString(req.Percentage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "percentage: "+err.Error())
		return
	}

	err = h.gate.Do(func() error {
		stored, err := h.settings.Get(ctx)
		if err != nil {
			return err
		}
		updated, err := pricing.AddDiscount(stored.Discounts, req.Target, pct)
		if err != nil {
			return err
		}
		stored.Discounts = updated
		return h.settings.Update(ctx, stored)
	})
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	stored, err := h.settings.Get(ctx)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettingsResponse(stored))
}

// removeDiscount drops the first discount matching the target. Removal by
// target, not index: the UI shows discounts keyed by what they apply to.
func (h *Handler) removeDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target := chi.URLParam(r, "target")

	var removed bool
	err := h.gate.Do(func() error {
		stored, err := h.settings.Get(ctx)
		if err != nil {
			return err
		}
		stored.Discounts, removed = pricing.RemoveDiscount(stored.Discounts, target)
		if !removed {
			return nil
		}
		return h.settings.Update(ctx, stored)
	})
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no discount for target "+target)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// currentRate exposes the cached exchange rate for the staff dashboard.
func (h *Handler) currentRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.rates.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "exchange rate not loaded yet")
		return
	}
	fetchedAt, _ := h.rates.FetchedAt()
	writeJSON(w, http.StatusOK, map[string]any{
		"rate":       rate.String(),
		"fetched_at": fetchedAt,
	})
}

func toSettingsResponse(s settings.Stored) settingsResponse {
	discounts := make([]discountPayload, len(s.Discounts))
	for i, d := range s.Discounts {
		discounts[i] = discountPayload{Target: d.Target, Percentage: d.Percentage.String()}
	}
	return settingsResponse{
		LocalMargin: s.LocalMargin.String(),
		Discounts:   discounts,
	}
}
