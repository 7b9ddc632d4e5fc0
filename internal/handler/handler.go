// Package handler exposes the shopdesk HTTP API. Handlers stay thin:
// they decode requests, delegate to domain services, and map domain
// errors onto transport codes.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/madraim/shopdesk/internal/domain/catalog"
	"github.com/madraim/shopdesk/internal/domain/customer"
	"github.com/madraim/shopdesk/internal/domain/expense"
	"github.com/madraim/shopdesk/internal/domain/order"
	"github.com/madraim/shopdesk/internal/domain/pricing"
	"github.com/madraim/shopdesk/internal/domain/selection"
	"github.com/madraim/shopdesk/internal/rates"
	"github.com/madraim/shopdesk/internal/settings"
	"github.com/madraim/shopdesk/pkg/mutgate"
)

// Handler carries the domain collaborators for every route.
type Handler struct {
	products   catalog.Repository
	customers  customer.Repository
	expenses   expense.Repository
	selections *selection.Service
	orders     *order.Service
	settings   settings.Store
	source     *settings.Source
	rates      *rates.Cache
	gate       *mutgate.Gate

	tracer      trace.Tracer
	conversions metric.Int64Counter
}

// New constructs a Handler with the required collaborators.
func New(
	products catalog.Repository,
	customers customer.Repository,
	expenses expense.Repository,
	selections *selection.Service,
	orders *order.Service,
	store settings.Store,
	source *settings.Source,
	rateCache *rates.Cache,
	gate *mutgate.Gate,
	tracer trace.Tracer,
	conversions metric.Int64Counter,
) *Handler {
	return &Handler{
		products:    products,
		customers:   customers,
		expenses:    expenses,
		selections:  selections,
		orders:      orders,
		settings:    store,
		source:      source,
		rates:       rateCache,
		gate:        gate,
		tracer:      tracer,
		conversions: conversions,
	}
}

// Routes mounts every API route on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})

	r.Route("/selections", func(r chi.Router) {
		r.Post("/", h.submitSelection)
		r.Get("/", h.listSelections)
		r.Get("/pending", h.listPendingSelections)
		r.Post("/{id}/convert", h.convertSelection)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}", h.editOrder)
		r.Delete("/{id}", h.deleteOrder)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.getSettings)
		r.Put("/", h.updateSettings)
		r.Post("/discounts", h.addDiscount)
		r.Delete("/discounts/{target}", h.removeDiscount)
	})

	r.Route("/expenses", func(r chi.Router) {
		r.Get("/", h.listExpenses)
		r.Post("/", h.createExpense)
		r.Delete("/{id}", h.deleteExpense)
	})

	r.Get("/customers", h.listCustomers)
	r.Get("/rate", h.currentRate)

	return r
}

// errorBody is the uniform JSON error shape.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Code: status, Message: msg})
}

// writeDomainError maps domain errors onto transport codes. Unmapped
// errors become opaque 500s: store failures are surfaced as generic
// failures, retries are the caller's manual decision.
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		alreadyProcessed *selection.AlreadyProcessedError
		unknownProduct   *order.UnknownProductError
		orphaned         *order.ProcessedWithoutOrderError
	)

	switch {
	case errors.Is(err, pricing.ErrRateUnavailable):
		writeError(w, http.StatusServiceUnavailable, "exchange rate not loaded yet, try again shortly")
	case errors.Is(err, mutgate.ErrBusy):
		writeError(w, http.StatusConflict, "another operation is in progress")
	case errors.As(err, &alreadyProcessed):
		writeError(w, http.StatusConflict, alreadyProcessed.Error())
	case errors.Is(err, order.ErrDuplicateSelection):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &orphaned):
		// Recoverable inconsistency: report it loudly, never mask it as
		// a plain failure the caller might retry into a double invoice.
		writeError(w, http.StatusBadGateway, orphaned.Error())
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, selection.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrReferencedByOrders):
		writeError(w, http.StatusConflict, err.Error()+"; repeat with force=true to delete anyway")
	case errors.As(err, &unknownProduct):
		writeError(w, http.StatusUnprocessableEntity, unknownProduct.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zctx.From(ctx).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		selection.ErrNameRequired,
		selection.ErrPhoneRequired,
		selection.ErrEmptyLines,
		selection.ErrInvalidQuantity,
		order.ErrEmptyLines,
		order.ErrInvalidQuantity,
		order.ErrNegativeShipping,
		pricing.ErrInvalidPercentage,
		expense.ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
