package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/ecommerce-orders/internal/domain/catalog"
	"github.com/xenking/ecommerce-orders/internal/domain/order"
	"github.com/xenking/ecommerce-orders/internal/wire"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// OrderService is the order orchestration the handler delegates to.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	Update(ctx context.Context, id int64, req order.UpdateRequest) (*order.Order, error)
	Delete(ctx context.Context, id int64) error
	Details(ctx context.Context, id int64) (*order.Details, error)
	List(ctx context.Context, page order.Page) ([]order.Order, error)
}

// OrderHandler serves /orders.
type OrderHandler struct {
	orders OrderService
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Mount registers the order routes on r.
func (h *OrderHandler) Mount(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// List handles GET /orders?limit=&offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.List(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrders(e, orders) })
}

// Get handles GET /orders/{id}. The order comes back with fresh product
// summaries; products that have left the catalog yield 422.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}

	details, err := h.orders.Details(r.Context(), id)
	if err != nil {
		var ipr *order.InvalidProductReferenceError
		if errors.As(err, &ipr) {
			writeError(w, http.StatusUnprocessableEntity, wire.Error{
				Message: "order references products that no longer exist",
				Missing: ipr.Missing,
			})
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrderDetails(e, details) })
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody(w, r, wire.DecodeCreateOrder)
	if !ok {
		return
	}

	o, err := h.orders.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/orders/"+strconv.FormatInt(o.ID, 10))
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
}

// Update handles PUT /orders/{id}.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}
	req, ok := decodeBody(w, r, wire.DecodeUpdateOrder)
	if !ok {
		return
	}

	if _, err := h.orders.Update(r.Context(), id, req); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /orders/{id}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.orders.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps an orchestration error to its response.
func (h *OrderHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *order.ValidationError
		ipr *order.InvalidProductReferenceError
		tam *order.TotalAmountMismatchError
		pe  *catalog.ProtocolError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, wire.Error{Message: ve.Error(), Field: ve.Field})
	case errors.As(err, &ipr):
		writeError(w, http.StatusBadRequest, wire.Error{
			Message: "invalid product reference",
			Missing: ipr.Missing,
		})
	case errors.As(err, &tam):
		writeError(w, http.StatusBadRequest, wire.Error{
			Message:    "total amount mismatch",
			Provided:   &tam.Provided,
			Calculated: &tam.Calculated,
		})
	case errors.Is(err, order.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrConflict):
		writeMessage(w, http.StatusConflict, "order was modified concurrently, reload and retry")
	case errors.Is(err, catalog.ErrUnavailable):
		writeMessage(w, http.StatusServiceUnavailable, "product catalog unavailable")
	case errors.As(err, &pe):
		writeMessage(w, http.StatusBadGateway, "unexpected response from product catalog")
	default:
		writeInternal(w, r, err)
	}
}

func parsePage(w http.ResponseWriter, r *http.Request) (order.Page, bool) {
	page := order.Page{Limit: defaultPageLimit}
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxPageLimit {
			writeError(w, http.StatusBadRequest, wire.Error{
				Message: "limit must be between 1 and " + strconv.Itoa(maxPageLimit),
				Field:   "limit",
			})
			return order.Page{}, false
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, wire.Error{Message: "offset must not be negative", Field: "offset"})
			return order.Page{}, false
		}
		page.Offset = n
	}
	return page, true
}
