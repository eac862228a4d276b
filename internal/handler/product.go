package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/ecommerce-orders/internal/domain/product"
	"github.com/xenking/ecommerce-orders/internal/wire"
)

// ProductHandlerConfig holds non-dependency settings for ProductHandler.
type ProductHandlerConfig struct {
	// MaxBatch caps the number of distinct ids in one batch lookup.
	MaxBatch int
}

// ProductHandler serves the read-only catalog contract under /products.
type ProductHandler struct {
	products product.Repository
	maxBatch int
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(cfg ProductHandlerConfig, products product.Repository) *ProductHandler {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 100
	}
	return &ProductHandler{products: products, maxBatch: cfg.MaxBatch}
}

// Mount registers the product routes on r.
func (h *ProductHandler) Mount(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/batch", h.Batch)
		r.Get("/{id}", h.Get)
	})
}

// List handles GET /products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeProducts(e, products) })
}

// Get handles GET /products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeProduct(e, *p) })
}

// Batch handles GET /products/batch?ids=1,2,3. Unknown ids are omitted from
// the response rather than reported.
func (h *ProductHandler) Batch(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		writeError(w, http.StatusBadRequest, wire.Error{Message: err.Error(), Field: "ids"})
		return
	}
	if len(ids) > h.maxBatch {
		writeError(w, http.StatusBadRequest, wire.Error{
			Message: "too many ids, at most " + strconv.Itoa(h.maxBatch) + " per request",
			Field:   "ids",
		})
		return
	}

	products, err := h.products.GetByIDs(r.Context(), ids)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if products == nil {
		products = []product.Snapshot{}
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeProducts(e, products) })
}

// parseIDList parses "1,2,3" into distinct positive ids. An empty string
// yields no ids.
func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.Errorf("invalid product id %q", part)
		}
		ids = append(ids, id)
	}
	return product.Dedup(ids), nil
}
