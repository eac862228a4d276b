package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/ecommerce-orders/internal/domain/catalog"
	"github.com/xenking/ecommerce-orders/internal/domain/order"
	"github.com/xenking/ecommerce-orders/internal/domain/product"
)

// --- Mock implementations ---

type mockOrderService struct {
	createReq order.CreateRequest
	updateID  int64
	updateReq order.UpdateRequest
	page      order.Page

	order   *order.Order
	details *order.Details
	orders  []order.Order
	err     error
}

func (m *mockOrderService) Create(_ context.Context, req order.CreateRequest) (*order.Order, error) {
	m.createReq = req
	return m.order, m.err
}

func (m *mockOrderService) Update(_ context.Context, id int64, req order.UpdateRequest) (*order.Order, error) {
	m.updateID, m.updateReq = id, req
	return m.order, m.err
}

func (m *mockOrderService) Delete(_ context.Context, _ int64) error {
	return m.err
}

func (m *mockOrderService) Details(_ context.Context, _ int64) (*order.Details, error) {
	return m.details, m.err
}

func (m *mockOrderService) List(_ context.Context, page order.Page) ([]order.Order, error) {
	m.page = page
	return m.orders, m.err
}

type mockProductRepo struct {
	byID    map[int64]product.Snapshot
	lastIDs []int64
	err     error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]product.Snapshot, 0, len(m.byID))
	for id := int64(1); id <= int64(len(m.byID)); id++ {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Snapshot, error) {
	m.lastIDs = ids
	if m.err != nil {
		return nil, m.err
	}
	var out []product.Snapshot
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- Helpers ---

var testTime = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func sampleOrder() *order.Order {
	return &order.Order{
		ID:           7,
		CustomerName: "Alice",
		Address:      "1 Main St",
		ProductIDs:   []int64{1, 2},
		TotalAmount:  decimal.RequireFromString("25.00"),
		OrderDate:    testTime,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
}

func orderRouter(svc OrderService) http.Handler {
	r := chi.NewRouter()
	NewOrderHandler(svc).Mount(r)
	return r
}

func productRouter(repo product.Repository, maxBatch int) http.Handler {
	r := chi.NewRouter()
	NewProductHandler(ProductHandlerConfig{MaxBatch: maxBatch}, repo).Mount(r)
	return r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- Tests ---

func TestCreateOrder_Created(t *testing.T) {
	svc := &mockOrderService{order: sampleOrder()}

	w := do(orderRouter(svc), http.MethodPost, "/orders",
		`{"customerName":"Alice","address":"1 Main St","productIds":[2,1,2],"orderDate":"2024-03-15T10:30:00Z"}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/orders/7", w.Header().Get("Location"))
	assert.Equal(t, []int64{2, 1, 2}, svc.createReq.ProductIDs)
	assert.JSONEq(t, `{
		"id": 7,
		"customerName": "Alice",
		"address": "1 Main St",
		"productIds": [1, 2],
		"totalAmount": 25.00,
		"orderDate": "2024-03-15T10:30:00Z",
		"createdAt": "2024-03-15T10:30:00Z",
		"updatedAt": "2024-03-15T10:30:00Z"
	}`, w.Body.String())
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "invalid product reference",
			err:    &order.InvalidProductReferenceError{Missing: []int64{7, 8}},
			status: http.StatusBadRequest,
			body:   `{"error":"invalid product reference","missing":[7,8]}`,
		},
		{
			name:   "validation",
			err:    &order.ValidationError{Field: "address", Reason: "must not be empty"},
			status: http.StatusBadRequest,
			body:   `{"error":"address must not be empty","field":"address"}`,
		},
		{
			name:   "catalog unavailable",
			err:    errors.Wrap(&catalog.UnavailableError{Err: errors.New("refused")}, "price products"),
			status: http.StatusServiceUnavailable,
			body:   `{"error":"product catalog unavailable"}`,
		},
		{
			name:   "catalog protocol",
			err:    errors.Wrap(&catalog.ProtocolError{Reason: "bad json"}, "price products"),
			status: http.StatusBadGateway,
			body:   `{"error":"unexpected response from product catalog"}`,
		},
		{
			name:   "persistence",
			err:    &order.PersistenceError{Op: "insert", Err: errors.New("disk full")},
			status: http.StatusInternalServerError,
			body:   `{"error":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{err: tt.err}
			w := do(orderRouter(svc), http.MethodPost, "/orders",
				`{"customerName":"Alice","address":"x","productIds":[1],"orderDate":"2024-03-15"}`)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestCreateOrder_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: `{"error":"request body is required"}`},
		{name: "not json", body: "{", want: `{"error":"invalid request body"}`},
		{name: "wrong type", body: `{"productIds":"1,2"}`, want: `{"error":"invalid request body","field":"productIds"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{}
			w := do(orderRouter(svc), http.MethodPost, "/orders", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestUpdateOrder(t *testing.T) {
	svc := &mockOrderService{order: sampleOrder()}

	w := do(orderRouter(svc), http.MethodPut, "/orders/7",
		`{"customerName":"Bob","address":"2 Side St","productIds":[1,2],"totalAmount":"25.00"}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, int64(7), svc.updateID)
	assert.True(t, decimal.RequireFromString("25").Equal(svc.updateReq.TotalAmount))
}

func TestUpdateOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name: "mismatch",
			err: &order.TotalAmountMismatchError{
				Provided:   decimal.RequireFromString("12.37"),
				Calculated: decimal.RequireFromString("12.35"),
			},
			status: http.StatusBadRequest,
			body:   `{"error":"total amount mismatch","provided":12.37,"calculated":12.35}`,
		},
		{name: "not found", err: order.ErrNotFound, status: http.StatusNotFound, body: `{"error":"order not found"}`},
		{
			name:   "conflict",
			err:    order.ErrConflict,
			status: http.StatusConflict,
			body:   `{"error":"order was modified concurrently, reload and retry"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{err: tt.err}
			w := do(orderRouter(svc), http.MethodPut, "/orders/7",
				`{"customerName":"Bob","address":"x","productIds":[1],"totalAmount":1}`)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestOrderRoutes_InvalidID(t *testing.T) {
	h := orderRouter(&mockOrderService{})
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := do(h, method, "/orders/abc", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, method)
	}
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/orders/0", "").Code)
}

func TestGetOrder_Details(t *testing.T) {
	svc := &mockOrderService{details: &order.Details{
		Order: sampleOrder(),
		Products: []product.Snapshot{
			{ID: 1, Name: "Keyboard", Description: "Tenkeyless", Price: decimal.RequireFromString("19.99")},
			{ID: 2, Name: "Mat", Description: "Felt", Price: decimal.RequireFromString("5.01")},
		},
	}}

	w := do(orderRouter(svc), http.MethodGet, "/orders/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"products":[{"id":1,"name":"Keyboard","description":"Tenkeyless","price":19.99}`)
}

func TestGetOrder_ProductsVanished(t *testing.T) {
	svc := &mockOrderService{err: &order.InvalidProductReferenceError{Missing: []int64{2}}}

	w := do(orderRouter(svc), http.MethodGet, "/orders/7", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"order references products that no longer exist","missing":[2]}`, w.Body.String())
}

func TestGetOrder_NotFound(t *testing.T) {
	w := do(orderRouter(&mockOrderService{err: order.ErrNotFound}), http.MethodGet, "/orders/9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteOrder(t *testing.T) {
	w := do(orderRouter(&mockOrderService{}), http.MethodDelete, "/orders/7", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(orderRouter(&mockOrderService{err: order.ErrNotFound}), http.MethodDelete, "/orders/7", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrders_Pagination(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		page   order.Page
	}{
		{name: "defaults", query: "", status: http.StatusOK, page: order.Page{Limit: 50}},
		{name: "explicit", query: "?limit=10&offset=20", status: http.StatusOK, page: order.Page{Limit: 10, Offset: 20}},
		{name: "limit too large", query: "?limit=201", status: http.StatusBadRequest},
		{name: "limit zero", query: "?limit=0", status: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-1", status: http.StatusBadRequest},
		{name: "garbage", query: "?limit=ten", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{orders: []order.Order{*sampleOrder()}}
			w := do(orderRouter(svc), http.MethodGet, "/orders"+tt.query, "")
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.page, svc.page)
				assert.True(t, strings.HasPrefix(w.Body.String(), `[{"id":7,`))
			}
		})
	}
}

func TestListOrders_Empty(t *testing.T) {
	w := do(orderRouter(&mockOrderService{}), http.MethodGet, "/orders", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func newProductRepo() *mockProductRepo {
	return &mockProductRepo{byID: map[int64]product.Snapshot{
		1: {ID: 1, Name: "Keyboard", Description: "Tenkeyless", Price: decimal.RequireFromString("19.99")},
		2: {ID: 2, Name: "Mat", Description: "Felt", Price: decimal.RequireFromString("5")},
		3: {ID: 3, Name: "Tie", Description: "Velcro", Price: decimal.RequireFromString("0.01")},
	}}
}

func TestProducts_Get(t *testing.T) {
	h := productRouter(newProductRepo(), 10)

	w := do(h, http.MethodGet, "/products/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":2,"name":"Mat","description":"Felt","price":5.00}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/products/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/products/x", "").Code)
}

func TestProducts_List(t *testing.T) {
	w := do(productRouter(newProductRepo(), 10), http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), `[{"id":1,`))
}

func TestProducts_Batch(t *testing.T) {
	repo := newProductRepo()
	h := productRouter(repo, 3)

	w := do(h, http.MethodGet, "/products/batch?ids=3,%201,99,3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{3, 1, 99}, repo.lastIDs)
	assert.JSONEq(t, `[
		{"id":3,"name":"Tie","description":"Velcro","price":0.01},
		{"id":1,"name":"Keyboard","description":"Tenkeyless","price":19.99}
	]`, w.Body.String(), "absent ids are omitted")

	w = do(h, http.MethodGet, "/products/batch?ids=98,99", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(h, http.MethodGet, "/products/batch", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestProducts_BatchRejects(t *testing.T) {
	h := productRouter(newProductRepo(), 3)

	tests := []struct {
		name  string
		query string
	}{
		{name: "non numeric", query: "ids=1,a"},
		{name: "negative", query: "ids=-1"},
		{name: "empty element", query: "ids=1,,2"},
		{name: "too many", query: "ids=1,2,3,4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodGet, "/products/batch?"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"field":"ids"`)
		})
	}
}

func TestProducts_RepositoryFailure(t *testing.T) {
	repo := newProductRepo()
	repo.err = errors.New("connection reset")

	w := do(productRouter(repo, 3), http.MethodGet, "/products/batch?ids=1,2", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}
