package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-realtime-market/internal/market"
)

type fakePlacer struct {
	placed   *market.PlacedOrder
	err      error
	gotBuyer string
	gotItems []market.ItemInput
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, buyerID string, items []market.ItemInput) (*market.PlacedOrder, error) {
	f.gotBuyer = buyerID
	f.gotItems = items
	if f.err != nil {
		return nil, f.err
	}
	return f.placed, nil
}

type fakeOrderStore struct {
	orders    map[string]market.Order
	updateErr error
	updated   map[string]market.Status
}

func (f *fakeOrderStore) Get(ctx context.Context, orderID string) (market.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return market.Order{}, &market.NotFoundError{Kind: "order", ID: orderID}
	}
	return o, nil
}

func (f *fakeOrderStore) ByBuyer(ctx context.Context, buyerID string) ([]market.Order, error) {
	var out []market.Order
	for _, o := range f.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) BySeller(ctx context.Context, sellerID string) ([]market.Order, error) {
	return nil, nil
}

func (f *fakeOrderStore) UpdateStatus(ctx context.Context, orderID string, next market.Status) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.orders[orderID]; !ok {
		return &market.NotFoundError{Kind: "order", ID: orderID}
	}
	if f.updated == nil {
		f.updated = map[string]market.Status{}
	}
	f.updated[orderID] = next
	return nil
}

func newOrdersRouter(h *OrdersHandler) http.Handler {
	r := NewRouter()
	h.Register(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body, userID, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPlaceOrderEndpoint_Created(t *testing.T) {
	placer := &fakePlacer{placed: &market.PlacedOrder{
		OrderID:     "o-1",
		TotalAmount: decimal.RequireFromString("29.97"),
	}}
	h := &OrdersHandler{Placer: placer, Orders: &fakeOrderStore{}}
	r := newOrdersRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/orders",
		`{"products":[{"product_id":"p1","quantity":3}]}`, "buyer-1", "buyer")

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "o-1", body["order_id"])
	assert.Equal(t, "29.97", body["total_amount"])

	assert.Equal(t, "buyer-1", placer.gotBuyer)
	require.Len(t, placer.gotItems, 1)
	assert.Equal(t, "p1", placer.gotItems[0].ProductID)
	assert.Equal(t, 3, placer.gotItems[0].Quantity)
}

func TestPlaceOrderEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"validation", &market.ValidationError{Msg: "products list is required"}, http.StatusBadRequest},
		{"not found", &market.NotFoundError{Kind: "product", ID: "ghost"}, http.StatusNotFound},
		{"insufficient stock", &market.InsufficientStockError{ProductID: "p1", Requested: 5, Available: 3}, http.StatusConflict},
		{"persistence", &market.PersistenceError{Op: "insert order", Err: errors.New("down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &OrdersHandler{Placer: &fakePlacer{err: tt.err}, Orders: &fakeOrderStore{}}
			r := newOrdersRouter(h)

			rec := doJSON(t, r, http.MethodPost, "/orders",
				`{"products":[{"product_id":"p1","quantity":5}]}`, "buyer-1", "buyer")
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestPlaceOrderEndpoint_ConflictBodyCarriesRemediation(t *testing.T) {
	h := &OrdersHandler{
		Placer: &fakePlacer{err: &market.InsufficientStockError{ProductID: "p1", Requested: 5, Available: 3}},
		Orders: &fakeOrderStore{},
	}
	r := newOrdersRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/orders",
		`{"products":[{"product_id":"p1","quantity":5}]}`, "buyer-1", "buyer")

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "p1", body["product_id"])
	assert.Equal(t, float64(3), body["available_stock"])
	assert.NotEmpty(t, body["error"])
}

func TestPlaceOrderEndpoint_AuthGates(t *testing.T) {
	h := &OrdersHandler{Placer: &fakePlacer{}, Orders: &fakeOrderStore{}}
	r := newOrdersRouter(h)

	body := `{"products":[{"product_id":"p1","quantity":1}]}`

	rec := doJSON(t, r, http.MethodPost, "/orders", body, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/orders", body, "seller-1", "seller")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPlaceOrderEndpoint_BadJSON(t *testing.T) {
	h := &OrdersHandler{Placer: &fakePlacer{}, Orders: &fakeOrderStore{}}
	r := newOrdersRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/orders", `{"products": nope`, "buyer-1", "buyer")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]market.Order{
		"o-1": {ID: "o-1", Status: market.StatusPlaced},
	}}
	h := &OrdersHandler{Placer: &fakePlacer{}, Orders: store}
	r := newOrdersRouter(h)

	rec := doJSON(t, r, http.MethodPut, "/orders/o-1/status", `{"status":"completed"}`, "seller-1", "seller")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, market.StatusCompleted, store.updated["o-1"])

	rec = doJSON(t, r, http.MethodPut, "/orders/o-1/status", `{"status":"shipped"}`, "seller-1", "seller")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/orders/ghost/status", `{"status":"completed"}`, "admin-1", "admin")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/orders/o-1/status", `{"status":"completed"}`, "buyer-1", "buyer")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateStatusEndpoint_IllegalTransition(t *testing.T) {
	store := &fakeOrderStore{
		orders:    map[string]market.Order{"o-1": {ID: "o-1", Status: market.StatusCompleted}},
		updateErr: &market.ValidationError{Msg: "illegal status transition completed -> cancelled"},
	}
	h := &OrdersHandler{Placer: &fakePlacer{}, Orders: store}
	r := newOrdersRouter(h)

	rec := doJSON(t, r, http.MethodPut, "/orders/o-1/status", `{"status":"cancelled"}`, "admin-1", "admin")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderEndpoints(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]market.Order{
		"o-1": {ID: "o-1", BuyerID: "buyer-1", Status: market.StatusPlaced},
	}}
	h := &OrdersHandler{Placer: &fakePlacer{}, Orders: store}
	r := newOrdersRouter(h)

	rec := doJSON(t, r, http.MethodGet, "/orders/o-1", "", "buyer-1", "buyer")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "o-1", decodeBody(t, rec)["id"])

	rec = doJSON(t, r, http.MethodGet, "/orders/ghost", "", "buyer-1", "buyer")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// status endpoint falls back to the store with no cache wired
	rec = doJSON(t, r, http.MethodGet, "/orders/o-1/status", "", "buyer-1", "buyer")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "placed", decodeBody(t, rec)["status"])
}

func TestMyOrdersEndpoint(t *testing.T) {
	store := &fakeOrderStore{orders: map[string]market.Order{
		"o-1": {ID: "o-1", BuyerID: "buyer-1"},
		"o-2": {ID: "o-2", BuyerID: "buyer-2"},
	}}
	h := &OrdersHandler{Placer: &fakePlacer{}, Orders: store}
	r := newOrdersRouter(h)

	rec := doJSON(t, r, http.MethodGet, "/orders/my", "", "buyer-1", "buyer")
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeBody(t, rec)["orders"].([]any)
	require.Len(t, orders, 1)
}
