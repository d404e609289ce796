package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-realtime-market/internal/market"
	"github.com/ariefcatur/go-realtime-market/internal/redisx"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, buyerID string, items []market.ItemInput) (*market.PlacedOrder, error)
}

type OrderStore interface {
	Get(ctx context.Context, orderID string) (market.Order, error)
	ByBuyer(ctx context.Context, buyerID string) ([]market.Order, error)
	BySeller(ctx context.Context, sellerID string) ([]market.Order, error)
	UpdateStatus(ctx context.Context, orderID string, next market.Status) error
}

type OrdersHandler struct {
	Placer OrderPlacer
	Orders OrderStore
	Redis  *redis.Client // optional status cache
}

type placeOrderReq struct {
	Products []market.ItemInput `json:"products"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(WithIdentity)
		r.With(RequireRole(market.RoleBuyer)).Post("/", h.placeOrder)
		r.With(RequireRole(market.RoleBuyer)).Get("/my", h.myOrders)
		r.With(RequireRole(market.RoleSeller)).Get("/seller", h.sellerOrders)
		r.With(RequireRole(market.RoleSeller, market.RoleAdmin)).Put("/{id}/status", h.updateStatus)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getOrderStatus)
	})
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	placed, err := h.Placer.PlaceOrder(r.Context(), id.UserID, req.Products)
	if err != nil {
		h.writePlacementError(w, err)
		return
	}

	h.cacheStatus(r.Context(), placed.OrderID, market.StatusPlaced)
	writeJSON(w, http.StatusCreated, placed)
}

func (h *OrdersHandler) writePlacementError(w http.ResponseWriter, err error) {
	var (
		vErr  *market.ValidationError
		nfErr *market.NotFoundError
		isErr *market.InsufficientStockError
	)
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Msg)
	case errors.As(err, &nfErr):
		writeError(w, http.StatusNotFound, nfErr.Error())
	case errors.As(err, &isErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           isErr.Error(),
			"product_id":      isErr.ProductID,
			"available_stock": isErr.Available,
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	orders, err := h.Orders.ByBuyer(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrdersHandler) sellerOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	orders, err := h.Orders.BySeller(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	if _, ok := IdentityFrom(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	order, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var nf *market.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	order, err := h.Orders.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.cacheStatus(r.Context(), orderID, order.Status)
	writeJSON(w, http.StatusOK, map[string]any{"status": order.Status})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	next, err := market.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	orderID := chi.URLParam(r, "id")
	if err := h.Orders.UpdateStatus(r.Context(), orderID, next); err != nil {
		var (
			nf *market.NotFoundError
			ve *market.ValidationError
		)
		switch {
		case errors.As(err, &nf):
			writeError(w, http.StatusNotFound, nf.Error())
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Msg)
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.cacheStatus(r.Context(), orderID, next)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order status updated successfully"})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, status market.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]market.Status{"status": status})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
