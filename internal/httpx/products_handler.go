package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-realtime-market/internal/market"
)

type ProductStore interface {
	Get(ctx context.Context, productID string) (market.Product, error)
	List(ctx context.Context) ([]market.Product, error)
	ListBySeller(ctx context.Context, sellerID string) ([]market.Product, error)
	Create(ctx context.Context, p *market.Product) error
	Update(ctx context.Context, p *market.Product) error
	Delete(ctx context.Context, productID string) error
}

type Ledger interface {
	Append(ctx context.Context, e *market.LedgerEntry) (string, error)
	FindByProduct(ctx context.Context, productID string, limit int) ([]market.LedgerEntry, error)
	SummaryByChangeType(ctx context.Context) ([]market.ChangeSummary, error)
}

type ProductsHandler struct {
	Products ProductStore
	Ledger   Ledger
	Bus      market.Notifier
}

type productReq struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Category    *string          `json:"category"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Use(WithIdentity)
		r.Get("/", h.list)
		r.With(RequireRole(market.RoleSeller)).Get("/mine", h.mine)
		r.With(RequireRole(market.RoleSeller, market.RoleAdmin)).Post("/", h.create)
		r.Get("/{id}", h.get)
		r.With(RequireRole(market.RoleSeller, market.RoleAdmin)).Put("/{id}", h.update)
		r.With(RequireRole(market.RoleSeller, market.RoleAdmin)).Delete("/{id}", h.delete)
		r.With(RequireRole(market.RoleSeller, market.RoleAdmin)).Get("/{id}/inventory", h.inventory)
	})
	r.With(WithIdentity, RequireRole(market.RoleAdmin)).Get("/inventory/summary", h.summary)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *ProductsHandler) mine(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	products, err := h.Products.ListBySeller(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	product, err := h.Products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var nf *market.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == nil || req.Description == nil || req.Price == nil || req.Stock == nil || req.Category == nil {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if req.Price.IsNegative() || *req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "price and stock must be non-negative")
		return
	}

	now := time.Now().UTC()
	product := &market.Product{
		ID:          uuid.NewString(),
		SellerID:    id.UserID,
		Name:        *req.Name,
		Description: *req.Description,
		Price:       *req.Price,
		Stock:       *req.Stock,
		Category:    *req.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Products.Create(r.Context(), product); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := h.Ledger.Append(r.Context(), &market.LedgerEntry{
		ProductID:  product.ID,
		ChangeType: market.ChangeRestock,
		OldStock:   0,
		NewStock:   product.Stock,
		Reason:     "Initial stock",
		CreatedAt:  now,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message":    "Product created successfully",
		"product_id": product.ID,
	})
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	product, err := h.Products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var nf *market.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if id.Role != market.RoleAdmin && product.SellerID != id.UserID {
		writeError(w, http.StatusForbidden, "not the owner of this product")
		return
	}

	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	oldStock := product.Stock
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			writeError(w, http.StatusBadRequest, "price must be non-negative")
			return
		}
		product.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			writeError(w, http.StatusBadRequest, "stock must be non-negative")
			return
		}
		product.Stock = *req.Stock
	}
	if req.Category != nil {
		product.Category = *req.Category
	}

	if err := h.Products.Update(r.Context(), &product); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if product.Stock != oldStock {
		h.recordStockChange(r.Context(), product, oldStock)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Product updated successfully"})
}

// recordStockChange appends the manual-update ledger entry and pushes the
// same realtime events an order placement would.
func (h *ProductsHandler) recordStockChange(ctx context.Context, product market.Product, oldStock int) {
	change := market.ChangeAdjustment
	if product.Stock > oldStock {
		change = market.ChangeRestock
	}
	now := time.Now().UTC()
	if _, err := h.Ledger.Append(ctx, &market.LedgerEntry{
		ProductID:  product.ID,
		ChangeType: change,
		OldStock:   oldStock,
		NewStock:   product.Stock,
		Reason:     "Manual update",
		CreatedAt:  now,
	}); err != nil {
		log.Printf("inventory: append manual-update entry for %s: %v", product.ID, err)
	}

	_ = h.Bus.PublishBroadcast(ctx, market.EventStockUpdate, market.StockUpdatePayload{
		ProductID:   product.ID,
		NewStock:    product.Stock,
		ProductName: product.Name,
		Timestamp:   now,
	})
	if product.Stock <= market.LowStockThreshold {
		_ = h.Bus.PublishToUser(ctx, product.SellerID, market.EventLowStockAlert, market.LowStockAlertPayload{
			ProductID:    product.ID,
			ProductName:  product.Name,
			CurrentStock: product.Stock,
			Timestamp:    now,
		})
	}
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	product, err := h.Products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var nf *market.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if id.Role != market.RoleAdmin && product.SellerID != id.UserID {
		writeError(w, http.StatusForbidden, "not the owner of this product")
		return
	}

	if err := h.Products.Delete(r.Context(), product.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func (h *ProductsHandler) inventory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Ledger.FindByProduct(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (h *ProductsHandler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Ledger.SummaryByChangeType(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}
