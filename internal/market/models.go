package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Product struct {
	ID          string          `json:"id"`
	SellerID    string          `json:"seller_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderItem captures the unit price at order time; later price edits on the
// product do not touch persisted orders.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID          string          `json:"id"`
	BuyerID     string          `json:"buyer_id"`
	Items       []OrderItem     `json:"product_list"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"timestamp"`
}

type ChangeType string

const (
	ChangeRestock    ChangeType = "restock"
	ChangePurchase   ChangeType = "purchase"
	ChangeAdjustment ChangeType = "adjustment"
)

// LedgerEntry is append-only; one row per stock mutation.
type LedgerEntry struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"product_id"`
	ChangeType ChangeType `json:"change_type"`
	OldStock   int        `json:"old_stock"`
	NewStock   int        `json:"new_stock"`
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"timestamp"`
}

// ChangeSummary is the per-type rollup used by inventory reporting.
type ChangeSummary struct {
	ChangeType ChangeType `json:"change_type"`
	Count      int        `json:"count"`
	NetChange  int        `json:"net_change"`
}
