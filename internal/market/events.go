package market

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventStockUpdate   = "stock_update"
	EventLowStockAlert = "low_stock_alert"
	EventNewOrder      = "new_order"
)

// Envelope wraps every event put on the stream. Target is the user id for
// room-scoped events and empty for broadcast.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Target       string          `json:"target,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

// ---- payload per event ----

type StockUpdatePayload struct {
	ProductID   string    `json:"product_id"`
	NewStock    int       `json:"new_stock"`
	ProductName string    `json:"product_name"`
	Timestamp   time.Time `json:"timestamp"`
}

type LowStockAlertPayload struct {
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name"`
	CurrentStock int       `json:"current_stock"`
	Timestamp    time.Time `json:"timestamp"`
}

type NewOrderPayload struct {
	OrderID      string          `json:"order_id"`
	Timestamp    time.Time       `json:"timestamp"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ProductCount int             `json:"product_count"`
}
