package market

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LowStockThreshold: resulting stock at or below this publishes a
// low_stock_alert to the owning seller.
const LowStockThreshold = 5

type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlacedOrder struct {
	OrderID     string          `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CartSession is one placement transaction. Product returns a row-locked
// read, so a stock value observed through the session cannot change under
// it until Commit or Rollback.
type CartSession interface {
	Product(ctx context.Context, productID string) (Product, error)
	DecrementStock(ctx context.Context, productID string, qty int) (newStock int, err error)
	InsertOrder(ctx context.Context, o *Order) error
	AppendEntry(ctx context.Context, e *LedgerEntry) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type CartStore interface {
	Begin(ctx context.Context) (CartSession, error)
}

// Notifier is the injected push capability. Delivery is best-effort: errors
// are logged by the caller and never fail a committed order.
type Notifier interface {
	PublishToUser(ctx context.Context, userID, event string, payload any) error
	PublishBroadcast(ctx context.Context, event string, payload any) error
}

// Placer coordinates the order placement transaction: validate the whole
// cart against locked stock, persist the order, decrement stock with one
// ledger entry per item, commit, then fan out notifications.
type Placer struct {
	Store CartStore
	Bus   Notifier

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func (p *Placer) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

type cartLine struct {
	product  Product
	quantity int
	newStock int
}

func (p *Placer) PlaceOrder(ctx context.Context, buyerID string, items []ItemInput) (*PlacedOrder, error) {
	if buyerID == "" {
		return nil, &ValidationError{Msg: "buyer id is required"}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Msg: "products list is required"}
	}
	for _, it := range items {
		if it.ProductID == "" {
			return nil, &ValidationError{Msg: "each product must have product_id and quantity"}
		}
		if it.Quantity < 1 {
			return nil, &ValidationError{Msg: "quantity must be at least 1 for product " + it.ProductID}
		}
	}

	sess, err := p.Store.Begin(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "begin placement", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = sess.Rollback(ctx)
		}
	}()

	// Validation pass. Nothing is mutated until every line passes, so a
	// failure here aborts with no partial order and no stock touched.
	// requested accumulates per product so a cart listing the same product
	// twice is checked against the combined quantity.
	lines := make([]cartLine, 0, len(items))
	requested := make(map[string]int, len(items))
	total := decimal.Zero
	var sellerIDs []string
	seenSeller := make(map[string]bool)

	for _, it := range items {
		prod, err := sess.Product(ctx, it.ProductID)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				return nil, err
			}
			return nil, &PersistenceError{Op: "load product " + it.ProductID, Err: err}
		}

		requested[prod.ID] += it.Quantity
		if requested[prod.ID] > prod.Stock {
			return nil, &InsufficientStockError{
				ProductID: prod.ID,
				Requested: requested[prod.ID],
				Available: prod.Stock,
			}
		}

		total = total.Add(prod.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		lines = append(lines, cartLine{product: prod, quantity: it.Quantity})
		if !seenSeller[prod.SellerID] {
			seenSeller[prod.SellerID] = true
			sellerIDs = append(sellerIDs, prod.SellerID)
		}
	}

	now := p.now()
	order := &Order{
		ID:          uuid.NewString(),
		BuyerID:     buyerID,
		TotalAmount: total,
		Status:      StatusPlaced,
		CreatedAt:   now,
	}
	for _, ln := range lines {
		order.Items = append(order.Items, OrderItem{
			ProductID: ln.product.ID,
			Quantity:  ln.quantity,
			Price:     ln.product.Price,
		})
	}
	if err := sess.InsertOrder(ctx, order); err != nil {
		return nil, &PersistenceError{Op: "insert order", Err: err}
	}

	// Reserve: decrement stock and append the purchase ledger entry together
	// per item. The rows are still locked, so the decrement cannot land on a
	// stock value other than the one validated above.
	for i := range lines {
		ln := &lines[i]
		newStock, err := sess.DecrementStock(ctx, ln.product.ID, ln.quantity)
		if err != nil {
			return nil, &PersistenceError{Op: "decrement stock for product " + ln.product.ID, Err: err}
		}
		ln.newStock = newStock

		entry := &LedgerEntry{
			ID:         uuid.NewString(),
			ProductID:  ln.product.ID,
			ChangeType: ChangePurchase,
			OldStock:   newStock + ln.quantity,
			NewStock:   newStock,
			Reason:     "Order " + order.ID,
			CreatedAt:  now,
		}
		if err := sess.AppendEntry(ctx, entry); err != nil {
			return nil, &PersistenceError{Op: "append ledger entry for product " + ln.product.ID, Err: err}
		}
	}

	if err := sess.Commit(ctx); err != nil {
		return nil, &PersistenceError{Op: "commit placement", Err: err}
	}
	committed = true

	// Fan-out is fire-and-forget from here: the order is committed and a
	// notification failure must not roll it back.
	for _, ln := range lines {
		if ln.newStock > LowStockThreshold {
			continue
		}
		p.publishToUser(ctx, ln.product.SellerID, EventLowStockAlert, LowStockAlertPayload{
			ProductID:    ln.product.ID,
			ProductName:  ln.product.Name,
			CurrentStock: ln.newStock,
			Timestamp:    now,
		})
	}
	for _, ln := range lines {
		p.publishBroadcast(ctx, EventStockUpdate, StockUpdatePayload{
			ProductID:   ln.product.ID,
			NewStock:    ln.newStock,
			ProductName: ln.product.Name,
			Timestamp:   now,
		})
	}
	for _, sellerID := range sellerIDs {
		p.publishToUser(ctx, sellerID, EventNewOrder, NewOrderPayload{
			OrderID:      order.ID,
			Timestamp:    now,
			TotalAmount:  total,
			ProductCount: len(order.Items),
		})
	}

	return &PlacedOrder{OrderID: order.ID, TotalAmount: total}, nil
}

func (p *Placer) publishToUser(ctx context.Context, userID, event string, payload any) {
	if err := p.Bus.PublishToUser(ctx, userID, event, payload); err != nil {
		log.Printf("notify: publish %s to user %s: %v", event, userID, err)
	}
}

func (p *Placer) publishBroadcast(ctx context.Context, event string, payload any) {
	if err := p.Bus.PublishBroadcast(ctx, event, payload); err != nil {
		log.Printf("notify: broadcast %s: %v", event, err)
	}
}
