package bundle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	// OrderPending means the order awaits an admin decision.
	OrderPending OrderStatus = "pending"
	// OrderApproved is a terminal status set by an admin.
	OrderApproved OrderStatus = "approved"
	// OrderRejected is a terminal status set by an admin.
	OrderRejected OrderStatus = "rejected"
)

// Buyer identifies the purchasing user as reported by the transport.
type Buyer struct {
	ID       int64
	Name     string
	Username string
}

// Order is one buyer's request to purchase a quantity of a package.
// Field tags mirror the durable snapshot layout.
type Order struct {
	ID            string      `json:"order_id" db:"id"`
	BuyerID       int64       `json:"user_id" db:"buyer_id"`
	BuyerName     string      `json:"user_name" db:"buyer_name"`
	BuyerUsername string      `json:"username,omitempty" db:"buyer_username"`
	PackageID     string      `json:"package_type" db:"package_id"`
	Quantity      int         `json:"quantity" db:"quantity"`
	TotalPrice    int         `json:"total_price" db:"total_price"`
	PaymentRef    string      `json:"transaction_id" db:"payment_ref"`
	Status        OrderStatus `json:"status" db:"status"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time  `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy    int64       `json:"resolved_by,omitempty" db:"resolved_by"`
}

// NewOrderID derives an order identifier from the buyer and creation
// instant. A uuid fragment keeps two submissions within the same second
// from colliding.
func NewOrderID(buyerID int64, at time.Time) string {
	frag := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("ORD-%d-%d-%s", buyerID, at.Unix(), frag)
}

// NewOrder builds a pending order. The total is computed from the
// catalog price here and never mutated afterwards.
func NewOrder(buyer Buyer, pkg Package, quantity int, paymentRef string, at time.Time) Order {
	return Order{
		ID:            NewOrderID(buyer.ID, at),
		BuyerID:       buyer.ID,
		BuyerName:     buyer.Name,
		BuyerUsername: buyer.Username,
		PackageID:     pkg.ID,
		Quantity:      quantity,
		TotalPrice:    pkg.Total(quantity),
		PaymentRef:    paymentRef,
		Status:        OrderPending,
		CreatedAt:     at,
	}
}

// Resolved reports whether the order reached a terminal status.
func (o Order) Resolved() bool {
	return o.Status == OrderApproved || o.Status == OrderRejected
}
