package bundle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderIDUnique(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := NewOrderID(7, at)
	b := NewOrderID(7, at)

	assert.True(t, strings.HasPrefix(a, "ORD-7-"))
	// Same buyer, same second, still distinct identifiers.
	assert.NotEqual(t, a, b)
}

func TestNewOrder(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	buyer := Buyer{ID: 7, Name: "Alice", Username: "alice"}
	pkg := Package{ID: "3hr", Label: "3 hours", Hours: 3, Price: 80}

	order := NewOrder(buyer, pkg, 2, "MPESA1", at)
	assert.Equal(t, int64(7), order.BuyerID)
	assert.Equal(t, "3hr", order.PackageID)
	assert.Equal(t, 160, order.TotalPrice)
	assert.Equal(t, OrderPending, order.Status)
	assert.Equal(t, at, order.CreatedAt)
	require.Nil(t, order.ResolvedAt)
	assert.False(t, order.Resolved())
}

func TestOrderResolved(t *testing.T) {
	o := Order{Status: OrderPending}
	assert.False(t, o.Resolved())
	o.Status = OrderApproved
	assert.True(t, o.Resolved())
	o.Status = OrderRejected
	assert.True(t, o.Resolved())
}
