package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_SubtotalScenario(t *testing.T) {
	cart := Cart{Lines: []CartLine{
		{StockItemID: "A", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
		{StockItemID: "B", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
	}}

	subtotal := cart.Subtotal()
	tax := subtotal.Mul(decimal.NewFromFloat(0.19))
	total := subtotal.Add(tax)

	assert.Equal(t, "25", subtotal.String())
	assert.Equal(t, "4.75", tax.Round(2).String())
	assert.Equal(t, "29.75", total.Round(2).String())
}

func TestCart_SubtotalNoIntermediateRounding(t *testing.T) {
	// Three lines at 0.333 each would drift if rounded per line.
	cart := Cart{Lines: []CartLine{
		{StockItemID: "A", UnitPrice: decimal.RequireFromString("0.333"), Quantity: 1},
		{StockItemID: "B", UnitPrice: decimal.RequireFromString("0.333"), Quantity: 1},
		{StockItemID: "C", UnitPrice: decimal.RequireFromString("0.333"), Quantity: 1},
	}}

	assert.Equal(t, "0.999", cart.Subtotal().String())
	assert.Equal(t, "1.00", cart.Subtotal().Round(2).StringFixed(2))
}

func TestCart_CloneIsIndependent(t *testing.T) {
	cart := Cart{Lines: []CartLine{{StockItemID: "A", Quantity: 1}}}
	cp := cart.Clone()
	cp.Lines[0].Quantity = 9

	assert.Equal(t, 1, cart.Lines[0].Quantity)
}

func TestCart_FindAndEqual(t *testing.T) {
	cart := Cart{Lines: []CartLine{
		{StockItemID: "A", UnitPrice: decimal.NewFromInt(1), Quantity: 1},
		{StockItemID: "B", UnitPrice: decimal.NewFromInt(2), Quantity: 2},
	}}

	assert.Equal(t, 1, cart.Find("B"))
	assert.Equal(t, -1, cart.Find("Z"))

	same := cart.Clone()
	assert.True(t, cart.Equal(same))

	reordered := Cart{Lines: []CartLine{cart.Lines[1], cart.Lines[0]}}
	assert.False(t, cart.Equal(reordered), "line order is part of cart identity")
}

func TestSnapshotFrom_Available(t *testing.T) {
	snap := SnapshotFrom([]StockItem{
		{ID: "A", QuantityAvailable: 7},
		{ID: "B", QuantityAvailable: 0},
	})

	assert.Equal(t, 7, snap.Available("A"))
	assert.Equal(t, 0, snap.Available("B"))
	assert.Equal(t, 0, snap.Available("missing"))
}

func TestIdempotencyKey(t *testing.T) {
	lines := []CartLine{
		{StockItemID: "A", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
		{StockItemID: "B", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
	}

	k1 := IdempotencyKey(lines, 1)
	require.NotEmpty(t, k1)

	// Stable for the same logical sale, regardless of line order.
	swapped := []CartLine{lines[1], lines[0]}
	assert.Equal(t, k1, IdempotencyKey(swapped, 1))

	// A new attempt or a changed cart produces a new key.
	assert.NotEqual(t, k1, IdempotencyKey(lines, 2))
	changed := []CartLine{lines[0], {StockItemID: "B", UnitPrice: decimal.NewFromInt(5), Quantity: 3}}
	assert.NotEqual(t, k1, IdempotencyKey(changed, 1))
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentCash.Valid())
	assert.True(t, PaymentCard.Valid())
	assert.True(t, PaymentTransfer.Valid())
	assert.False(t, PaymentMethod("crypto").Valid())
	assert.False(t, PaymentMethod("").Valid())
}
