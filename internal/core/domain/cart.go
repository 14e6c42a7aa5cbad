package domain

import "github.com/shopspring/decimal"

// CartLine is one priced line of the operator's cart. The unit price is
// captured at add time so a catalog price change mid-session does not move
// an already-quoted line.
type CartLine struct {
	StockItemID string          `json:"stock_item_id"`
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// Total returns unit price times quantity, unrounded.
func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the in-progress selection of items. Lines are keyed by stock item
// ID (unique) and keep insertion order for receipt display. Cart is a value
// type: commands take a cart and return a new one.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	if len(c.Lines) == 0 {
		return Cart{}
	}
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines}
}

// Find returns the index of the line for the given stock item, or -1.
func (c Cart) Find(stockItemID string) int {
	for i, l := range c.Lines {
		if l.StockItemID == stockItemID {
			return i
		}
	}
	return -1
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Subtotal sums all line totals without rounding. Rounding happens once, at
// display/persistence time, never per line.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Equal reports structural equality of two carts, including line order.
func (c Cart) Equal(other Cart) bool {
	if len(c.Lines) != len(other.Lines) {
		return false
	}
	for i, l := range c.Lines {
		o := other.Lines[i]
		if l.StockItemID != o.StockItemID || l.Name != o.Name ||
			l.Code != o.Code || l.Quantity != o.Quantity ||
			!l.UnitPrice.Equal(o.UnitPrice) {
			return false
		}
	}
	return true
}
