// Package command wraps cart mutations as reversible, inspectable
// operations. A Command is a tagged variant: one closed set of kinds, each
// carrying its payload, applied and inverted by pure functions over a value
// cart. The Stack records applied commands together with the data needed to
// reverse them.
package command

import (
	"fmt"
	"time"

	"checkout/internal/core/domain"
)

// Kind identifies a cart mutation variant.
type Kind string

const (
	KindAddItem        Kind = "add_item"
	KindUpdateQuantity Kind = "update_quantity"
	KindRemoveItem     Kind = "remove_item"
	KindClearCart      Kind = "clear_cart"
)

// Command is one reversible cart mutation. Fields are populated per kind:
// AddItem uses Line (Quantity is the delta to merge), UpdateQuantity uses
// ItemID and Qty, RemoveItem uses ItemID, ClearCart carries no payload.
type Command struct {
	Kind   Kind
	Line   domain.CartLine
	ItemID string
	Qty    int
	At     time.Time
}

// AddItem builds a command that merges a line into the cart.
func AddItem(line domain.CartLine) Command {
	return Command{Kind: KindAddItem, Line: line, ItemID: line.StockItemID, At: time.Now()}
}

// UpdateQuantity builds a command that sets a line to a new quantity.
func UpdateQuantity(itemID string, qty int) Command {
	return Command{Kind: KindUpdateQuantity, ItemID: itemID, Qty: qty, At: time.Now()}
}

// RemoveItem builds a command that removes a line entirely.
func RemoveItem(itemID string) Command {
	return Command{Kind: KindRemoveItem, ItemID: itemID, At: time.Now()}
}

// ClearCart builds a command that empties the cart.
func ClearCart() Command {
	return Command{Kind: KindClearCart, At: time.Now()}
}

// Describe yields a human-readable audit string. Used only for logging,
// never for control decisions.
func (c Command) Describe() string {
	ts := c.At.Format(time.RFC3339)
	switch c.Kind {
	case KindAddItem:
		return fmt.Sprintf("[%s] add %d x %s (%s)", ts, c.Line.Quantity, c.Line.Name, c.Line.StockItemID)
	case KindUpdateQuantity:
		return fmt.Sprintf("[%s] set %s to %d", ts, c.ItemID, c.Qty)
	case KindRemoveItem:
		return fmt.Sprintf("[%s] remove %s", ts, c.ItemID)
	case KindClearCart:
		return fmt.Sprintf("[%s] clear cart", ts)
	}
	return fmt.Sprintf("[%s] unknown command", ts)
}

// applied is a command plus the state captured to reverse it.
type applied struct {
	cmd Command

	// inverse data, populated by apply
	hadLine   bool
	prevLine  domain.CartLine
	prevIndex int
	prevLines []domain.CartLine
}

// apply executes cmd against cart and returns the new cart plus the captured
// inverse. The input cart is never mutated.
func apply(cmd Command, cart domain.Cart) (domain.Cart, applied, error) {
	next := cart.Clone()
	rec := applied{cmd: cmd}

	switch cmd.Kind {
	case KindAddItem:
		if cmd.Line.Quantity <= 0 {
			return cart, rec, fmt.Errorf("add %s: quantity must be positive, got %d", cmd.Line.StockItemID, cmd.Line.Quantity)
		}
		if i := next.Find(cmd.Line.StockItemID); i >= 0 {
			rec.hadLine = true
			rec.prevLine = next.Lines[i]
			rec.prevIndex = i
			next.Lines[i].Quantity += cmd.Line.Quantity
		} else {
			next.Lines = append(next.Lines, cmd.Line)
		}

	case KindUpdateQuantity:
		i := next.Find(cmd.ItemID)
		if i < 0 {
			return cart, rec, fmt.Errorf("update %s: no such line", cmd.ItemID)
		}
		if cmd.Qty <= 0 {
			return cart, rec, fmt.Errorf("update %s: quantity must be positive, got %d (use remove)", cmd.ItemID, cmd.Qty)
		}
		rec.hadLine = true
		rec.prevLine = next.Lines[i]
		rec.prevIndex = i
		next.Lines[i].Quantity = cmd.Qty

	case KindRemoveItem:
		i := next.Find(cmd.ItemID)
		if i < 0 {
			return cart, rec, fmt.Errorf("remove %s: no such line", cmd.ItemID)
		}
		rec.hadLine = true
		rec.prevLine = next.Lines[i]
		rec.prevIndex = i
		next.Lines = append(next.Lines[:i], next.Lines[i+1:]...)

	case KindClearCart:
		rec.prevLines = cart.Clone().Lines
		next.Lines = nil

	default:
		return cart, rec, fmt.Errorf("unknown command kind %q", cmd.Kind)
	}

	return next, rec, nil
}

// invert reverses an applied command, restoring the cart to its exact
// pre-command value.
func invert(rec applied, cart domain.Cart) domain.Cart {
	next := cart.Clone()

	switch rec.cmd.Kind {
	case KindAddItem:
		if rec.hadLine {
			if i := next.Find(rec.prevLine.StockItemID); i >= 0 {
				next.Lines[i] = rec.prevLine
			}
		} else if i := next.Find(rec.cmd.Line.StockItemID); i >= 0 {
			next.Lines = append(next.Lines[:i], next.Lines[i+1:]...)
		}

	case KindUpdateQuantity:
		if i := next.Find(rec.prevLine.StockItemID); i >= 0 {
			next.Lines[i] = rec.prevLine
		}

	case KindRemoveItem:
		i := rec.prevIndex
		if i > len(next.Lines) {
			i = len(next.Lines)
		}
		next.Lines = append(next.Lines[:i], append([]domain.CartLine{rec.prevLine}, next.Lines[i:]...)...)

	case KindClearCart:
		lines := make([]domain.CartLine, len(rec.prevLines))
		copy(lines, rec.prevLines)
		next.Lines = lines
	}

	return next
}
