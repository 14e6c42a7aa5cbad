package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a sale was paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

// Valid reports whether the payment method is one of the known variants.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

// Sale is the immutable record produced by a successful finalize. Amounts
// are rounded to two decimals exactly once, at construction.
type Sale struct {
	ID            string          `json:"id"`
	Lines         []CartLine      `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FinalizeRequest is the wire payload sent to the persistence endpoint.
type FinalizeRequest struct {
	Lines          []CartLine      `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// SaleReceipt is the persistence endpoint's acknowledgement.
type SaleReceipt struct {
	SaleID    string    `json:"sale_id"`
	CreatedAt time.Time `json:"created_at"`
}

// IdempotencyKey derives a stable key from cart contents plus an attempt
// counter. The persistence endpoint deduplicates on it, so a retried finalize
// of the same logical sale is never double-applied while a changed cart or a
// fresh attempt produces a new key.
func IdempotencyKey(lines []CartLine, attempt uint64) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s:%d:%s", l.StockItemID, l.Quantity, l.UnitPrice.String()))
	}
	sort.Strings(parts)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d", strings.Join(parts, ";"), attempt)
	return hex.EncodeToString(h.Sum(nil))
}
