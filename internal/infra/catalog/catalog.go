// Package catalog provides stock snapshot providers. The catalog is owned
// externally; everything here is read-only from the engine's perspective.
package catalog

import (
	"context"

	"checkout/internal/core/domain"
)

// Provider returns the authoritative current stock quantities. It must be
// callable repeatedly; the engine re-reads it on every cart mutation and
// before finalize.
type Provider interface {
	GetStockSnapshot(ctx context.Context) ([]domain.StockItem, error)
}
