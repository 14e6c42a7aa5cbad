package catalog

import (
	"context"
	"net/http"

	"checkout/internal/core/domain"
	"checkout/internal/infra/client"
)

// HTTP fetches stock snapshots from the dashboard backend through the
// resilient client, so transient catalog failures get the same retry
// treatment as sale persistence.
type HTTP struct {
	c *client.Client
}

// NewHTTP creates an HTTP catalog provider.
func NewHTTP(c *client.Client) *HTTP {
	return &HTTP{c: c}
}

// GetStockSnapshot fetches the current catalog listing.
func (h *HTTP) GetStockSnapshot(ctx context.Context) ([]domain.StockItem, error) {
	resp, err := h.c.Do(ctx, http.MethodGet, "/stock", nil)
	if err != nil {
		return nil, err
	}

	var items []domain.StockItem
	if err := resp.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}
