package client

import (
	"context"
	"net/http"

	"checkout/internal/core/domain"
)

// SalesAPI speaks the persistence endpoint's sale protocol over the
// resilient client. It is the only writer of sales to the remote side.
type SalesAPI struct {
	c *Client
}

// NewSalesAPI wraps a client for sale persistence calls.
func NewSalesAPI(c *Client) *SalesAPI {
	return &SalesAPI{c: c}
}

// FinalizeSale posts the finalize payload and returns the server's receipt.
// The endpoint deduplicates on the request's idempotency key, so a retried
// call for the same logical sale is applied at most once.
func (s *SalesAPI) FinalizeSale(ctx context.Context, req domain.FinalizeRequest) (domain.SaleReceipt, error) {
	resp, err := s.c.Do(ctx, http.MethodPost, "/sales", req)
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	var receipt domain.SaleReceipt
	if err := resp.Decode(&receipt); err != nil {
		return domain.SaleReceipt{}, err
	}
	return receipt, nil
}
