package storage

import (
	"context"
	"errors"

	"checkout/internal/core/domain"
)

var (
	// ErrSaleNotFound is returned when a sale doesn't exist in the journal.
	ErrSaleNotFound = errors.New("sale not found")
)

// SaleRepository is the local audit journal of completed sales. The remote
// persistence endpoint stays authoritative; the journal exists for status
// views and reconciliation, and writes to it are best-effort.
type SaleRepository interface {
	// Save records a completed sale.
	Save(ctx context.Context, sale *domain.Sale) error

	// GetByID retrieves a sale by its ID.
	GetByID(ctx context.Context, id string) (*domain.Sale, error)

	// ListRecent returns up to limit sales, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.Sale, error)
}
