package memory

import (
	"context"
	"sort"
	"sync"

	"checkout/internal/core/domain"
	"checkout/internal/infra/storage"
)

// SaleRepo is an in-process sales journal. Used when no database is
// configured; contents do not survive a restart.
type SaleRepo struct {
	mu    sync.RWMutex
	sales map[string]*domain.Sale
}

// NewSaleRepo creates an empty journal.
func NewSaleRepo() *SaleRepo {
	return &SaleRepo{sales: make(map[string]*domain.Sale)}
}

func (r *SaleRepo) Save(ctx context.Context, sale *domain.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *sale
	cp.Lines = append([]domain.CartLine(nil), sale.Lines...)
	r.sales[sale.ID] = &cp
	return nil
}

func (r *SaleRepo) GetByID(ctx context.Context, id string) (*domain.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sale, ok := r.sales[id]
	if !ok {
		return nil, storage.ErrSaleNotFound
	}
	cp := *sale
	return &cp, nil
}

func (r *SaleRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Sale, 0, len(r.sales))
	for _, s := range r.sales {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
